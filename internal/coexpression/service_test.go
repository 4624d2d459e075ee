package coexpression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/model"
	"github.com/inodb/vibe-coexp/internal/testedin"
)

// scenarioSource holds one link G1-G2 supported in D1 and D2, specific in
// D1 only, and tested but not supporting in D3.
func scenarioSource() *fakeSource {
	f := newFakeSource()
	f.addLink(7, g1, g2, 0.8, []int64{d1, d2}, []int64{d1, d2, d3}, []int64{d1})
	return f
}

func TestSearchCanned_SupportedLink(t *testing.T) {
	svc := NewService(scenarioSource(), nil)

	res, err := svc.SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 2})
	require.NoError(t, err)
	require.False(t, res.Empty())
	assert.True(t, res.Canned)
	assert.Equal(t, []int64{d1, d2, d3}, res.Datasets)

	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, "G1", row.QueryGene.Symbol)
	assert.Equal(t, "G2", row.FoundGene.Symbol)
	assert.Equal(t, 2, row.PosSupp)
	assert.Equal(t, 0, row.NegSupp)
	assert.Equal(t, 1, row.NonSpecPosSupp)
	assert.Equal(t, "310", row.DatasetVector)
	assert.Equal(t, 3, row.NumTestedIn)
	assert.Equal(t, []int64{d1, d2}, row.SupportingDatasets)
	assert.Equal(t, "G1\tG2\t2\t+", row.String())

	s := res.Summaries["G1"]
	require.NotNil(t, s)
	assert.Equal(t, 3, s.DatasetsAvailable)
	assert.Equal(t, 3, s.DatasetsTested)
	assert.Equal(t, 1, s.LinksFound)
	assert.Equal(t, 1, s.LinksMetPositiveStringency)
	assert.Equal(t, 0, s.LinksMetNegativeStringency)
	assert.Equal(t, 1, s.DatasetsWithSpecificProbes)
}

func TestSearchCanned_BelowStringency(t *testing.T) {
	svc := NewService(scenarioSource(), nil)

	res, err := svc.SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 3})
	require.NoError(t, err)
	assert.False(t, res.Empty(), "zero rows is not an error state")
	assert.Empty(t, res.Rows)
	assert.Equal(t, 0, res.Summaries["G1"].LinksFound)

	// Dropped links still count toward per-dataset support.
	assert.Equal(t, []DatasetSummary{
		{DatasetID: d1, QueryGene: "G1", LinkCount: 1},
		{DatasetID: d2, QueryGene: "G1", LinkCount: 1},
	}, res.DatasetSummaries)
}

func TestSearchCanned_QueryGenesOnlyDeduplicates(t *testing.T) {
	f := newFakeSource()
	l := f.addLink(7, g1, g2, 0.8, []int64{d1, d2}, []int64{d1, d2, d3}, []int64{d1})
	// The same link is returned again for G2's pass.
	f.links[g2.ID] = append(f.links[g2.ID], l)

	svc := NewService(f, nil)
	res, err := svc.SearchCanned(10, Query{
		Genes:          []model.Gene{g1, g2},
		Stringency:     2,
		QueryGenesOnly: true,
	})
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "G1", res.Rows[0].QueryGene.Symbol)
	assert.Equal(t, "G2", res.Rows[0].FoundGene.Symbol)
	assert.Equal(t, 1, res.Summaries["G1"].LinksFound)
	assert.Equal(t, 1, res.Summaries["G2"].LinksFound)
}

func TestSearchCanned_ReverseStoredLink(t *testing.T) {
	f := newFakeSource()
	l := f.addLink(7, g2, g1, 0.8, []int64{d1, d2}, []int64{d1, d2, d3}, []int64{d1})
	f.links[g1.ID] = []model.Link{l}

	res, err := NewService(f, nil).SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "G2", res.Rows[0].FoundGene.Symbol)
}

func TestSearchCanned_DuplicateFoundGene(t *testing.T) {
	f := scenarioSource()
	f.addLink(8, g1, g2, 0.5, []int64{d1, d2, d3}, []int64{d1, d2, d3}, nil)

	res, err := NewService(f, nil).SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "310", res.Rows[0].DatasetVector, "first link is kept")
	assert.Equal(t, 1, res.Summaries["G1"].LinksFound)
}

func TestSearchCanned_NegativeLink(t *testing.T) {
	f := newFakeSource()
	f.addLink(7, g1, g3, -0.6, []int64{d1}, []int64{d1}, nil)

	res, err := NewService(f, nil).SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, 0, row.PosSupp)
	assert.Equal(t, 1, row.NegSupp)
	assert.Equal(t, 1, row.NonSpecNegSupp)
	assert.Equal(t, "200", row.DatasetVector)
	assert.Equal(t, "G1\tG3\t1\t-", row.String())
	assert.Equal(t, 1, res.Summaries["G1"].LinksMetNegativeStringency)
}

func TestSearchCanned_StringencyMonotonic(t *testing.T) {
	f := newFakeSource()
	f.addLink(7, g1, g2, 0.8, []int64{d1, d2}, []int64{d1, d2, d3}, nil)
	f.addLink(8, g1, g3, 0.8, []int64{d1}, []int64{d1}, nil)
	f.addLink(9, g1, model.Gene{ID: 4, Symbol: "G4", TaxonID: human}, 0.8, []int64{d1, d2, d3}, []int64{d1, d2, d3}, nil)
	svc := NewService(f, nil)

	retained := func(s int) map[string]bool {
		res, err := svc.SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: s})
		require.NoError(t, err)
		out := make(map[string]bool)
		for _, r := range res.Rows {
			out[r.FoundGene.Symbol] = true
		}
		return out
	}

	prev := retained(1)
	assert.Len(t, prev, 3)
	for s := 2; s <= 4; s++ {
		cur := retained(s)
		assert.LessOrEqual(t, len(cur), len(prev))
		for sym := range cur {
			assert.True(t, prev[sym], "%s retained at %d but not at %d", sym, s, s-1)
		}
		prev = cur
	}
	assert.Empty(t, prev)
}

func TestSearchCanned_Ranking(t *testing.T) {
	f := newFakeSource()
	geneB := model.Gene{ID: 21, Symbol: "B", TaxonID: human}
	geneA := model.Gene{ID: 22, Symbol: "A", TaxonID: human}
	geneC := model.Gene{ID: 23, Symbol: "C", TaxonID: human}
	all := []int64{d1, d2, d3}
	f.addLink(1, g1, geneB, 0.5, []int64{d1, d2}, all, nil)
	f.addLink(2, g1, geneA, 0.5, []int64{d2, d3}, all, nil)
	f.addLink(3, g1, geneC, 0.5, all, all, nil)

	res, err := NewService(f, nil).SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 1})
	require.NoError(t, err)

	var got []string
	for _, r := range res.Rows {
		got = append(got, r.FoundGene.Symbol)
	}
	assert.Equal(t, []string{"C", "A", "B"}, got)
}

func TestSearchCanned_TroubledDatasetsRemoved(t *testing.T) {
	f := scenarioSource()
	d := f.datasets[d3]
	d.Troubled = true
	f.datasets[d3] = d

	res, err := NewService(f, nil).SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{d1, d2}, res.Datasets)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "32", res.Rows[0].DatasetVector)
	assert.Equal(t, 2, res.Rows[0].NumTestedIn)
}

func TestSearchCanned_DatasetSubset(t *testing.T) {
	res, err := NewService(scenarioSource(), nil).SearchCanned(10, Query{
		Genes:      []model.Gene{g1},
		DatasetIDs: []int64{d3, d1},
		Stringency: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{d1, d3}, res.Datasets)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Rows[0].PosSupp)
	assert.Equal(t, "31", res.Rows[0].DatasetVector)
}

func TestSearchCanned_SpecificProbesOnly(t *testing.T) {
	res, err := NewService(scenarioSource(), nil).SearchCanned(10, Query{
		Genes:              []model.Gene{g1},
		Stringency:         1,
		SpecificProbesOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Rows[0].PosSupp)
	assert.Equal(t, 0, res.Rows[0].NonSpecPosSupp)
	assert.Equal(t, "311", res.Rows[0].DatasetVector)
}

func TestSearchCanned_KnownGenesOnly(t *testing.T) {
	f := scenarioSource()
	predicted := model.Gene{ID: 30, Symbol: "LOC1", TaxonID: human}
	f.addLink(9, g1, predicted, 0.5, []int64{d1, d2}, []int64{d1, d2}, nil)

	res, err := NewService(f, nil).SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 1, KnownGenesOnly: true})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "G2", res.Rows[0].FoundGene.Symbol)
	assert.True(t, res.KnownGenesOnly)
}

func TestSearchCanned_Inconsistent(t *testing.T) {
	f := newFakeSource()
	// Supported in D2 but only tested in D1.
	f.addLink(7, g1, g2, 0.8, []int64{d1, d2}, []int64{d1}, nil)

	_, err := NewService(f, nil).SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 1})
	var ie *model.InconsistencyError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, model.PairKey(1, 2), ie.Link)
}

func TestSearchCanned_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeSource)
		setID int64
		query Query
		want  error
	}{
		{
			name:  "unknown dataset set",
			setID: 99,
			query: Query{Genes: []model.Gene{g1}},
			want:  model.ErrInvalidQuery,
		},
		{
			name:  "no genes",
			setID: 10,
			want:  model.ErrInvalidQuery,
		},
		{
			name:  "query genes only with one gene",
			setID: 10,
			query: Query{Genes: []model.Gene{g1}, QueryGenesOnly: true},
			want:  model.ErrInvalidQuery,
		},
		{
			name:  "taxon mismatch",
			setID: 10,
			query: Query{Genes: []model.Gene{{ID: 50, Symbol: "Trp53", TaxonID: 10090}}},
			want:  model.ErrInvalidQuery,
		},
		{
			name:  "genes from two taxa",
			setID: 10,
			query: Query{Genes: []model.Gene{g1, {ID: 50, Symbol: "Trp53", TaxonID: 10090}}},
			want:  model.ErrInvalidQuery,
		},
		{
			name:  "no analysis",
			setup: func(f *fakeSource) { f.analyses[0].TaxonID = 10090 },
			setID: 10,
			query: Query{Genes: []model.Gene{g1}},
			want:  model.ErrAnalysisUnavailable,
		},
		{
			name: "analysis of another collection",
			setup: func(f *fakeSource) {
				f.sets = append(f.sets, model.DatasetSet{ID: 11, Name: "human subset", TaxonID: human, DatasetIDs: []int64{d1, d2}})
			},
			setID: 11,
			query: Query{Genes: []model.Gene{g1}},
			want:  model.ErrAnalysisUnavailable,
		},
		{
			name: "two enabled analyses",
			setup: func(f *fakeSource) {
				second := f.analyses[0]
				second.ID = 6
				second.Name = "human gene coexpression v2"
				f.analyses = append(f.analyses, second)
			},
			setID: 10,
			query: Query{Genes: []model.Gene{g1}},
			want:  model.ErrAmbiguousAnalysis,
		},
		{
			name: "several analyses none enabled",
			setup: func(f *fakeSource) {
				f.analyses[0].Enabled = false
				second := f.analyses[0]
				second.ID = 6
				f.analyses = append(f.analyses, second)
			},
			setID: 10,
			query: Query{Genes: []model.Gene{g1}},
			want:  model.ErrAnalysisUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := scenarioSource()
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := NewService(f, nil).SearchCanned(tt.setID, tt.query)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEnabledAnalysis_SingleDisabledIsUsed(t *testing.T) {
	f := newFakeSource()
	f.analyses[0].Enabled = false

	a, err := NewService(f, nil).EnabledAnalysis(human)
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.ID)
}

func TestEnabledAnalysis_PicksEnabled(t *testing.T) {
	f := newFakeSource()
	f.analyses[0].Enabled = false
	second := f.analyses[0]
	second.ID = 6
	second.Enabled = true
	f.analyses = append(f.analyses, second)

	a, err := NewService(f, nil).EnabledAnalysis(human)
	require.NoError(t, err)
	assert.Equal(t, int64(6), a.ID)
}

func TestSearchCanned_GONotLoaded(t *testing.T) {
	ont := &fakeOntology{loaded: false, terms: map[string][]string{"G1": {"GO:1"}, "G2": {"GO:1"}}}
	svc := NewService(scenarioSource(), ont)

	res, err := svc.SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0].GoSim)
	assert.Nil(t, res.Rows[0].MaxGoSim)
	assert.Equal(t, 0, ont.calls)
}

func TestSearchCanned_GOOverlap(t *testing.T) {
	f := scenarioSource()
	f.addLink(8, g1, g3, 0.8, []int64{d1}, []int64{d1}, nil)
	ont := &fakeOntology{loaded: true, terms: map[string][]string{
		"G1": {"GO:1", "GO:2", "GO:3"},
		"G2": {"GO:2", "GO:3"},
		"G3": {"GO:1"},
	}}
	svc := NewService(f, ont)
	svc.SetGoTop(1)

	res, err := svc.SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	require.NotNil(t, res.Rows[0].GoSim)
	assert.Equal(t, 2, *res.Rows[0].GoSim)
	assert.Equal(t, 3, *res.Rows[0].MaxGoSim)
	assert.Nil(t, res.Rows[1].GoSim, "rows past the top keep no value")
	assert.Equal(t, 1, ont.overlap)
}

func TestSearchCanned_GOQueryWithoutTerms(t *testing.T) {
	ont := &fakeOntology{loaded: true, terms: map[string][]string{"G2": {"GO:1"}}}
	svc := NewService(scenarioSource(), ont)

	res, err := svc.SearchCanned(10, Query{Genes: []model.Gene{g1}, Stringency: 1})
	require.NoError(t, err)
	require.NotNil(t, res.Rows[0].GoSim)
	assert.Equal(t, 0, *res.Rows[0].GoSim)
	assert.Equal(t, 0, ont.overlap)
}

func TestSearch_DelegatesToCanned(t *testing.T) {
	f := scenarioSource()
	res, err := NewService(f, nil).Search(Query{Genes: []model.Gene{g1}, Stringency: 2}, InteractiveStrategy{})
	require.NoError(t, err)
	assert.True(t, res.Canned)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "310", res.Rows[0].DatasetVector)
	assert.Zero(t, f.probeLinkCalls.Load())
}

// probeSource has probe-level links only: G1-G2 positive in D1 and D2 (D2
// through a non-specific probe) and G1-G3 negative in D1.
func probeSource() *fakeSource {
	f := newFakeSource()
	f.sets = nil
	f.analyses = nil
	f.probeLinks[g1.ID] = []model.ProbeLink{
		{ID: 2, FoundGene: g3, NegativeDatasets: []int64{d1}},
		{ID: 1, FoundGene: g2, PositiveDatasets: []int64{d1, d2}, NonSpecificDatasets: []int64{d2}},
	}
	return f
}

func TestSearch_ProbeLevel(t *testing.T) {
	f := probeSource()
	res, err := NewService(f, nil).Search(Query{Genes: []model.Gene{g1}, Stringency: 1}, InteractiveStrategy{})
	require.NoError(t, err)
	assert.False(t, res.Canned)
	assert.Zero(t, f.geneLinkCalls.Load())
	require.Len(t, res.Rows, 2)

	assert.Equal(t, "G2", res.Rows[0].FoundGene.Symbol)
	assert.Equal(t, 2, res.Rows[0].PosSupp)
	assert.Equal(t, 1, res.Rows[0].NonSpecPosSupp)
	assert.Equal(t, "321", res.Rows[0].DatasetVector)
	assert.Equal(t, 3, res.Rows[0].NumTestedIn)

	assert.Equal(t, "G3", res.Rows[1].FoundGene.Symbol)
	assert.Equal(t, 1, res.Rows[1].NegSupp)
	assert.Equal(t, "300", res.Rows[1].DatasetVector)
	assert.Equal(t, 1, res.Rows[1].NumTestedIn)

	assert.Equal(t, 2, res.Summaries["G1"].LinksFound)
}

func TestSearch_ProbeLevelDroppedRowsNotCounted(t *testing.T) {
	res, err := NewService(probeSource(), nil).Search(Query{Genes: []model.Gene{g1}, Stringency: 2}, InteractiveStrategy{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	for _, ds := range res.DatasetSummaries {
		assert.Equal(t, 1, ds.LinkCount)
	}
	assert.Len(t, res.DatasetSummaries, 2, "only the retained G2 link counts")
}

func TestSearch_ForceProbeLevel(t *testing.T) {
	f := scenarioSource()
	f.probeLinks = probeSource().probeLinks

	res, err := NewService(f, nil).Search(Query{Genes: []model.Gene{g1}, Stringency: 1, ForceProbeLevel: true}, InteractiveStrategy{})
	require.NoError(t, err)
	assert.False(t, res.Canned)
	assert.Zero(t, f.geneLinkCalls.Load())
}

func TestSearch_NoAnalysisFallsBackToProbeLevel(t *testing.T) {
	f := probeSource()
	base := newFakeSource()
	f.sets = base.sets
	// Two analyses, neither enabled.
	f.analyses = append(base.analyses, base.analyses[0])
	f.analyses[0].Enabled = false
	f.analyses[1].Enabled = false
	f.analyses[1].ID = 6

	res, err := NewService(f, nil).Search(Query{Genes: []model.Gene{g1}, Stringency: 1}, InteractiveStrategy{})
	require.NoError(t, err)
	assert.False(t, res.Canned)
	assert.Len(t, res.Rows, 2)
	assert.Zero(t, f.geneLinkCalls.Load())
}

// narrowAnalysisSource has an analysis over D1 and D2 only (collection 12)
// next to a wider collection 9 holding D1 to D3.
func narrowAnalysisSource() *fakeSource {
	f := newFakeSource()
	f.sets = []model.DatasetSet{
		{ID: 9, Name: "human wide", TaxonID: human, DatasetIDs: []int64{d1, d2, d3}},
		{ID: 12, Name: "human narrow", TaxonID: human, DatasetIDs: []int64{d1, d2}},
	}
	f.analyses[0].DatasetSetID = 12
	f.analyses[0].DatasetIDs = []int64{d1, d2}
	f.addLink(7, g1, g2, 0.8, []int64{d1, d2}, []int64{d1, d2}, []int64{d1})
	f.probeLinks = probeSource().probeLinks
	return f
}

func TestSearch_AnalysisNotCoveringRequestUsesProbeLevel(t *testing.T) {
	f := narrowAnalysisSource()

	res, err := NewService(f, nil).Search(Query{
		Genes:      []model.Gene{g1},
		DatasetIDs: []int64{d1, d2, d3},
		Stringency: 1,
	}, InteractiveStrategy{})
	require.NoError(t, err)

	assert.False(t, res.Canned)
	assert.Equal(t, []int64{d1, d2, d3}, res.Datasets, "no requested dataset dropped")
	assert.Zero(t, f.geneLinkCalls.Load())
	assert.Equal(t, int32(1), f.probeLinkCalls.Load())
	require.Len(t, res.Rows, 2)
	assert.Len(t, res.Rows[0].DatasetVector, 3)
	assert.Equal(t, 3, res.Summaries["G1"].DatasetsAvailable)
}

func TestSearch_AnalysisCoveringRequestDelegates(t *testing.T) {
	f := narrowAnalysisSource()

	res, err := NewService(f, nil).Search(Query{
		Genes:      []model.Gene{g1},
		DatasetIDs: []int64{d1, d2},
		Stringency: 1,
	}, InteractiveStrategy{})
	require.NoError(t, err)

	assert.True(t, res.Canned)
	assert.Equal(t, []int64{d1, d2}, res.Datasets)
	assert.Zero(t, f.probeLinkCalls.Load())
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "32", res.Rows[0].DatasetVector)
}

func TestSearchCanned_SetWithoutOwnAnalysis(t *testing.T) {
	f := narrowAnalysisSource()

	_, err := NewService(f, nil).SearchCanned(9, Query{Genes: []model.Gene{g1}, Stringency: 1})
	assert.ErrorIs(t, err, model.ErrAnalysisUnavailable)
	assert.Zero(t, f.geneLinkCalls.Load())

	res, err := NewService(f, nil).SearchCanned(12, Query{Genes: []model.Gene{g1}, Stringency: 1})
	require.NoError(t, err)
	assert.True(t, res.Canned)
	assert.Equal(t, []int64{d1, d2}, res.Datasets)
}

func TestSearch_ProbeLevelQueryGenesOnlyDeduplicates(t *testing.T) {
	f := probeSource()
	// G2's pass finds the G1-G2 pair again from the other side.
	f.probeLinks[g2.ID] = []model.ProbeLink{
		{ID: 3, FoundGene: g1, PositiveDatasets: []int64{d1, d2}},
	}

	res, err := NewService(f, nil).Search(Query{
		Genes:          []model.Gene{g1, g2},
		Stringency:     1,
		QueryGenesOnly: true,
	}, InteractiveStrategy{})
	require.NoError(t, err)

	assert.False(t, res.Canned)
	require.Len(t, res.Rows, 1, "G1-G3 is outside the query and G2-G1 repeats G1-G2")
	assert.Equal(t, "G1", res.Rows[0].QueryGene.Symbol)
	assert.Equal(t, "G2", res.Rows[0].FoundGene.Symbol)
	assert.Equal(t, 1, res.Summaries["G1"].LinksFound)
	assert.Equal(t, 1, res.Summaries["G2"].LinksFound)
}

func TestSearch_InteractiveLimit(t *testing.T) {
	res, err := NewService(probeSource(), nil).Search(Query{Genes: []model.Gene{g1}, Stringency: 1}, InteractiveStrategy{Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "G2", res.Rows[0].FoundGene.Symbol)
}

func TestSearch_InteractiveTestedInBound(t *testing.T) {
	res, err := NewService(probeSource(), nil).Search(Query{Genes: []model.Gene{g1}, Stringency: 1}, InteractiveStrategy{MaxTestedIn: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 3, res.Rows[0].NumTestedIn)
	// G3 falls past the bound and only counts its supporting dataset.
	assert.Equal(t, 1, res.Rows[1].NumTestedIn)
}

func TestSearch_EmptyStates(t *testing.T) {
	t.Run("gene never tested", func(t *testing.T) {
		f := probeSource()
		delete(f.tested, g1.ID)
		res, err := NewService(f, nil).Search(Query{Genes: []model.Gene{g1}}, InteractiveStrategy{})
		require.NoError(t, err)
		assert.True(t, res.Empty())
		assert.Equal(t, StateNotTested, res.ErrorState)
	})

	t.Run("requested datasets without data", func(t *testing.T) {
		res, err := NewService(probeSource(), nil).Search(Query{Genes: []model.Gene{g1}, DatasetIDs: []int64{999}}, InteractiveStrategy{})
		require.NoError(t, err)
		assert.True(t, res.Empty())
		assert.Equal(t, "No experiments have coexpression data for G1", res.ErrorState)
	})

	t.Run("only troubled datasets", func(t *testing.T) {
		f := probeSource()
		for id, d := range f.datasets {
			d.Troubled = true
			f.datasets[id] = d
		}
		res, err := NewService(f, nil).Search(Query{Genes: []model.Gene{g1}}, InteractiveStrategy{})
		require.NoError(t, err)
		assert.Equal(t, StateNoExperiments, res.ErrorState)
	})
}

func TestSearch_BulkStrategy(t *testing.T) {
	f := probeSource()
	u, err := index.NewUniverse([]int64{d1, d2, d3})
	require.NoError(t, err)
	cache := testedin.NewBatch(f, u)

	for range 2 {
		res, err := NewService(f, nil).Search(Query{Genes: []model.Gene{g1}, Stringency: 1}, BulkStrategy{Cache: cache})
		require.NoError(t, err)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "321", res.Rows[0].DatasetVector)
		assert.Equal(t, "300", res.Rows[1].DatasetVector)
	}
	assert.Equal(t, 3, cache.Len())
}

func TestSearch_BulkStrategyUniverseMismatch(t *testing.T) {
	f := probeSource()
	u, err := index.NewUniverse([]int64{d1})
	require.NoError(t, err)

	_, err = NewService(f, nil).Search(Query{Genes: []model.Gene{g1}}, BulkStrategy{Cache: testedin.NewBatch(f, u)})
	assert.ErrorIs(t, err, testedin.ErrUniverseMismatch)
}

func TestSearch_BulkWithoutGO(t *testing.T) {
	ont := &fakeOntology{loaded: true, terms: map[string][]string{"G1": {"GO:1"}, "G2": {"GO:1"}}}
	f := probeSource()
	u, err := index.NewUniverse([]int64{d1, d2, d3})
	require.NoError(t, err)

	res, err := NewService(f, ont).Search(Query{Genes: []model.Gene{g1}}, BulkStrategy{Cache: testedin.NewBatch(f, u)})
	require.NoError(t, err)
	for _, r := range res.Rows {
		assert.Nil(t, r.GoSim)
	}
	assert.Equal(t, 0, ont.calls)
}

func TestSearch_Deterministic(t *testing.T) {
	svc := NewService(probeSource(), nil)
	q := Query{Genes: []model.Gene{g1}, Stringency: 1}

	first, err := svc.Search(q, InteractiveStrategy{})
	require.NoError(t, err)
	second, err := svc.Search(q, InteractiveStrategy{})
	require.NoError(t, err)
	assert.Equal(t, first.Rows, second.Rows)
	assert.NotEqual(t, first.QueryID, second.QueryID)
}

func TestSearch_StringencyDefaultsToOne(t *testing.T) {
	res, err := NewService(probeSource(), nil).Search(Query{Genes: []model.Gene{g1}, Stringency: -3}, InteractiveStrategy{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}
