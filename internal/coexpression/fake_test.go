package coexpression

import (
	"sort"
	"sync/atomic"

	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/model"
)

const (
	human int64 = 9606
	d1    int64 = 101
	d2    int64 = 102
	d3    int64 = 103
)

var (
	g1 = model.Gene{ID: 1, Symbol: "G1", TaxonID: human, Known: true}
	g2 = model.Gene{ID: 2, Symbol: "G2", TaxonID: human, Known: true}
	g3 = model.Gene{ID: 3, Symbol: "G3", TaxonID: human, Known: true}
)

// fakeSource is an in-memory Source.
type fakeSource struct {
	datasets   map[int64]model.Dataset
	sets       []model.DatasetSet
	analyses   []model.Analysis
	links      map[int64][]model.Link
	probeLinks map[int64][]model.ProbeLink
	tested     map[int64][]int64 // gene -> datasets

	geneLinkCalls  atomic.Int32
	probeLinkCalls atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		datasets: map[int64]model.Dataset{
			d1: {ID: d1, ShortName: "GSE1", TaxonID: human},
			d2: {ID: d2, ShortName: "GSE2", TaxonID: human},
			d3: {ID: d3, ShortName: "GSE3", TaxonID: human},
		},
		sets: []model.DatasetSet{
			{ID: 10, Name: "human all", TaxonID: human, DatasetIDs: []int64{d1, d2, d3}},
		},
		analyses: []model.Analysis{
			{ID: 5, Name: "human gene coexpression", TaxonID: human, Enabled: true, DatasetSetID: 10, DatasetIDs: []int64{d1, d2, d3}},
		},
		links:      make(map[int64][]model.Link),
		probeLinks: make(map[int64][]model.ProbeLink),
		tested: map[int64][]int64{
			1: {d1, d2, d3},
			2: {d1, d2, d3},
			3: {d1},
		},
	}
}

// universe is the analysis universe links are encoded against.
func (f *fakeSource) universe() *index.Universe {
	u, err := index.NewUniverse(f.analyses[0].DatasetIDs)
	if err != nil {
		panic(err)
	}
	return u
}

// addLink stores a precomputed link under the first gene.
func (f *fakeSource) addLink(id int64, first, second model.Gene, effect float64, supporting, tested, specific []int64) model.Link {
	u := f.universe()
	l := model.Link{
		ID:          id,
		FirstGene:   first,
		SecondGene:  second,
		Effect:      effect,
		Supporting:  u.Encode(supporting),
		Tested:      u.Encode(tested),
		Specific:    u.Encode(specific),
		AnalysisID:  f.analyses[0].ID,
		NumDatasets: len(supporting),
	}
	f.links[first.ID] = append(f.links[first.ID], l)
	return l
}

func (f *fakeSource) AnalysesForTaxon(taxonID int64) ([]model.Analysis, error) {
	var out []model.Analysis
	for _, a := range f.analyses {
		if a.TaxonID == taxonID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeSource) DatasetSet(id int64) (*model.DatasetSet, error) {
	for i := range f.sets {
		if f.sets[i].ID == id {
			return &f.sets[i], nil
		}
	}
	return nil, nil
}

func (f *fakeSource) Datasets(ids []int64) ([]model.Dataset, error) {
	var out []model.Dataset
	for _, id := range ids {
		if d, ok := f.datasets[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeSource) DatasetsForGenes(geneIDs []int64) ([]int64, error) {
	var out []int64
	for _, g := range geneIDs {
		out = append(out, f.tested[g]...)
	}
	return model.SortedIDs(out), nil
}

func (f *fakeSource) GeneLinks(genes []model.Gene, _, maxResults int, _ bool, _ *model.Analysis) (map[int64][]model.Link, error) {
	f.geneLinkCalls.Add(1)
	out := make(map[int64][]model.Link)
	for _, g := range genes {
		out[g.ID] = model.Take(f.links[g.ID], maxResults)
	}
	return out, nil
}

func (f *fakeSource) ProbeLinks(gene model.Gene, _ []int64, _ int, _ bool) (*model.ProbeLinkSet, error) {
	f.probeLinkCalls.Add(1)
	return &model.ProbeLinkSet{QueryGene: gene, Links: f.probeLinks[gene.ID]}, nil
}

func (f *fakeSource) TestedDatasets(geneID int64, datasetIDs []int64) ([]int64, error) {
	return model.Intersect(f.tested[geneID], datasetIDs), nil
}

func (f *fakeSource) TestedGenes(datasetID int64) ([]int64, error) {
	var out []int64
	for g, ds := range f.tested {
		for _, d := range ds {
			if d == datasetID {
				out = append(out, g)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// fakeOntology counts the lookups made against it.
type fakeOntology struct {
	loaded  bool
	terms   map[string][]string
	calls   int
	overlap int
}

func (o *fakeOntology) Loaded() bool {
	return o.loaded
}

func (o *fakeOntology) TermCount(g model.Gene) int {
	o.calls++
	return len(o.terms[g.Symbol])
}

func (o *fakeOntology) TermOverlap(g model.Gene, candidates []model.Gene) map[int64][]string {
	o.calls++
	o.overlap++
	out := make(map[int64][]string)
	for _, c := range candidates {
		var shared []string
		for _, a := range o.terms[g.Symbol] {
			for _, b := range o.terms[c.Symbol] {
				if a == b {
					shared = append(shared, a)
				}
			}
		}
		if len(shared) > 0 {
			out[c.ID] = shared
		}
	}
	return out
}
