// Package coexpression retrieves gene coexpression results, either from a
// precomputed gene-to-gene analysis or live from probe-level links, and
// turns them into ranked rows with per-dataset support vectors.
package coexpression

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/model"
	"github.com/inodb/vibe-coexp/internal/support"
)

// Service runs coexpression searches. It keeps no per-query state, so one
// Service may serve concurrent searches.
type Service struct {
	src    Source
	ont    GeneOntology
	goTop  int
	logger *zap.Logger
}

// NewService creates a service over src. ont may be nil when no GO
// annotations are available.
func NewService(src Source, ont GeneOntology) *Service {
	return &Service{
		src:    src,
		ont:    ont,
		goTop:  DefaultGoTop,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and info messages.
func (s *Service) SetLogger(l *zap.Logger) {
	s.logger = l
}

// SetGoTop sets how many top rows per query gene get a GO overlap.
func (s *Service) SetGoTop(n int) {
	s.goTop = n
}

// Search runs an ad hoc search over the requested datasets. If a dataset
// collection with an enabled precomputed analysis covers every usable
// dataset, the precomputed links are used; otherwise the search falls back
// to probe-level links.
func (s *Service) Search(q Query, strategy Strategy) (*Result, error) {
	if strategy == nil {
		strategy = InteractiveStrategy{}
	}
	return s.run(func(queryID string, log *zap.Logger) (*Result, string, error) {
		return s.search(queryID, log, q, strategy)
	})
}

// SearchCanned searches the precomputed analysis of a dataset collection.
// q.DatasetIDs restricts the search to a subset of the collection.
func (s *Service) SearchCanned(setID int64, q Query) (*Result, error) {
	return s.run(func(queryID string, log *zap.Logger) (*Result, string, error) {
		q, err := normalize(q)
		if err != nil {
			return nil, pathNone, err
		}
		set, err := s.src.DatasetSet(setID)
		if err != nil {
			return nil, pathNone, fmt.Errorf("loading dataset set %d: %w", setID, err)
		}
		if set == nil {
			return nil, pathNone, fmt.Errorf("%w: unknown dataset set %d", model.ErrInvalidQuery, setID)
		}
		for _, g := range q.Genes {
			if g.TaxonID != set.TaxonID {
				return nil, pathNone, fmt.Errorf("%w: gene %s is not from the taxon of dataset set %q",
					model.ErrInvalidQuery, g.Symbol, set.Name)
			}
		}
		analysis, err := s.EnabledAnalysis(set.TaxonID)
		if err != nil {
			return nil, pathNone, err
		}
		if analysis.DatasetSetID != set.ID {
			return nil, pathNone, fmt.Errorf("%w for dataset set %d: analysis %q covers set %d",
				model.ErrAnalysisUnavailable, set.ID, analysis.Name, analysis.DatasetSetID)
		}
		res, err := s.canned(queryID, log, analysis, set.DatasetIDs, q, true, 0)
		return res, pathCanned, err
	})
}

// EnabledAnalysis selects the precomputed analysis to use for a taxon. A
// single analysis is used whether or not it is flagged enabled; among
// several, exactly one must be enabled.
func (s *Service) EnabledAnalysis(taxonID int64) (*model.Analysis, error) {
	analyses, err := s.src.AnalysesForTaxon(taxonID)
	if err != nil {
		return nil, fmt.Errorf("analyses for taxon %d: %w", taxonID, err)
	}
	switch len(analyses) {
	case 0:
		return nil, fmt.Errorf("%w for taxon %d", model.ErrAnalysisUnavailable, taxonID)
	case 1:
		return &analyses[0], nil
	}

	var enabled []*model.Analysis
	for i := range analyses {
		if analyses[i].Enabled {
			enabled = append(enabled, &analyses[i])
		}
	}
	switch len(enabled) {
	case 0:
		return nil, fmt.Errorf("%w for taxon %d: %d analyses, none enabled",
			model.ErrAnalysisUnavailable, taxonID, len(analyses))
	case 1:
		return enabled[0], nil
	}
	names := make([]string, len(enabled))
	for i, a := range enabled {
		names[i] = a.Name
	}
	return nil, fmt.Errorf("%w for taxon %d: %s", model.ErrAmbiguousAnalysis, taxonID, strings.Join(names, ", "))
}

func (s *Service) run(fn func(queryID string, log *zap.Logger) (*Result, string, error)) (*Result, error) {
	start := time.Now()
	queryID := uuid.NewString()
	log := s.logger.With(zap.String("query_id", queryID))

	res, path, err := fn(queryID, log)
	searchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		searchesTotal.WithLabelValues(path, "error").Inc()
		log.Debug("search failed", zap.String("path", path), zap.Error(err))
		return nil, err
	case res.Empty():
		searchesTotal.WithLabelValues(path, "empty").Inc()
		log.Info("nothing to search", zap.String("reason", res.ErrorState))
	default:
		searchesTotal.WithLabelValues(path, "ok").Inc()
		rowsEmitted.Add(float64(len(res.Rows)))
		log.Debug("search done",
			zap.String("path", path),
			zap.Int("datasets", len(res.Datasets)),
			zap.Int("rows", len(res.Rows)),
			zap.Duration("elapsed", time.Since(start)))
	}
	return res, nil
}

func (s *Service) search(queryID string, log *zap.Logger, q Query, strategy Strategy) (*Result, string, error) {
	q, err := normalize(q)
	if err != nil {
		return nil, pathNone, err
	}

	tested, err := s.src.DatasetsForGenes(model.GeneIDs(q.Genes))
	if err != nil {
		return nil, pathNone, fmt.Errorf("datasets for genes: %w", err)
	}
	if len(tested) == 0 {
		return emptyResult(queryID, StateNotTested), pathNone, nil
	}

	ids := tested
	if len(q.DatasetIDs) > 0 {
		ids = model.Intersect(tested, q.DatasetIDs)
		if len(ids) == 0 {
			return emptyResult(queryID, stateNoCoexpressionData(symbols(q.Genes))), pathNone, nil
		}
	}
	ids, err = s.usable(log, model.SortedIDs(ids))
	if err != nil {
		return nil, pathNone, err
	}
	if len(ids) == 0 {
		return emptyResult(queryID, StateNoExperiments), pathNone, nil
	}

	if !q.ForceProbeLevel {
		analysis, err := s.coveringAnalysis(log, q.Genes[0].TaxonID, ids)
		if err != nil {
			return nil, pathNone, err
		}
		if analysis != nil {
			sub := q
			sub.DatasetIDs = ids
			res, err := s.canned(queryID, log, analysis, analysis.DatasetIDs, sub, strategy.enrich(), strategy.limit())
			return res, pathCanned, err
		}
	}

	res, err := s.probeLevel(queryID, log, q, ids, strategy)
	return res, pathProbe, err
}

// usable drops troubled and unknown datasets. ids must be sorted.
func (s *Service) usable(log *zap.Logger, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	datasets, err := s.src.Datasets(ids)
	if err != nil {
		return nil, fmt.Errorf("loading datasets: %w", err)
	}
	out := make([]int64, 0, len(datasets))
	for _, d := range datasets {
		if d.Troubled {
			continue
		}
		out = append(out, d.ID)
	}
	if removed := len(ids) - len(out); removed > 0 {
		log.Debug("removed troubled or unknown datasets", zap.Int("removed", removed))
	}
	return model.SortedIDs(out), nil
}

// coveringAnalysis returns the taxon's analysis when its datasets include
// every dataset in ids, or nil when the search must use probe-level links.
func (s *Service) coveringAnalysis(log *zap.Logger, taxonID int64, ids []int64) (*model.Analysis, error) {
	analysis, err := s.EnabledAnalysis(taxonID)
	if errors.Is(err, model.ErrAnalysisUnavailable) {
		log.Info("no precomputed analysis, using probe-level links", zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !analysis.Covers(ids) {
		log.Info("precomputed analysis does not cover the request, using probe-level links",
			zap.String("analysis", analysis.Name),
			zap.Int("requested", len(ids)))
		return nil, nil
	}
	return analysis, nil
}

// canned classifies the stored links of analysis against the requested
// datasets among members. q.DatasetIDs empty means all members.
func (s *Service) canned(queryID string, log *zap.Logger, analysis *model.Analysis, members []int64, q Query, enrich bool, limit int) (*Result, error) {
	au, err := index.NewUniverse(analysis.DatasetIDs)
	if err != nil {
		return nil, fmt.Errorf("analysis %q: %w", analysis.Name, err)
	}

	requested := q.DatasetIDs
	if len(requested) == 0 {
		requested = members
	}
	ids, err := s.usable(log, au.Filter(model.Intersect(requested, members)))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return emptyResult(queryID, StateNoExperiments), nil
	}
	u, err := index.NewUniverse(ids)
	if err != nil {
		return nil, err
	}

	links, err := s.src.GeneLinks(q.Genes, q.Stringency, q.MaxResults, q.QueryGenesOnly, analysis)
	if err != nil {
		return nil, fmt.Errorf("gene links from analysis %q: %w", analysis.Name, err)
	}
	log.Debug("fetched precomputed links",
		zap.String("analysis", analysis.Name),
		zap.Int("datasets", u.Len()))

	inQuery := geneSet(q.Genes)
	asm := newAssembler(u, q.Stringency, log)
	res := &Result{
		QueryID:        queryID,
		Datasets:       u.IDs(),
		Canned:         true,
		KnownGenesOnly: q.KnownGenesOnly,
	}
	for _, g := range q.Genes {
		ga := asm.begin(g)
		for i := range links[g.ID] {
			l := &links[g.ID][i]
			found, ok := l.OtherGene(g)
			if !ok {
				return nil, &model.InconsistencyError{
					Link:   l.Key(),
					Detail: fmt.Sprintf("link %d returned for gene %d", l.ID, g.ID),
				}
			}
			if q.QueryGenesOnly && !inQuery[found.ID] {
				continue
			}
			if q.KnownGenesOnly && !found.Known {
				continue
			}

			supporting := au.Decode(l.Supporting)
			// Stored specific bits may include datasets that did not support
			// the link.
			specific := model.Intersect(au.Decode(l.Specific), supporting)
			if q.SpecificProbesOnly {
				supporting = specific
			}
			err := ga.add(candidate{
				linkID:     l.ID,
				analysisID: l.AnalysisID,
				found:      found,
				evidence: support.Evidence{
					Supporting: supporting,
					Testing:    au.Decode(l.Tested),
					Specific:   specific,
					Negative:   l.Negative(),
				},
			}, true)
			if err != nil {
				return nil, err
			}
		}
		res.Rows = append(res.Rows, s.finishGene(ga, enrich, limit)...)
	}
	res.Summaries = asm.summaries
	res.DatasetSummaries = asm.datasets
	return res, nil
}

// probeLevel builds rows from live probe-level links over the datasets ids.
func (s *Service) probeLevel(queryID string, log *zap.Logger, q Query, ids []int64, strategy Strategy) (*Result, error) {
	u, err := index.NewUniverse(ids)
	if err != nil {
		return nil, err
	}
	resolver, err := strategy.resolver(s.src, u)
	if err != nil {
		return nil, err
	}

	inQuery := geneSet(q.Genes)
	asm := newAssembler(u, q.Stringency, log)
	res := &Result{
		QueryID:        queryID,
		Datasets:       u.IDs(),
		KnownGenesOnly: q.KnownGenesOnly,
	}
	for _, g := range q.Genes {
		set, err := s.src.ProbeLinks(g, u.IDs(), q.Stringency, q.KnownGenesOnly)
		if err != nil {
			return nil, fmt.Errorf("probe links for %s: %w", g.Symbol, err)
		}
		ga := asm.begin(g)

		cands := probeCandidates(set, q, inQuery)
		if len(cands) > 0 {
			var queryTestedIn []int64
			if strategy.queryTestedIn() {
				queryTestedIn, err = s.src.TestedDatasets(g.ID, u.IDs())
				if err != nil {
					return nil, fmt.Errorf("tested datasets for %s: %w", g.Symbol, err)
				}
			}
			found := make([]int64, len(cands))
			for i, c := range cands {
				found[i] = c.found.ID
			}
			tested, err := resolver.Resolve(g.ID, queryTestedIn, found)
			if err != nil {
				return nil, err
			}

			for _, c := range cands {
				if t, ok := tested[c.found.ID]; ok {
					c.evidence.Testing = t
				} else {
					// Beyond the lookup bound: the supporting datasets are
					// the only ones known to have tested the pair.
					c.evidence.Testing = c.evidence.Supporting
				}
				if err := ga.add(c, false); err != nil {
					return nil, err
				}
			}
		}
		res.Rows = append(res.Rows, s.finishGene(ga, strategy.enrich(), strategy.limit())...)
	}
	res.Summaries = asm.summaries
	res.DatasetSummaries = asm.datasets
	return res, nil
}

// probeCandidates converts probe links to candidates ordered by descending
// support, so bounded tested-in lookups cover the best links first.
func probeCandidates(set *model.ProbeLinkSet, q Query, inQuery map[int64]bool) []candidate {
	if set == nil {
		return nil
	}
	type keyed struct {
		key string
		c   candidate
	}
	ranked := make([]keyed, 0, len(set.Links))
	for _, pl := range set.Links {
		if q.QueryGenesOnly && !inQuery[pl.FoundGene.ID] {
			continue
		}
		if q.KnownGenesOnly && !pl.FoundGene.Known {
			continue
		}
		supporting := model.SortedIDs(append(append([]int64(nil), pl.PositiveDatasets...), pl.NegativeDatasets...))
		if len(supporting) == 0 {
			continue
		}
		ranked = append(ranked, keyed{
			key: sortKey(len(supporting), pl.FoundGene.Symbol),
			c: candidate{
				linkID: pl.ID,
				found:  pl.FoundGene,
				evidence: support.Evidence{
					Supporting: supporting,
					Specific:   without(supporting, pl.NonSpecificDatasets),
					Negative:   len(pl.NegativeDatasets) > len(pl.PositiveDatasets),
				},
			},
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].key < ranked[j].key })

	cands := make([]candidate, len(ranked))
	for i, r := range ranked {
		cands[i] = r.c
	}
	return cands
}

func (s *Service) finishGene(ga *geneAssembly, enrich bool, limit int) []ResultRow {
	rows := model.Take(ga.finish(), limit)
	if enrich {
		annotateGO(s.ont, ga.query, rows, s.goTop)
	}
	return rows
}

// normalize validates q and applies defaults.
func normalize(q Query) (Query, error) {
	if len(q.Genes) == 0 {
		return q, fmt.Errorf("%w: no query genes", model.ErrInvalidQuery)
	}
	if q.QueryGenesOnly && len(q.Genes) < 2 {
		return q, fmt.Errorf("%w: links among query genes need at least two genes", model.ErrInvalidQuery)
	}
	for _, g := range q.Genes[1:] {
		if !g.SameTaxon(q.Genes[0]) {
			return q, fmt.Errorf("%w: %s and %s are from different taxa",
				model.ErrInvalidQuery, q.Genes[0].Symbol, g.Symbol)
		}
	}
	if q.Stringency < 1 {
		q.Stringency = 1
	}
	return q, nil
}

func geneSet(genes []model.Gene) map[int64]bool {
	m := make(map[int64]bool, len(genes))
	for _, g := range genes {
		m[g.ID] = true
	}
	return m
}

func symbols(genes []model.Gene) string {
	s := make([]string, len(genes))
	for i, g := range genes {
		s[i] = g.Symbol
	}
	return strings.Join(s, ", ")
}

// without returns the members of ids not in drop.
func without(ids, drop []int64) []int64 {
	d := make(map[int64]struct{}, len(drop))
	for _, id := range drop {
		d[id] = struct{}{}
	}
	var out []int64
	for _, id := range ids {
		if _, ok := d[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
