package coexpression

import (
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/model"
	"github.com/inodb/vibe-coexp/internal/support"
)

// assembler turns classified links into rows and summaries for one request.
// The seen set spans all query genes so an undirected pair yields one row.
type assembler struct {
	universe   *index.Universe
	stringency int
	logger     *zap.Logger

	seen      map[model.LinkKey]struct{}
	summaries map[string]*Summary
	datasets  []DatasetSummary
}

func newAssembler(u *index.Universe, stringency int, logger *zap.Logger) *assembler {
	return &assembler{
		universe:   u,
		stringency: stringency,
		logger:     logger,
		seen:       make(map[model.LinkKey]struct{}),
		summaries:  make(map[string]*Summary),
	}
}

// candidate is one link as seen from a query gene.
type candidate struct {
	linkID     int64
	analysisID int64
	found      model.Gene
	evidence   support.Evidence
}

// geneAssembly collects the rows of one query gene.
type geneAssembly struct {
	a        *assembler
	query    model.Gene
	summary  *Summary
	rows     []ResultRow
	byFound  map[int64]int64 // found gene id -> link id of its row
	tested   map[int64]struct{}
	specific map[int64]struct{}
	counts   map[int64]int // supporting dataset -> links
}

func (a *assembler) begin(query model.Gene) *geneAssembly {
	s, ok := a.summaries[query.Symbol]
	if !ok {
		s = &Summary{DatasetsAvailable: a.universe.Len()}
		a.summaries[query.Symbol] = s
	}
	return &geneAssembly{
		a:        a,
		query:    query,
		summary:  s,
		byFound:  make(map[int64]int64),
		tested:   make(map[int64]struct{}),
		specific: make(map[int64]struct{}),
		counts:   make(map[int64]int),
	}
}

// add classifies one candidate. Links below stringency are dropped; with
// countDropped their supporting datasets still enter the per-dataset counts.
func (g *geneAssembly) add(c candidate, countDropped bool) error {
	key := model.PairKey(g.query.ID, c.found.ID)
	cl, err := support.Classify(key, c.evidence, g.a.universe)
	if err != nil {
		return err
	}

	if !cl.Meets(g.a.stringency) {
		if countDropped {
			g.count(cl.Supporting)
		}
		return nil
	}

	if prev, ok := g.byFound[c.found.ID]; ok {
		if prev != c.linkID {
			g.a.logger.Warn("duplicate link for found gene, keeping first",
				zap.String("query_gene", g.query.Symbol),
				zap.String("found_gene", c.found.Symbol),
				zap.Int64("kept_link", prev),
				zap.Int64("dropped_link", c.linkID),
				zap.Int64("analysis", c.analysisID))
			duplicateLinksDropped.Inc()
		}
		return nil
	}
	g.byFound[c.found.ID] = c.linkID

	g.summary.LinksFound++
	if cl.PosSupp > 0 {
		g.summary.LinksMetPositiveStringency++
	}
	if cl.NegSupp > 0 {
		g.summary.LinksMetNegativeStringency++
	}
	for _, id := range cl.Testing {
		g.tested[id] = struct{}{}
	}
	for _, id := range cl.Specific {
		g.specific[id] = struct{}{}
	}
	g.count(cl.Supporting)

	if _, dup := g.a.seen[key]; dup {
		return nil
	}
	g.a.seen[key] = struct{}{}

	g.rows = append(g.rows, ResultRow{
		QueryGene:          g.query,
		FoundGene:          c.found,
		PosSupp:            cl.PosSupp,
		NegSupp:            cl.NegSupp,
		NonSpecPosSupp:     cl.NonSpecPosSupp,
		NonSpecNegSupp:     cl.NonSpecNegSupp,
		NumTestedIn:        len(cl.Testing),
		DatasetVector:      cl.Vector,
		SortKey:            sortKey(cl.Support(), c.found.Symbol),
		SupportingDatasets: cl.Supporting,
		linkID:             c.linkID,
	})
	return nil
}

func (g *geneAssembly) count(supporting []int64) {
	for _, id := range supporting {
		g.counts[id]++
	}
}

// finish ranks the rows and folds the per-gene sets into the summary.
func (g *geneAssembly) finish() []ResultRow {
	g.summary.DatasetsTested = max(g.summary.DatasetsTested, len(g.tested))
	g.summary.DatasetsWithSpecificProbes = max(g.summary.DatasetsWithSpecificProbes, len(g.specific))

	for _, id := range g.a.universe.IDs() {
		if n := g.counts[id]; n > 0 {
			g.a.datasets = append(g.a.datasets, DatasetSummary{
				DatasetID: id,
				QueryGene: g.query.Symbol,
				LinkCount: n,
			})
		}
	}

	rank(g.rows)
	return g.rows
}

// rank sorts rows by descending support, ties by ascending found symbol.
func rank(rows []ResultRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].SortKey < rows[j].SortKey
	})
}
