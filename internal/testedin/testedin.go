// Package testedin answers "was this gene pair tested in dataset D?" for the
// candidates of a coexpression query.
//
// Two strategies are provided. Interactive asks the data source directly for
// a bounded number of candidates and keeps nothing between calls. Batch scans
// every dataset once, records a bit vector per gene and then answers in O(1);
// it is meant for one bulk job over a fixed dataset universe.
package testedin

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/model"
)

// DefaultMaxCandidates bounds the interactive strategy.
const DefaultMaxCandidates = 200

// ErrUniverseMismatch is returned when a batch cache is asked about datasets
// it was not built for.
var ErrUniverseMismatch = errors.New("tested-in cache built for a different dataset universe")

var (
	sourceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coexp_testedin_source_lookups_total",
		Help: "Tested-in queries sent to the data source",
	}, []string{"strategy"})

	batchGenes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coexp_testedin_batch_genes",
		Help: "Genes held by the batch tested-in cache",
	})
)

// Source is the upstream store of tested-in facts.
type Source interface {
	// TestedDatasets returns the members of datasetIDs in which the gene
	// had at least one eligible probe.
	TestedDatasets(geneID int64, datasetIDs []int64) ([]int64, error)
	// TestedGenes returns every gene tested in the dataset.
	TestedGenes(datasetID int64) ([]int64, error)
}

// Resolver computes the datasets in which a query gene and each candidate
// were jointly tested. Candidates without an entry in the result were not
// resolved (they fell outside the strategy's bound).
type Resolver interface {
	Resolve(query int64, queryTestedIn []int64, candidates []int64) (map[int64][]int64, error)
}

// Interactive resolves at most MaxCandidates candidates per call directly
// against the source.
type Interactive struct {
	src           Source
	maxCandidates int
}

// NewInteractive creates an interactive resolver. A non-positive max uses
// DefaultMaxCandidates.
func NewInteractive(src Source, maxCandidates int) *Interactive {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Interactive{src: src, maxCandidates: maxCandidates}
}

// MaxCandidates returns the candidate bound.
func (r *Interactive) MaxCandidates() int { return r.maxCandidates }

// Resolve looks up the first MaxCandidates candidates, limited to the
// datasets the query gene was tested in.
func (r *Interactive) Resolve(query int64, queryTestedIn []int64, candidates []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	for _, c := range model.Take(candidates, r.maxCandidates) {
		ids, err := r.src.TestedDatasets(c, queryTestedIn)
		sourceLookups.WithLabelValues("interactive").Inc()
		if err != nil {
			return nil, fmt.Errorf("tested datasets for gene %d: %w", c, err)
		}
		joint := model.SortedIDs(model.Intersect(ids, queryTestedIn))
		if len(joint) == 0 {
			return nil, &model.InconsistencyError{
				Link:   model.PairKey(query, c),
				Detail: "linked genes were never tested together",
			}
		}
		out[c] = joint
	}
	return out, nil
}

// Batch caches, per gene, the datasets of one universe it was tested in.
// Bit positions are relative to that universe only. A Batch is not safe for
// concurrent use and must not outlive the job it was built for.
type Batch struct {
	src      Source
	universe *index.Universe
	genes    map[int64]index.Bits
	scanned  bool
	logger   *zap.Logger
}

// NewBatch creates an empty cache bound to universe u.
func NewBatch(src Source, u *index.Universe) *Batch {
	return &Batch{
		src:      src,
		universe: u,
		genes:    make(map[int64]index.Bits),
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger for progress messages.
func (b *Batch) SetLogger(l *zap.Logger) {
	b.logger = l
}

// Universe returns the universe the cache is bound to.
func (b *Batch) Universe() *index.Universe { return b.universe }

// Len returns the number of genes with a cached vector.
func (b *Batch) Len() int { return len(b.genes) }

// Covers returns ErrUniverseMismatch unless every dataset of u is part of
// the cache's universe.
func (b *Batch) Covers(u *index.Universe) error {
	for _, id := range u.IDs() {
		if !b.universe.Contains(id) {
			return fmt.Errorf("%w: dataset %d not in cached universe (fingerprint %x)",
				ErrUniverseMismatch, id, b.universe.Fingerprint())
		}
	}
	return nil
}

// TestedIn returns the cached datasets a gene was tested in, scanning the
// source on first use.
func (b *Batch) TestedIn(gene int64) ([]int64, error) {
	if err := b.ensure(gene); err != nil {
		return nil, err
	}
	return b.universe.Decode(b.genes[gene]), nil
}

// Resolve computes joint tested-in sets for every candidate. queryTestedIn
// is not needed: the cached vectors already cover the whole universe.
func (b *Batch) Resolve(query int64, _ []int64, candidates []int64) (map[int64][]int64, error) {
	if err := b.ensure(append([]int64{query}, candidates...)...); err != nil {
		return nil, err
	}
	qbits := b.genes[query]
	out := make(map[int64][]int64, len(candidates))
	for _, c := range candidates {
		joint := b.universe.Decode(qbits.And(b.genes[c]))
		if len(joint) == 0 {
			return nil, &model.InconsistencyError{
				Link:   model.PairKey(query, c),
				Detail: "linked genes were never tested together",
			}
		}
		out[c] = joint
	}
	return out, nil
}

// ensure scans the source the first time an unknown gene is requested.
// Genes still unknown after the scan were tested nowhere.
func (b *Batch) ensure(genes ...int64) error {
	if b.scanned {
		return nil
	}
	for _, g := range genes {
		if _, ok := b.genes[g]; !ok {
			return b.scan()
		}
	}
	return nil
}

func (b *Batch) scan() error {
	n := b.universe.Len()
	for p, ds := range b.universe.IDs() {
		genes, err := b.src.TestedGenes(ds)
		sourceLookups.WithLabelValues("batch").Inc()
		if err != nil {
			return fmt.Errorf("genes tested in dataset %d: %w", ds, err)
		}
		for _, g := range genes {
			bits, ok := b.genes[g]
			if !ok {
				bits = index.NewBits(n)
			}
			bits.Set(p)
			b.genes[g] = bits
		}
	}
	b.scanned = true
	batchGenes.Set(float64(len(b.genes)))
	b.logger.Info("built tested-in cache",
		zap.Int("datasets", n),
		zap.Int("genes", len(b.genes)))
	return nil
}
