package coexpression

import (
	"errors"

	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/testedin"
)

// Strategy selects how a search trades latency for completeness. It is
// implemented by InteractiveStrategy and BulkStrategy only.
type Strategy interface {
	resolver(src testedin.Source, u *index.Universe) (testedin.Resolver, error)
	limit() int
	enrich() bool
	// queryTestedIn reports whether the resolver needs the datasets the
	// query gene was tested in.
	queryTestedIn() bool
}

// InteractiveStrategy serves a single user-facing query: results are
// capped, tested-in lookups are bounded and the top rows get GO overlaps.
type InteractiveStrategy struct {
	// Limit caps the rows per query gene. 0 means no cap.
	Limit int
	// MaxTestedIn bounds the candidates whose tested-in sets are looked up
	// on the probe-level path. 0 means testedin.DefaultMaxCandidates.
	MaxTestedIn int
}

func (s InteractiveStrategy) resolver(src testedin.Source, _ *index.Universe) (testedin.Resolver, error) {
	return testedin.NewInteractive(src, s.MaxTestedIn), nil
}

func (s InteractiveStrategy) limit() int { return s.Limit }
func (s InteractiveStrategy) enrich() bool { return true }
func (s InteractiveStrategy) queryTestedIn() bool { return true }

// BulkStrategy serves many sequential queries of one batch job. Tested-in
// sets come from the job's cache and no enrichment is done.
type BulkStrategy struct {
	Cache *testedin.Batch
}

var errNoBatchCache = errors.New("bulk strategy without a tested-in cache")

func (s BulkStrategy) resolver(_ testedin.Source, u *index.Universe) (testedin.Resolver, error) {
	if s.Cache == nil {
		return nil, errNoBatchCache
	}
	if err := s.Cache.Covers(u); err != nil {
		return nil, err
	}
	return s.Cache, nil
}

func (s BulkStrategy) limit() int { return 0 }
func (s BulkStrategy) enrich() bool { return false }
func (s BulkStrategy) queryTestedIn() bool { return false }
