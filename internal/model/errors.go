package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery marks a query the caller must correct: too few genes
	// for a query-genes-only search, a taxon mismatch, or an unknown
	// dataset collection.
	ErrInvalidQuery = errors.New("invalid coexpression query")

	// ErrAnalysisUnavailable means no precomputed analysis exists for a taxon.
	ErrAnalysisUnavailable = errors.New("no gene coexpression analysis available")

	// ErrAmbiguousAnalysis means more than one analysis is enabled for a taxon.
	ErrAmbiguousAnalysis = errors.New("more than one gene coexpression analysis enabled")
)

// InconsistencyError reports data that breaks an invariant the pipeline
// relies on, such as specific ⊆ supporting ⊆ tested. It aborts the query.
type InconsistencyError struct {
	Link   LinkKey
	Detail string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("internal consistency error for genes %d-%d: %s", e.Link.Lo, e.Link.Hi, e.Detail)
}
