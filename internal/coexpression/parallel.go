package coexpression

import (
	"runtime"
	"sync"
)

// SearchItem holds one query of a multi-query run.
type SearchItem struct {
	Seq   int
	Query Query
	Extra any // caller-specific data (e.g. the input line)
}

// SearchResult holds the outcome of one SearchItem.
type SearchResult struct {
	Seq    int
	Query  Query
	Result *Result
	Err    error
	Extra  any
}

// ParallelSearch runs interactive searches using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
//
// Only the interactive strategy is accepted: a batch tested-in cache must
// not be shared between goroutines.
func (s *Service) ParallelSearch(items <-chan SearchItem, strategy InteractiveStrategy, workers int) <-chan SearchResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan SearchResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				res, err := s.Search(item.Query, strategy)
				results <- SearchResult{
					Seq:    item.Seq,
					Query:  item.Query,
					Result: res,
					Err:    err,
					Extra:  item.Extra,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// Out-of-order results are buffered until the next expected sequence number
// arrives. Blocks until the results channel is closed.
func OrderedCollect(results <-chan SearchResult, fn func(SearchResult) error) error {
	pending := make(map[int]SearchResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
