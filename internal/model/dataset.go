package model

import "sort"

// Dataset is an expression experiment that may have contributed coexpression data.
type Dataset struct {
	ID        int64
	ShortName string
	Name      string
	TaxonID   int64
	Troubled  bool // curation flag; troubled datasets never enter an analysis
}

// DatasetSet is a named collection of datasets from one taxon.
type DatasetSet struct {
	ID         int64
	Name       string
	TaxonID    int64
	DatasetIDs []int64
}

// ContainsAll reports whether every id in ids is a member of the set.
func (s *DatasetSet) ContainsAll(ids []int64) bool {
	members := make(map[int64]struct{}, len(s.DatasetIDs))
	for _, id := range s.DatasetIDs {
		members[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := members[id]; !ok {
			return false
		}
	}
	return true
}

// Analysis is a precomputed gene-to-gene coexpression analysis. The bit
// vectors of its links are encoded against DatasetIDs.
type Analysis struct {
	ID           int64
	Name         string
	TaxonID      int64
	Enabled      bool
	DatasetSetID int64
	DatasetIDs   []int64
}

// Covers reports whether every dataset in ids is part of the analysis.
func (a *Analysis) Covers(ids []int64) bool {
	ids = SortedIDs(ids)
	return len(Intersect(ids, a.DatasetIDs)) == len(ids)
}

// SortedIDs returns a sorted, de-duplicated copy of ids.
func SortedIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Intersect returns the members of a that are also in b, in the order of a.
func Intersect(a, b []int64) []int64 {
	in := make(map[int64]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	var out []int64
	for _, id := range a {
		if _, ok := in[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
