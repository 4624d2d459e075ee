// Package index maps dataset ids onto the bit positions used to encode
// per-dataset membership of coexpression links.
package index

import (
	"errors"
	"hash/fnv"
	"sort"
	"strconv"
)

// ErrEmptyUniverse is returned when a universe is built from no datasets.
var ErrEmptyUniverse = errors.New("dataset universe is empty")

// IndexOf maps each distinct id to its rank in ascending order.
// The result does not depend on the order of ids.
func IndexOf(ids []int64) map[int64]int {
	sorted := sortedUnique(ids)
	m := make(map[int64]int, len(sorted))
	for i, id := range sorted {
		m[id] = i
	}
	return m
}

// Universe is a fixed, ordered set of datasets. Bit vectors are only
// meaningful relative to the universe they were encoded against.
type Universe struct {
	ids         []int64
	pos         map[int64]int
	fingerprint uint64
}

// NewUniverse builds a universe from dataset ids (any order, duplicates allowed).
func NewUniverse(ids []int64) (*Universe, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyUniverse
	}
	sorted := sortedUnique(ids)
	u := &Universe{
		ids: sorted,
		pos: make(map[int64]int, len(sorted)),
	}
	h := fnv.New64a()
	for i, id := range sorted {
		u.pos[id] = i
		h.Write(strconv.AppendInt(nil, id, 10))
		h.Write([]byte{','})
	}
	u.fingerprint = h.Sum64()
	return u, nil
}

// Len returns the number of datasets in the universe.
func (u *Universe) Len() int { return len(u.ids) }

// IDs returns the dataset ids in position order. The slice must not be modified.
func (u *Universe) IDs() []int64 { return u.ids }

// Position returns the position of a dataset id.
func (u *Universe) Position(id int64) (int, bool) {
	p, ok := u.pos[id]
	return p, ok
}

// ID returns the dataset id at position p.
func (u *Universe) ID(p int) int64 { return u.ids[p] }

// Contains reports whether the dataset is part of the universe.
func (u *Universe) Contains(id int64) bool {
	_, ok := u.pos[id]
	return ok
}

// Fingerprint identifies the id set. Two universes with the same ids have
// the same fingerprint.
func (u *Universe) Fingerprint() uint64 { return u.fingerprint }

// Same reports whether o has the same datasets as u.
func (u *Universe) Same(o *Universe) bool {
	if u == o {
		return true
	}
	if u == nil || o == nil || u.fingerprint != o.fingerprint || len(u.ids) != len(o.ids) {
		return false
	}
	for i := range u.ids {
		if u.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}

// Encode returns the bit vector with a bit set for every id in the universe.
// Ids outside the universe are ignored.
func (u *Universe) Encode(ids []int64) Bits {
	b := NewBits(len(u.ids))
	for _, id := range ids {
		if p, ok := u.pos[id]; ok {
			b.Set(p)
		}
	}
	return b
}

// Decode returns the ids whose bits are set, in ascending order. Bits past
// the end of the universe are ignored.
func (u *Universe) Decode(b Bits) []int64 {
	var out []int64
	for p := range u.ids {
		if b.Get(p) {
			out = append(out, u.ids[p])
		}
	}
	return out
}

// Filter returns the members of ids that are in the universe, sorted.
func (u *Universe) Filter(ids []int64) []int64 {
	var out []int64
	for _, id := range sortedUnique(ids) {
		if _, ok := u.pos[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func sortedUnique(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}
