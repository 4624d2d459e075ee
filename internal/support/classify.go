// Package support classifies the dataset-level evidence for one
// coexpression link into support counts and a per-dataset vector.
package support

import (
	"fmt"
	"strings"

	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/model"
)

// Dataset vector codes.
const (
	CodeUntested           byte = '0'
	CodeTested             byte = '1'
	CodeNonSpecificSupport byte = '2'
	CodeSpecificSupport    byte = '3'
)

// Evidence is the unfiltered dataset membership of one link.
type Evidence struct {
	Supporting []int64
	Testing    []int64
	Specific   []int64
	Negative   bool // aggregate correlation sign
}

// Classification is the evidence restricted to one dataset universe.
type Classification struct {
	Supporting []int64 // sorted
	Testing    []int64 // sorted
	Specific   []int64 // sorted

	PosSupp        int
	NegSupp        int
	NonSpecPosSupp int
	NonSpecNegSupp int

	// Vector has one code per universe dataset, in universe order.
	Vector string
}

// Support returns the number of supporting datasets.
func (c *Classification) Support() int {
	return len(c.Supporting)
}

// Meets reports whether the link has at least stringency supporting datasets.
func (c *Classification) Meets(stringency int) bool {
	return c.Support() >= stringency
}

// Classify filters ev to the universe, validates it and computes the counts
// and dataset vector. Non-specific support is derived as supporting minus
// specific; the two sets are not re-intersected.
func Classify(key model.LinkKey, ev Evidence, u *index.Universe) (Classification, error) {
	c := Classification{
		Supporting: u.Filter(ev.Supporting),
		Testing:    u.Filter(ev.Testing),
		Specific:   u.Filter(ev.Specific),
	}

	if !subset(c.Specific, c.Supporting) {
		return c, &model.InconsistencyError{Link: key, Detail: fmt.Sprintf(
			"specific datasets %v not all supporting %v", c.Specific, c.Supporting)}
	}
	if !subset(c.Supporting, c.Testing) {
		return c, &model.InconsistencyError{Link: key, Detail: fmt.Sprintf(
			"supporting datasets %v not all tested %v", c.Supporting, c.Testing)}
	}
	if len(c.Testing) > u.Len() {
		return c, &model.InconsistencyError{Link: key, Detail: fmt.Sprintf(
			"tested in %d datasets, only %d available", len(c.Testing), u.Len())}
	}

	n := len(c.Supporting)
	nonSpec := n - len(c.Specific)
	if ev.Negative {
		c.NegSupp = n
		c.NonSpecNegSupp = nonSpec
	} else {
		c.PosSupp = n
		c.NonSpecPosSupp = nonSpec
	}

	c.Vector = Vector(u, c.Supporting, c.Testing, c.Specific)
	return c, nil
}

// Vector encodes one code per universe dataset.
func Vector(u *index.Universe, supporting, testing, specific []int64) string {
	sup := toSet(supporting)
	tst := toSet(testing)
	spe := toSet(specific)

	var sb strings.Builder
	sb.Grow(u.Len())
	for _, id := range u.IDs() {
		_, supported := sup[id]
		_, tested := tst[id]
		_, s := spe[id]
		switch {
		case supported && s:
			sb.WriteByte(CodeSpecificSupport)
		case supported:
			sb.WriteByte(CodeNonSpecificSupport)
		case tested:
			sb.WriteByte(CodeTested)
		default:
			sb.WriteByte(CodeUntested)
		}
	}
	return sb.String()
}

func toSet(ids []int64) map[int64]struct{} {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func subset(a, b []int64) bool {
	in := toSet(b)
	for _, id := range a {
		if _, ok := in[id]; !ok {
			return false
		}
	}
	return true
}
