package testedin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/model"
)

// fakeSource records calls against a fixed gene -> datasets table.
type fakeSource struct {
	tested       map[int64][]int64 // gene -> datasets
	datasetCalls int
	geneCalls    int
	failDataset  int64
}

func (f *fakeSource) TestedDatasets(gene int64, datasets []int64) ([]int64, error) {
	f.geneCalls++
	return model.Intersect(f.tested[gene], datasets), nil
}

func (f *fakeSource) TestedGenes(ds int64) ([]int64, error) {
	f.datasetCalls++
	if ds == f.failDataset {
		return nil, errors.New("boom")
	}
	var out []int64
	for g, dss := range f.tested {
		for _, d := range dss {
			if d == ds {
				out = append(out, g)
			}
		}
	}
	return out, nil
}

func newSource() *fakeSource {
	return &fakeSource{tested: map[int64][]int64{
		1: {100, 200, 300},
		2: {100, 300},
		3: {200},
		4: {400},
	}}
}

func TestInteractive_Resolve(t *testing.T) {
	src := newSource()
	r := NewInteractive(src, 0)
	assert.Equal(t, DefaultMaxCandidates, r.MaxCandidates())

	got, err := r.Resolve(1, []int64{100, 200, 300}, []int64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 300}, got[2])
	assert.Equal(t, []int64{200}, got[3])
	assert.Equal(t, 2, src.geneCalls)
}

func TestInteractive_Bounded(t *testing.T) {
	src := newSource()
	r := NewInteractive(src, 1)

	got, err := r.Resolve(1, []int64{100, 200, 300}, []int64{2, 3})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, int64(2))
	assert.Equal(t, 1, src.geneCalls)
}

func TestInteractive_NeverTestedTogether(t *testing.T) {
	r := NewInteractive(newSource(), 10)
	_, err := r.Resolve(1, []int64{100, 200, 300}, []int64{4})
	var ie *model.InconsistencyError
	assert.True(t, errors.As(err, &ie))
}

func TestBatch_ResolveScansOnce(t *testing.T) {
	src := newSource()
	u, err := index.NewUniverse([]int64{100, 200, 300, 400})
	require.NoError(t, err)
	b := NewBatch(src, u)

	got, err := b.Resolve(1, nil, []int64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 300}, got[2])
	assert.Equal(t, []int64{200}, got[3])
	assert.Equal(t, 4, src.datasetCalls)

	got, err = b.Resolve(2, nil, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 300}, got[1])
	assert.Equal(t, 4, src.datasetCalls, "second lookup must be served from the cache")
	assert.Equal(t, 4, b.Len())

	ids, err := b.TestedIn(3)
	require.NoError(t, err)
	assert.Equal(t, []int64{200}, ids)
}

func TestBatch_UnknownGeneAfterScan(t *testing.T) {
	src := newSource()
	u, err := index.NewUniverse([]int64{100, 200})
	require.NoError(t, err)
	b := NewBatch(src, u)

	_, err = b.Resolve(1, nil, []int64{99})
	var ie *model.InconsistencyError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, model.LinkKey{Lo: 1, Hi: 99}, ie.Link)
	assert.Equal(t, 2, src.datasetCalls)
}

func TestBatch_Covers(t *testing.T) {
	u, err := index.NewUniverse([]int64{100, 200, 300})
	require.NoError(t, err)
	b := NewBatch(newSource(), u)

	sub, err := index.NewUniverse([]int64{100, 300})
	require.NoError(t, err)
	assert.NoError(t, b.Covers(sub))

	other, err := index.NewUniverse([]int64{100, 400})
	require.NoError(t, err)
	assert.ErrorIs(t, b.Covers(other), ErrUniverseMismatch)
}

func TestBatch_ScanErrorKeepsCache(t *testing.T) {
	src := newSource()
	src.failDataset = 300
	u, err := index.NewUniverse([]int64{100, 200, 300})
	require.NoError(t, err)
	b := NewBatch(src, u)

	_, err = b.Resolve(1, nil, []int64{2})
	require.Error(t, err)

	src.failDataset = 0
	got, err := b.Resolve(1, nil, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 300}, got[2])
}
