package vecmath

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}))
	assert.Zero(t, Cosine(nil, nil))
}

func TestTopK(t *testing.T) {
	top := NewTopK(3)
	for i := 0; i < 500; i++ {
		top.Push(fmt.Sprintf("id-%d", i), float64(i%100))
	}

	results := top.Results()
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, 99.0, r.Score)
	}
	assert.Equal(t, "id-99", results[0].ID, "ties keep insertion order")
}

func TestTopK_ZeroK(t *testing.T) {
	top := NewTopK(0)
	top.Push("a", 1)
	assert.Empty(t, top.Results())
}
