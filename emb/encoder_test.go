package emb

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanPoolMasksPadding(t *testing.T) {
	t.Parallel()

	// Three tokens of dimension two; the last one is padding.
	data := []float32{
		3, 0,
		1, 4,
		100, 100,
	}
	got := meanPool(data, []int64{1, 1, 0}, 3, 2)
	require.Len(t, got, 2)

	norm := math.Hypot(2, 2)
	assert.InDelta(t, 2/norm, got[0], 1e-6)
	assert.InDelta(t, 2/norm, got[1], 1e-6)
}

func TestMeanPoolAllMasked(t *testing.T) {
	t.Parallel()

	got := meanPool([]float32{1, 2}, []int64{0}, 1, 2)
	assert.Equal(t, []float32{0, 0}, got)
}

func TestEncoderRequiresPaths(t *testing.T) {
	t.Parallel()

	var e Encoder
	assert.Error(t, e.Init(Config{}))
	_, err := e.Encode("aqua")
	assert.Error(t, err)
	e.Close()
}
