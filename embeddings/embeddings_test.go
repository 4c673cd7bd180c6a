package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, Cosine(a, a), 1e-6)
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-6)
	assert.InDelta(t, -1.0, Cosine(a, []float32{-1, 0, 0}), 1e-6)
}

func TestCosineDegenerateInput(t *testing.T) {
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestNewCohereDefaultsModel(t *testing.T) {
	c := NewCohere("key", "")
	assert.Equal(t, "embed-english-v3.0", c.ModelName())

	c = NewCohere("key", "embed-multilingual-v3.0")
	assert.Equal(t, "embed-multilingual-v3.0", c.ModelName())
}
