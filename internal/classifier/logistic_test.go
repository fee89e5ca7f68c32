package classifier

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogistic_Score(t *testing.T) {
	l, err := NewLogistic([]float64{1, -1}, 0)
	require.NoError(t, err)

	probs, err := l.Score([][]float64{
		{0, 0},     // z = 0
		{2, 0},     // z = 2
		{0, 2},     // z = -2
		{0.5, 0.5}, // z = 0 again
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, probs[0], 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(-2)), probs[1], 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(2)), probs[2], 1e-12)
	assert.InDelta(t, 0.5, probs[3], 1e-12)
}

func TestLogistic_BiasShiftsScore(t *testing.T) {
	l, err := NewLogistic([]float64{1}, 3)
	require.NoError(t, err)

	probs, err := l.Score([][]float64{{0}})
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-3)), probs[0], 1e-12)
}

func TestLogistic_NaNFeatureZeroFilled(t *testing.T) {
	l, err := NewLogistic([]float64{5, 1}, 0)
	require.NoError(t, err)

	probs, err := l.Score([][]float64{{math.NaN(), 1}})
	require.NoError(t, err)

	// The NaN coordinate contributes nothing: z = 1.
	assert.False(t, math.IsNaN(probs[0]))
	assert.InDelta(t, 1/(1+math.Exp(-1)), probs[0], 1e-12)
}

func TestLogistic_RowWidthMismatch(t *testing.T) {
	l, err := NewLogistic([]float64{1, 2, 3}, 0)
	require.NoError(t, err)

	_, err = l.Score([][]float64{{1, 2}})
	assert.ErrorContains(t, err, "expects 3")
}

func TestNewLogistic_EmptyWeights(t *testing.T) {
	_, err := NewLogistic(nil, 0)
	assert.ErrorContains(t, err, "empty weight vector")
}

func TestLoadLogistic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"weights":[0.5,-0.25],"bias":0.1}`), 0o644))

	l, err := LoadLogistic(path)
	require.NoError(t, err)

	probs, err := l.Score([][]float64{{1, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-0.35)), probs[0], 1e-12)
}

func TestLoadLogistic_Missing(t *testing.T) {
	_, err := LoadLogistic(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadLogistic_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))

	_, err := LoadLogistic(path)
	assert.ErrorContains(t, err, "parse weights")
}

func TestConstant(t *testing.T) {
	probs, err := Constant(0.7).Score(make([][]float64, 3))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.7, 0.7, 0.7}, probs)
}
