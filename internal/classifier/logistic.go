package classifier

import (
	"encoding/json"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
)

// Logistic scores rows with a logistic model whose coefficients were fitted
// externally. Feature order must match the builder's vector layout.
type Logistic struct {
	weights *mat.VecDense
	bias    float64
}

// logisticWeights is the on-disk JSON weight format.
type logisticWeights struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// NewLogistic builds a scorer from explicit coefficients.
func NewLogistic(weights []float64, bias float64) (*Logistic, error) {
	if len(weights) == 0 {
		return nil, eris.New("classifier: empty weight vector")
	}
	return &Logistic{weights: mat.NewVecDense(len(weights), weights), bias: bias}, nil
}

// LoadLogistic reads a JSON weight file produced by the external trainer.
func LoadLogistic(path string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "classifier: read weights")
	}
	var w logisticWeights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, eris.Wrap(err, "classifier: parse weights")
	}
	return NewLogistic(w.Weights, w.Bias)
}

// Score computes sigmoid(w·x + b) per row. NaN features are zero-filled
// here: this boundary owns the explicit missing-value policy, so undefined
// numeric diffs read as "no evidence" rather than poisoning the score.
func (l *Logistic) Score(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != l.weights.Len() {
			return nil, eris.Errorf("classifier: row %d has %d features, model expects %d", i, len(row), l.weights.Len())
		}
		x := make([]float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				x[j] = v
			}
		}
		z := mat.Dot(l.weights, mat.NewVecDense(len(x), x)) + l.bias
		out[i] = sigmoid(z)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
