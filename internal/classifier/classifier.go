// Package classifier defines the boundary to the learned pairwise model. The
// resolution engine supplies numeric feature rows and receives a probability
// per row, aligned by order; it never depends on the model family behind the
// interface.
package classifier

// Scorer scores feature rows into link probabilities in [0,1], one per row,
// in row order. Any externally trained binary classifier satisfying this
// contract is interchangeable.
type Scorer interface {
	Score(rows [][]float64) ([]float64, error)
}

// Constant is a Scorer returning a fixed probability for every row. Useful
// for rule-only runs and tests.
type Constant float64

func (c Constant) Score(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = float64(c)
	}
	return out, nil
}
