package resolve

import (
	"github.com/rotisserie/eris"

	"github.com/telco-insight/family-cli/internal/model"
)

// ThresholdMetrics is the operating point chosen on held-out labeled pairs.
type ThresholdMetrics struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// thresholdGrid spans 0.1 to 0.9 in 81 evenly spaced points. A fixed grid
// keeps the search reproducible and avoids overfitting a single boundary.
const (
	thresholdGridStart = 0.1
	thresholdGridStep  = 0.01
	thresholdGridSize  = 81
)

// BestThreshold returns the probability cutoff maximizing F1 over the grid,
// with precision/recall/F1 at that cutoff. The first threshold in ascending
// order achieving the maximum wins (strict > comparison). Labels and
// probabilities must come from data disjoint from model training; that
// discipline is the caller's, not enforced here. All-one-class labels are
// valid input: zero divisions score 0 rather than failing.
func BestThreshold(labels []int, probs []float64) (ThresholdMetrics, error) {
	if len(labels) == 0 {
		return ThresholdMetrics{}, eris.New("resolve: empty validation set")
	}
	if len(labels) != len(probs) {
		return ThresholdMetrics{}, eris.Errorf("resolve: %d labels for %d probabilities", len(labels), len(probs))
	}

	best := ThresholdMetrics{Threshold: 0.5, F1: -1}
	for i := 0; i < thresholdGridSize; i++ {
		t := thresholdGridStart + float64(i)*thresholdGridStep
		p, r, f1 := precisionRecallF1(labels, probs, t)
		if f1 > best.F1 {
			best = ThresholdMetrics{Threshold: t, Precision: p, Recall: r, F1: f1}
		}
	}
	return best, nil
}

// BestThresholdPairs is BestThreshold over labeled validation pair rows.
func BestThresholdPairs(pairs []model.LabeledPair) (ThresholdMetrics, error) {
	labels := make([]int, len(pairs))
	probs := make([]float64, len(pairs))
	for i, p := range pairs {
		labels[i] = p.Label
		probs[i] = p.Probability
	}
	return BestThreshold(labels, probs)
}

// precisionRecallF1 evaluates the cutoff with prob >= t predicted positive.
// Zero denominators yield 0, never an error.
func precisionRecallF1(labels []int, probs []float64, t float64) (precision, recall, f1 float64) {
	var tp, fp, fn int
	for i, y := range labels {
		pred := probs[i] >= t
		switch {
		case pred && y == 1:
			tp++
		case pred && y != 1:
			fp++
		case !pred && y == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}
