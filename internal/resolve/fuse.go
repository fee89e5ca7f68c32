package resolve

import (
	"github.com/rotisserie/eris"

	"github.com/telco-insight/family-cli/internal/model"
)

// DefaultRuleProbability is the high-confidence constant assigned when a
// deterministic linkage rule fires.
const DefaultRuleProbability = 0.99

// FuseProbabilities combines learned per-pair probabilities with the
// deterministic rule overrides. Any rule flag forces the final probability to
// ruleProb, overriding the model entirely; the reason code is the first rule
// that fired in priority order (pay account, building, shared offer group,
// family network). With no rule hit the model probability passes through
// unmodified and the reason code is empty. Pure transform: same inputs, same
// outputs.
func FuseProbabilities(table *FeatureTable, probs []float64, ruleProb float64) ([]model.ScoredPair, error) {
	if ruleProb < 0 || ruleProb > 1 {
		return nil, eris.Errorf("resolve: rule probability must be in [0,1], got %g", ruleProb)
	}
	if len(probs) != len(table.Rows) {
		return nil, eris.Errorf("resolve: %d probabilities for %d feature rows", len(probs), len(table.Rows))
	}

	ruleNames := RuleNames()
	out := make([]model.ScoredPair, len(table.Rows))
	for i, row := range table.Rows {
		sp := model.ScoredPair{
			U:           row.Pair.U,
			V:           row.Pair.V,
			Probability: probs[i],
		}
		for j, flag := range row.ruleFlags() {
			if flag == 1 {
				sp.Probability = ruleProb
				sp.RuleHit = ruleNames[j]
				break
			}
		}
		out[i] = sp
	}
	return out, nil
}
