package resolve

import (
	"math"

	"github.com/telco-insight/family-cli/internal/model"
)

// arpuWeight scales the secondary value signal against the weighted degree.
const arpuWeight = 0.01

// SelectKeyPersons flags exactly one representative per family. A member's
// score is its weighted degree (sum of link probabilities over all scored
// pairs it participates in, 0 when absent from every pair) plus 0.01 times
// its ARPU (0 when unavailable). Ties are broken deterministically by lowest
// subscriber id: members are scanned in ascending id order and only a strictly
// greater score displaces the running winner.
func SelectKeyPersons(families []model.Family, pairs []model.ScoredPair, arpu map[string]float64) []model.FamilyMember {
	deg := weightedDegrees(pairs)

	var out []model.FamilyMember
	for _, f := range families {
		if len(f.Members) == 0 {
			continue
		}
		bestIdx := 0
		bestScore := math.Inf(-1)
		rows := make([]model.FamilyMember, len(f.Members))
		for i, m := range f.Members {
			rows[i] = model.FamilyMember{SubscriberID: m, FamilyID: f.ID}
			score := deg[m] + arpuWeight*arpu[m]
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		rows[bestIdx].KeyPerson = true
		out = append(out, rows...)
	}
	return out
}

// weightedDegrees sums link probabilities over every scored pair touching
// each subscriber, not restricted to intra-family edges.
func weightedDegrees(pairs []model.ScoredPair) map[string]float64 {
	deg := make(map[string]float64)
	for _, p := range pairs {
		deg[p.U] += p.Probability
		deg[p.V] += p.Probability
	}
	return deg
}
