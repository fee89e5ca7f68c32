// Package resolve implements the family entity-resolution engine: candidate
// pair generation, pair feature construction, rule/model probability fusion,
// threshold-driven clustering and key-person selection.
package resolve

import (
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/telco-insight/family-cli/internal/model"
)

// linkageKey binds a deterministic rule name to the subscriber column it
// compares. Order is the fixed rule priority used for reason codes.
type linkageKey struct {
	Rule   string
	Column string
	Value  func(model.Subscriber) string
}

var linkageKeys = []linkageKey{
	{Rule: "same_pay_acct", Column: "pay_acct_id", Value: func(s model.Subscriber) string { return s.PayAcctID }},
	{Rule: "same_building", Column: "building_id", Value: func(s model.Subscriber) string { return s.BuildingID }},
	{Rule: "same_share_grp", Column: "share_group_id", Value: func(s model.Subscriber) string { return s.ShareGroupID }},
	{Rule: "same_family_net", Column: "family_net_id", Value: func(s model.Subscriber) string { return s.FamilyNetID }},
}

// RuleNames returns the rule reason codes in priority order.
func RuleNames() []string {
	names := make([]string, len(linkageKeys))
	for i, k := range linkageKeys {
		names[i] = k.Rule
	}
	return names
}

// Params controls candidate generation.
type Params struct {
	// MaxGroupFull is the largest shared-key group that is paired
	// exhaustively; bigger groups fall back to sampled pairing.
	MaxGroupFull int
	// SampleK is the number of random same-group partners drawn per member
	// of an oversized group.
	SampleK int
	// MaxCallNeighbors caps the callees kept per caller, ranked by call count.
	MaxCallNeighbors int
	// Seed drives the per-group sampling generators.
	Seed uint64
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MaxGroupFull:     30,
		SampleK:          10,
		MaxCallNeighbors: 20,
		Seed:             2025,
	}
}

// Validate rejects non-sensical sampling parameters before any work runs.
func (p Params) Validate() error {
	if p.MaxGroupFull <= 1 {
		return eris.Errorf("resolve: max_group_full must be > 1, got %d", p.MaxGroupFull)
	}
	if p.SampleK <= 0 {
		return eris.Errorf("resolve: sample_k must be > 0, got %d", p.SampleK)
	}
	if p.MaxCallNeighbors <= 0 {
		return eris.Errorf("resolve: max_call_neighbors must be > 0, got %d", p.MaxCallNeighbors)
	}
	return nil
}

// GenerateCandidates produces the deduplicated set of canonical candidate
// pairs from shared linkage keys and top-K call neighbors. Given the same
// inputs and seed the result is identical regardless of scheduling: each
// shared-key group draws from its own generator seeded by the group key.
func GenerateCandidates(subs []model.Subscriber, edges []model.CallEdge, p Params) ([]model.Pair, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	perKey := make([][]model.Pair, len(linkageKeys))
	var g errgroup.Group
	for i, key := range linkageKeys {
		g.Go(func() error {
			perKey[i] = pairsFromKey(subs, key, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := make(map[model.Pair]struct{})
	for _, pairs := range perKey {
		for _, pr := range pairs {
			set[pr] = struct{}{}
		}
	}
	for _, pr := range pairsFromCalls(edges, p.MaxCallNeighbors) {
		set[pr] = struct{}{}
	}

	out := make([]model.Pair, 0, len(set))
	for pr := range set {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	zap.L().Debug("resolve: candidates generated",
		zap.Int("subscribers", len(subs)),
		zap.Int("call_edges", len(edges)),
		zap.Int("pairs", len(out)),
	)
	return out, nil
}

// pairsFromKey groups subscribers by one linkage key and pairs each group:
// exhaustively up to MaxGroupFull members, otherwise SampleK random partners
// per member. O(n*K) instead of O(n^2) for oversized groups, at the cost of
// not guaranteeing every true same-key pair there.
func pairsFromKey(subs []model.Subscriber, key linkageKey, p Params) []model.Pair {
	groups := make(map[string][]string)
	var order []string
	for _, s := range subs {
		v := key.Value(s)
		if v == "" {
			continue
		}
		if _, ok := groups[v]; !ok {
			order = append(order, v)
		}
		groups[v] = append(groups[v], s.ID)
	}

	var out []model.Pair
	for _, v := range order {
		members := groups[v]
		n := len(members)
		if n <= 1 {
			continue
		}
		if n <= p.MaxGroupFull {
			for i := 0; i < n; i++ {
				for j := i + 1; j < n; j++ {
					out = append(out, model.NewPair(members[i], members[j]))
				}
			}
			continue
		}

		zap.L().Warn("resolve: oversized shared-key group sampled, not exhausted",
			zap.String("column", key.Column),
			zap.Int("size", n),
			zap.Int("sample_k", p.SampleK),
		)
		rng := rand.New(rand.NewSource(groupSeed(key.Column, v, p.Seed)))
		for i, a := range members {
			others := make([]string, 0, n-1)
			others = append(others, members[:i]...)
			others = append(others, members[i+1:]...)
			k := p.SampleK
			if k > len(others) {
				k = len(others)
			}
			// Partial Fisher-Yates: a deterministic draw without replacement.
			for j := 0; j < k; j++ {
				idx := j + rng.Intn(len(others)-j)
				others[j], others[idx] = others[idx], others[j]
				out = append(out, model.NewPair(a, others[j]))
			}
		}
	}
	return out
}

// groupSeed derives a stable per-group seed from the key column, the group
// value and the global seed, keeping sampled draws reproducible under any
// parallel schedule.
func groupSeed(column, value string, global uint64) int64 {
	h := fnv.New64a()
	h.Write([]byte(column))
	h.Write([]byte{0})
	h.Write([]byte(value))
	return int64(h.Sum64() ^ global)
}

// pairsFromCalls keeps, per caller, the top maxNeighbors callees by
// descending call count (ties by input row order) and emits canonical pairs.
// Fully deterministic, no randomness.
func pairsFromCalls(edges []model.CallEdge, maxNeighbors int) []model.Pair {
	byCaller := make(map[string][]model.CallEdge)
	var callers []string
	for _, e := range edges {
		if _, ok := byCaller[e.Caller]; !ok {
			callers = append(callers, e.Caller)
		}
		byCaller[e.Caller] = append(byCaller[e.Caller], e)
	}

	var out []model.Pair
	for _, c := range callers {
		ranked := byCaller[c]
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].CallCount > ranked[j].CallCount })
		top := ranked
		if len(top) > maxNeighbors {
			top = top[:maxNeighbors]
		}
		for _, e := range top {
			if e.Caller == e.Callee {
				continue
			}
			out = append(out, model.NewPair(e.Caller, e.Callee))
		}
	}
	return out
}
