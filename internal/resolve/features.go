package resolve

import (
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/telco-insight/family-cli/internal/model"
)

// FeatureRow is the per-pair feature vector handed to the classifier. Pair
// identity is retained for traceability but excluded from the numeric view.
// Numeric diffs/sums are NaN when either endpoint's value is missing; call
// statistics are zero-filled when no calls were observed, since absence of
// calling behavior is itself a signal.
type FeatureRow struct {
	Pair model.Pair

	SamePayAcct    int
	SameBuilding   int
	SameShareGroup int
	SameFamilyNet  int

	AgeDiff  float64
	AgeSum   float64
	ARPUDiff float64
	ARPUSum  float64
	DOUDiff  float64
	DOUSum   float64
	MOUDiff  float64
	MOUSum   float64

	// FlagBoth and FlagXor are aligned with FeatureTable.FlagNames.
	FlagBoth []int
	FlagXor  []int

	CallCount float64
	CallDays  float64
	CallBases float64
}

// ruleFlags returns the four rule-match flags in fixed priority order:
// pay account, building, shared offer group, family network.
func (r FeatureRow) ruleFlags() [4]int {
	return [4]int{r.SamePayAcct, r.SameBuilding, r.SameShareGroup, r.SameFamilyNet}
}

// AnyRule reports whether any deterministic rule matched this pair.
func (r FeatureRow) AnyRule() bool {
	for _, f := range r.ruleFlags() {
		if f == 1 {
			return true
		}
	}
	return false
}

// FeatureTable holds one feature row per candidate pair plus the stable
// ordering of binary flag attributes the flag features were computed over.
type FeatureTable struct {
	FlagNames []string
	Rows      []FeatureRow
}

// Vector flattens one row into the numeric layout the classifier consumes:
// rule flags, numeric diffs/sums, flag both/xor, call statistics. NaN values
// pass through; the classifier boundary owns the missing-value policy.
func (t *FeatureTable) Vector(i int) []float64 {
	r := t.Rows[i]
	v := make([]float64, 0, 4+8+2*len(t.FlagNames)+3)
	for _, f := range r.ruleFlags() {
		v = append(v, float64(f))
	}
	v = append(v, r.AgeDiff, r.AgeSum, r.ARPUDiff, r.ARPUSum, r.DOUDiff, r.DOUSum, r.MOUDiff, r.MOUSum)
	for _, f := range r.FlagBoth {
		v = append(v, float64(f))
	}
	for _, f := range r.FlagXor {
		v = append(v, float64(f))
	}
	v = append(v, r.CallCount, r.CallDays, r.CallBases)
	return v
}

// Vectors returns the whole table in classifier layout, aligned by row order.
func (t *FeatureTable) Vectors() [][]float64 {
	out := make([][]float64, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Vector(i)
	}
	return out
}

// BuildFeatures joins endpoint attributes onto each candidate pair and
// derives rule-match flags, numeric diffs/sums, flag-consistency features and
// undirected call statistics. A pair endpoint missing from the subscriber
// table yields absent attributes for that side, never an error.
func BuildFeatures(pairs []model.Pair, subs []model.Subscriber, edges []model.CallEdge) *FeatureTable {
	byID := make(map[string]model.Subscriber, len(subs))
	flagSet := make(map[string]struct{})
	for _, s := range subs {
		byID[s.ID] = s
		for name := range s.Flags {
			flagSet[name] = struct{}{}
		}
	}
	flagNames := make([]string, 0, len(flagSet))
	for name := range flagSet {
		flagNames = append(flagNames, name)
	}
	sort.Strings(flagNames)

	calls := foldCallEdges(edges)

	table := &FeatureTable{
		FlagNames: flagNames,
		Rows:      make([]FeatureRow, len(pairs)),
	}

	// Rows are independent; chunk them across workers writing into
	// pre-allocated slots.
	workers := runtime.GOMAXPROCS(0)
	chunk := (len(pairs) + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < len(pairs); start += chunk {
		end := start + chunk
		if end > len(pairs) {
			end = len(pairs)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				table.Rows[i] = buildRow(pairs[i], byID, flagNames, calls)
			}
			return nil
		})
	}
	_ = g.Wait()

	return table
}

func buildRow(p model.Pair, byID map[string]model.Subscriber, flagNames []string, calls map[model.Pair][3]int) FeatureRow {
	su, okU := byID[p.U]
	sv, okV := byID[p.V]

	row := FeatureRow{Pair: p}

	flags := make([]int, len(linkageKeys))
	for i, key := range linkageKeys {
		var ku, kv string
		if okU {
			ku = key.Value(su)
		}
		if okV {
			kv = key.Value(sv)
		}
		// A missing key never counts as a match.
		if ku != "" && kv != "" && ku == kv {
			flags[i] = 1
		}
	}
	row.SamePayAcct, row.SameBuilding, row.SameShareGroup, row.SameFamilyNet = flags[0], flags[1], flags[2], flags[3]

	row.AgeDiff, row.AgeSum = diffSum(numeric(su, okU, func(s model.Subscriber) float64 { return s.Age }), numeric(sv, okV, func(s model.Subscriber) float64 { return s.Age }))
	row.ARPUDiff, row.ARPUSum = diffSum(numeric(su, okU, func(s model.Subscriber) float64 { return s.ARPU }), numeric(sv, okV, func(s model.Subscriber) float64 { return s.ARPU }))
	row.DOUDiff, row.DOUSum = diffSum(numeric(su, okU, func(s model.Subscriber) float64 { return s.DOU }), numeric(sv, okV, func(s model.Subscriber) float64 { return s.DOU }))
	row.MOUDiff, row.MOUSum = diffSum(numeric(su, okU, func(s model.Subscriber) float64 { return s.MOU }), numeric(sv, okV, func(s model.Subscriber) float64 { return s.MOU }))

	row.FlagBoth = make([]int, len(flagNames))
	row.FlagXor = make([]int, len(flagNames))
	for i, name := range flagNames {
		// Missing endpoint or missing flag both read as false.
		a := okU && su.Flag(name)
		b := okV && sv.Flag(name)
		if a && b {
			row.FlagBoth[i] = 1
		}
		if a != b {
			row.FlagXor[i] = 1
		}
	}

	if c, ok := calls[p]; ok {
		row.CallCount = float64(c[0])
		row.CallDays = float64(c[1])
		row.CallBases = float64(c[2])
	}
	return row
}

func numeric(s model.Subscriber, present bool, get func(model.Subscriber) float64) float64 {
	if !present {
		return math.NaN()
	}
	return get(s)
}

// diffSum returns (|a-b|, a+b); NaN propagates when either side is missing,
// leaving the derived feature undefined for the pair.
func diffSum(a, b float64) (float64, float64) {
	return math.Abs(a - b), a + b
}

// foldCallEdges sums directed edges into the pair's canonical undirected
// form: counts, days and base-station counts accumulate over both directions.
func foldCallEdges(edges []model.CallEdge) map[model.Pair][3]int {
	out := make(map[model.Pair][3]int)
	for _, e := range edges {
		if e.Caller == e.Callee {
			continue
		}
		p := model.NewPair(e.Caller, e.Callee)
		acc := out[p]
		acc[0] += e.CallCount
		acc[1] += e.Days
		acc[2] += e.Bases
		out[p] = acc
	}
	return out
}
