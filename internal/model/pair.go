package model

// Pair is an unordered subscriber pair in canonical form: U < V under
// lexicographic string order. The canonical form is the deduplication key
// everywhere pairs are stored or compared.
type Pair struct {
	U string `json:"u" csv:"u"`
	V string `json:"v" csv:"v"`
}

// NewPair returns the canonical form of {a, b}.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{U: a, V: b}
}

// Canonical reports whether the pair is already in canonical form.
func (p Pair) Canonical() bool {
	return p.U < p.V
}

// Less orders pairs by (U, V) for deterministic output.
func (p Pair) Less(q Pair) bool {
	if p.U != q.U {
		return p.U < q.U
	}
	return p.V < q.V
}

// ScoredPair is a candidate pair with its final fused link probability.
// RuleHit names the deterministic rule that fired, or is empty when the
// probability came purely from the learned model. Immutable once produced.
type ScoredPair struct {
	U           string  `json:"u" csv:"u"`
	V           string  `json:"v" csv:"v"`
	Probability float64 `json:"link_probability" csv:"link_probability"`
	RuleHit     string  `json:"rule_hit,omitempty" csv:"rule_hit"`
}

// LabeledPair is one held-out validation example for threshold selection.
type LabeledPair struct {
	U           string  `json:"u" csv:"u"`
	V           string  `json:"v" csv:"v"`
	Label       int     `json:"label" csv:"label"`
	Probability float64 `json:"predicted_probability" csv:"predicted_probability"`
}
