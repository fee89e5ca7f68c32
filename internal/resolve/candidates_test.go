package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-insight/family-cli/internal/model"
)

func buildingGroup(ids ...string) []model.Subscriber {
	subs := make([]model.Subscriber, len(ids))
	for i, id := range ids {
		subs[i] = model.Subscriber{ID: id, BuildingID: "B1"}
	}
	return subs
}

func TestGenerateCandidates_SmallGroupExhaustive(t *testing.T) {
	subs := buildingGroup("A", "B", "C")

	pairs, err := GenerateCandidates(subs, nil, DefaultParams())
	require.NoError(t, err)

	// C(3,2) = 3 pairs, canonical and sorted.
	assert.Equal(t, []model.Pair{
		{U: "A", V: "B"},
		{U: "A", V: "C"},
		{U: "B", V: "C"},
	}, pairs)
}

func TestGenerateCandidates_ExhaustiveCount(t *testing.T) {
	ids := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	pairs, err := GenerateCandidates(buildingGroup(ids...), nil, DefaultParams())
	require.NoError(t, err)

	// C(7,2) = 21
	assert.Len(t, pairs, 21)
}

func TestGenerateCandidates_CanonicalInvariant(t *testing.T) {
	subs := buildingGroup("z9", "a1", "m5", "b2")
	pairs, err := GenerateCandidates(subs, nil, DefaultParams())
	require.NoError(t, err)

	seen := make(map[model.Pair]bool)
	for _, p := range pairs {
		assert.True(t, p.Canonical(), "pair %v not canonical", p)
		assert.False(t, seen[p], "pair %v duplicated", p)
		seen[p] = true
	}
}

func TestGenerateCandidates_OversizedGroupSampled(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	p := DefaultParams()
	p.MaxGroupFull = 5
	p.SampleK = 3

	pairs, err := GenerateCandidates(buildingGroup(ids...), nil, p)
	require.NoError(t, err)

	// Bounded by n*K, far below C(20,2) = 190.
	assert.NotEmpty(t, pairs)
	assert.LessOrEqual(t, len(pairs), 20*3)
	for _, pr := range pairs {
		assert.True(t, pr.Canonical())
	}
}

func TestGenerateCandidates_SamplingDeterministic(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = string(rune('A'+i/10)) + string(rune('0'+i%10))
	}
	p := DefaultParams()
	p.MaxGroupFull = 10
	p.SampleK = 4

	first, err := GenerateCandidates(buildingGroup(ids...), nil, p)
	require.NoError(t, err)
	second, err := GenerateCandidates(buildingGroup(ids...), nil, p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateCandidates_SeedChangesSample(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = string(rune('A'+i/10)) + string(rune('0'+i%10))
	}
	p := DefaultParams()
	p.MaxGroupFull = 10
	p.SampleK = 2

	first, err := GenerateCandidates(buildingGroup(ids...), nil, p)
	require.NoError(t, err)
	p.Seed = 7
	second, err := GenerateCandidates(buildingGroup(ids...), nil, p)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestGenerateCandidates_NullKeysNeverGroup(t *testing.T) {
	subs := []model.Subscriber{
		{ID: "A"}, // all linkage keys empty
		{ID: "B"},
	}
	pairs, err := GenerateCandidates(subs, nil, DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestGenerateCandidates_CallNeighborsTopK(t *testing.T) {
	edges := []model.CallEdge{
		{Caller: "X", Callee: "A", CallCount: 5},
		{Caller: "X", Callee: "B", CallCount: 9},
		{Caller: "X", Callee: "C", CallCount: 1},
	}
	p := DefaultParams()
	p.MaxCallNeighbors = 2

	pairs, err := GenerateCandidates(nil, edges, p)
	require.NoError(t, err)

	// Top 2 callees by call count: B (9) and A (5).
	assert.Equal(t, []model.Pair{
		{U: "A", V: "X"},
		{U: "B", V: "X"},
	}, pairs)
}

func TestGenerateCandidates_CallNeighborTiesByRowOrder(t *testing.T) {
	edges := []model.CallEdge{
		{Caller: "X", Callee: "B", CallCount: 3},
		{Caller: "X", Callee: "A", CallCount: 3},
		{Caller: "X", Callee: "C", CallCount: 3},
	}
	p := DefaultParams()
	p.MaxCallNeighbors = 2

	pairs, err := GenerateCandidates(nil, edges, p)
	require.NoError(t, err)

	// Equal counts keep input order: B then A survive the cap.
	assert.ElementsMatch(t, []model.Pair{
		{U: "B", V: "X"},
		{U: "A", V: "X"},
	}, pairs)
}

func TestGenerateCandidates_SelfCallSkipped(t *testing.T) {
	edges := []model.CallEdge{
		{Caller: "A", Callee: "A", CallCount: 10},
		{Caller: "A", Callee: "B", CallCount: 1},
	}
	pairs, err := GenerateCandidates(nil, edges, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []model.Pair{{U: "A", V: "B"}}, pairs)
}

func TestGenerateCandidates_UnionDeduplicates(t *testing.T) {
	subs := buildingGroup("A", "B")
	edges := []model.CallEdge{{Caller: "B", Callee: "A", CallCount: 4}}

	pairs, err := GenerateCandidates(subs, edges, DefaultParams())
	require.NoError(t, err)

	// Shared key and call graph both produce {A,B}; set semantics collapse it.
	assert.Equal(t, []model.Pair{{U: "A", V: "B"}}, pairs)
}

func TestGenerateCandidates_EmptyInputs(t *testing.T) {
	pairs, err := GenerateCandidates(nil, nil, DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestParams_Validate(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())

	bad := p
	bad.MaxGroupFull = 1
	assert.ErrorContains(t, bad.Validate(), "max_group_full")

	bad = p
	bad.SampleK = 0
	assert.ErrorContains(t, bad.Validate(), "sample_k")

	bad = p
	bad.MaxCallNeighbors = -1
	assert.ErrorContains(t, bad.Validate(), "max_call_neighbors")
}
