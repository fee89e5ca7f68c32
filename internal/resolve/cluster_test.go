package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-insight/family-cli/internal/model"
)

func TestClusterFamilies_SharedBuildingScenario(t *testing.T) {
	// A, B, C share a building; D is isolated.
	universe := []string{"A", "B", "C", "D"}
	pairs := []model.ScoredPair{
		{U: "A", V: "B", Probability: 0.99, RuleHit: "same_building"},
		{U: "A", V: "C", Probability: 0.99, RuleHit: "same_building"},
		{U: "B", V: "C", Probability: 0.99, RuleHit: "same_building"},
	}

	families, err := ClusterFamilies(universe, pairs, 0.5)
	require.NoError(t, err)

	require.Len(t, families, 2)
	assert.Equal(t, "FAM_A_3", families[0].ID)
	assert.Equal(t, []string{"A", "B", "C"}, families[0].Members)
	assert.Equal(t, "FAM_D_1", families[1].ID)
	assert.Equal(t, []string{"D"}, families[1].Members)
}

func TestClusterFamilies_ThresholdBoundaryInclusive(t *testing.T) {
	universe := []string{"A", "B"}
	pairs := []model.ScoredPair{{U: "A", V: "B", Probability: 0.5}}

	families, err := ClusterFamilies(universe, pairs, 0.5)
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "FAM_A_2", families[0].ID)
}

func TestClusterFamilies_ThresholdSplitsAtHigherCutoff(t *testing.T) {
	// A and B linked at 0.7 cluster at threshold 0.6 but not at 0.8.
	universe := []string{"A", "B"}
	pairs := []model.ScoredPair{{U: "A", V: "B", Probability: 0.7}}

	low, err := ClusterFamilies(universe, pairs, 0.6)
	require.NoError(t, err)
	assert.Len(t, low, 1)

	high, err := ClusterFamilies(universe, pairs, 0.8)
	require.NoError(t, err)
	assert.Len(t, high, 2)
}

func TestClusterFamilies_EmptyPairsAllSingletons(t *testing.T) {
	universe := []string{"C", "A", "B"}

	families, err := ClusterFamilies(universe, nil, 0.5)
	require.NoError(t, err)

	require.Len(t, families, 3)
	for _, f := range families {
		assert.Len(t, f.Members, 1)
		assert.Equal(t, model.FamilyID(f.Members[0], 1), f.ID)
	}
}

func TestClusterFamilies_PartitionTotality(t *testing.T) {
	universe := []string{"A", "B", "C", "D", "E"}
	pairs := []model.ScoredPair{
		{U: "A", V: "B", Probability: 0.9},
		{U: "C", V: "D", Probability: 0.4},
	}

	families, err := ClusterFamilies(universe, pairs, 0.5)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, f := range families {
		for _, m := range f.Members {
			seen[m]++
		}
	}
	// Every universe member exactly once; families pairwise disjoint.
	for _, id := range universe {
		assert.Equal(t, 1, seen[id], "subscriber %s", id)
	}
	assert.Len(t, seen, len(universe))
}

func TestClusterFamilies_RefinementUnderHigherThreshold(t *testing.T) {
	universe := []string{"A", "B", "C", "D", "E", "F"}
	pairs := []model.ScoredPair{
		{U: "A", V: "B", Probability: 0.9},
		{U: "B", V: "C", Probability: 0.6},
		{U: "D", V: "E", Probability: 0.4},
		{U: "E", V: "F", Probability: 0.8},
	}

	low, err := ClusterFamilies(universe, pairs, 0.3)
	require.NoError(t, err)
	high, err := ClusterFamilies(universe, pairs, 0.7)
	require.NoError(t, err)

	// Every family at the higher threshold is contained in one family at
	// the lower threshold.
	lowFamilyOf := make(map[string]string)
	for _, f := range low {
		for _, m := range f.Members {
			lowFamilyOf[m] = f.ID
		}
	}
	for _, f := range high {
		container := lowFamilyOf[f.Members[0]]
		for _, m := range f.Members[1:] {
			assert.Equal(t, container, lowFamilyOf[m])
		}
	}
}

func TestClusterFamilies_DeterministicFamilyIDs(t *testing.T) {
	universe := []string{"s2", "s1", "s3"}
	pairs := []model.ScoredPair{{U: "s1", V: "s3", Probability: 0.9}}

	first, err := ClusterFamilies(universe, pairs, 0.5)
	require.NoError(t, err)
	second, err := ClusterFamilies(universe, pairs, 0.5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClusterFamilies_InvalidThreshold(t *testing.T) {
	_, err := ClusterFamilies([]string{"A"}, nil, -0.1)
	assert.ErrorContains(t, err, "threshold")

	_, err = ClusterFamilies([]string{"A"}, nil, 1.1)
	assert.ErrorContains(t, err, "threshold")
}

func TestAssignments_OneRowPerMember(t *testing.T) {
	families := []model.Family{
		{ID: "FAM_A_2", Members: []string{"A", "B"}},
		{ID: "FAM_C_1", Members: []string{"C"}},
	}
	rows := Assignments(families)
	assert.Equal(t, []model.FamilyMember{
		{SubscriberID: "A", FamilyID: "FAM_A_2"},
		{SubscriberID: "B", FamilyID: "FAM_A_2"},
		{SubscriberID: "C", FamilyID: "FAM_C_1"},
	}, rows)
}
