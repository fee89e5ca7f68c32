package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-insight/family-cli/internal/model"
)

func TestReadLabeledPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labeled.csv")
	csv := "u,v,label,predicted_probability\nA,B,1,0.92\nA,C,0,0.15\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	pairs, err := ReadLabeledPairs(path)
	require.NoError(t, err)
	assert.Equal(t, []model.LabeledPair{
		{U: "A", V: "B", Label: 1, Probability: 0.92},
		{U: "A", V: "C", Label: 0, Probability: 0.15},
	}, pairs)
}

func TestReadLabeledPairs_MissingFile(t *testing.T) {
	_, err := ReadLabeledPairs(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestReadLabeledPairs_BadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labeled.csv")
	require.NoError(t, os.WriteFile(path, []byte("u,v,label\nA,B,notanumber\n"), 0o644))

	_, err := ReadLabeledPairs(path)
	assert.ErrorContains(t, err, "parse labeled pairs")
}

func TestWriteScoredPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored_pairs.csv")
	pairs := []model.ScoredPair{
		{U: "A", V: "B", Probability: 0.99, RuleHit: "same_building"},
		{U: "A", V: "C", Probability: 0.42},
	}
	require.NoError(t, WriteScoredPairs(path, pairs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "u,v,link_probability,rule_hit", lines[0])
	assert.Equal(t, "A,B,0.99,same_building", lines[1])
}

func TestWriteFamilyMembers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "family_members.csv")
	members := []model.FamilyMember{
		{SubscriberID: "A", FamilyID: "FAM_A_2", KeyPerson: true},
		{SubscriberID: "B", FamilyID: "FAM_A_2"},
	}
	require.NoError(t, WriteFamilyMembers(path, members))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "subs_id,family_id,key_person", lines[0])
	assert.Equal(t, "A,FAM_A_2,true", lines[1])
	assert.Equal(t, "B,FAM_A_2,false", lines[2])
}
