package store

import (
	"context"

	"github.com/telco-insight/family-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// FamilySummary is one family of a run as listed by the read API.
type FamilySummary struct {
	FamilyID  string `json:"family_id"`
	Size      int    `json:"size"`
	KeyPerson string `json:"key_person"`
}

// Store defines the persistence interface for resolution runs and their
// outputs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, metrics model.RunMetrics) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Run outputs
	SaveScoredPairs(ctx context.Context, runID string, pairs []model.ScoredPair) error
	SaveFamilyMembers(ctx context.Context, runID string, members []model.FamilyMember) error
	SaveFamilyProfiles(ctx context.Context, runID string, profiles []model.FamilyProfile) error

	// Lookups
	ListFamilies(ctx context.Context, runID string) ([]FamilySummary, error)
	GetFamilyMembers(ctx context.Context, runID, familyID string) ([]model.FamilyMember, error)
	GetFamilyProfile(ctx context.Context, runID, familyID string) (*model.FamilyProfile, error)
	GetSubscriberFamily(ctx context.Context, runID, subscriberID string) (*model.FamilyMember, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
