package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-insight/family-cli/internal/model"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock, &PostgresStore{pool: mock}
}

func TestPostgresStore_CreateRun(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), testParams())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", model.RunMetrics{Families: 2})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "nope", model.RunMetrics{})
	assert.ErrorContains(t, err, "not found")
}

func TestPostgresStore_FailRun(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("failed", "boom", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailRun(context.Background(), "run-1", errors.New("boom"))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	mock, s := newMockStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "params", "status", "metrics", "error", "created_at", "updated_at"}).
		AddRow("run-1", `{"threshold":0.5}`, "complete", `{"families":2}`, "", now, now)
	mock.ExpectQuery("SELECT id, params, status, metrics, error, created_at, updated_at FROM runs").
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Metrics)
	assert.Equal(t, 2, run.Metrics.Families)
	assert.InDelta(t, 0.5, run.Params.Threshold, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	mock, s := newMockStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "params", "status", "metrics", "error", "created_at", "updated_at"}).
		AddRow("run-1", `{}`, "running", nil, "", now, now)
	mock.ExpectQuery("SELECT id, params, status, metrics, error, created_at, updated_at FROM runs WHERE status").
		WithArgs("running").
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Nil(t, runs[0].Metrics)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveScoredPairs_Copy(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectCopyFrom([]string{"scored_pairs"}, []string{"run_id", "u", "v", "probability", "rule_hit"}).
		WillReturnResult(2)

	pairs := []model.ScoredPair{
		{U: "A", V: "B", Probability: 0.99, RuleHit: "same_pay_acct"},
		{U: "A", V: "C", Probability: 0.3},
	}
	err := s.SaveScoredPairs(context.Background(), "run-1", pairs)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveScoredPairs_Empty(t *testing.T) {
	_, s := newMockStore(t)

	// No COPY expected for an empty batch.
	err := s.SaveScoredPairs(context.Background(), "run-1", nil)
	assert.NoError(t, err)
}

func TestPostgresStore_SaveFamilyMembers_Copy(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectCopyFrom([]string{"family_members"}, []string{"run_id", "subscriber_id", "family_id", "key_person"}).
		WillReturnResult(2)

	members := []model.FamilyMember{
		{SubscriberID: "A", FamilyID: "FAM_A_2", KeyPerson: true},
		{SubscriberID: "B", FamilyID: "FAM_A_2"},
	}
	err := s.SaveFamilyMembers(context.Background(), "run-1", members)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFamilies(t *testing.T) {
	mock, s := newMockStore(t)

	rows := pgxmock.NewRows([]string{"family_id", "size", "key_person"}).
		AddRow("FAM_A_3", 3, "A").
		AddRow("FAM_D_1", 1, "D")
	mock.ExpectQuery("SELECT family_id").
		WithArgs("run-1").
		WillReturnRows(rows)

	families, err := s.ListFamilies(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []FamilySummary{
		{FamilyID: "FAM_A_3", Size: 3, KeyPerson: "A"},
		{FamilyID: "FAM_D_1", Size: 1, KeyPerson: "D"},
	}, families)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSubscriberFamily_NoRows(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectQuery("SELECT subscriber_id, family_id, key_person FROM family_members").
		WithArgs("run-1", "ghost").
		WillReturnError(pgx.ErrNoRows)

	m, err := s.GetSubscriberFamily(context.Background(), "run-1", "ghost")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestPostgresStore_GetFamilyProfile(t *testing.T) {
	mock, s := newMockStore(t)

	rows := pgxmock.NewRows([]string{"family_id", "size", "arpu_mean", "dou_mean", "mou_mean", "age_mean", "flag_means"}).
		AddRow("FAM_A_2", 2, 75.5, 12.0, 180.0, 41.5, []byte(`{"car_flag":0.5}`))
	mock.ExpectQuery("SELECT family_id, size, arpu_mean").
		WithArgs("run-1", "FAM_A_2").
		WillReturnRows(rows)

	p, err := s.GetFamilyProfile(context.Background(), "run-1", "FAM_A_2")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.Size)
	assert.InDelta(t, 75.5, p.ARPUMean, 1e-9)
	assert.InDelta(t, 0.5, p.FlagMeans["car_flag"], 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
