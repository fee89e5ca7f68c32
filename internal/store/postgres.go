package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/telco-insight/family-cli/internal/config"
	"github.com/telco-insight/family-cli/internal/db"
	"github.com/telco-insight/family-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *config.PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	params     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	metrics    JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scored_pairs (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	u           TEXT NOT NULL,
	v           TEXT NOT NULL,
	probability DOUBLE PRECISION NOT NULL,
	rule_hit    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, u, v)
);

CREATE TABLE IF NOT EXISTS family_members (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	subscriber_id TEXT NOT NULL,
	family_id     TEXT NOT NULL,
	key_person    BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (run_id, subscriber_id)
);

CREATE TABLE IF NOT EXISTS family_profiles (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	family_id  TEXT NOT NULL,
	size       INTEGER NOT NULL,
	arpu_mean  DOUBLE PRECISION,
	dou_mean   DOUBLE PRECISION,
	mou_mean   DOUBLE PRECISION,
	age_mean   DOUBLE PRECISION,
	flag_means JSONB,
	PRIMARY KEY (run_id, family_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_family_members_family ON family_members(run_id, family_id);
CREATE INDEX IF NOT EXISTS idx_scored_pairs_u ON scored_pairs(run_id, u);
CREATE INDEX IF NOT EXISTS idx_scored_pairs_v ON scored_pairs(run_id, v);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(paramsJSON), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Params:    params,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, metrics model.RunMetrics) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, metrics = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), string(metricsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), runErr.Error(), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, params, status, metrics, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanRunRow(row.Scan)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, params, status, metrics, error, created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		if len(args) == 0 {
			query += ` LIMIT $1`
		} else {
			query += ` LIMIT $2`
		}
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRunRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func (s *PostgresStore) SaveScoredPairs(ctx context.Context, runID string, pairs []model.ScoredPair) error {
	rows := make([][]any, len(pairs))
	for i, p := range pairs {
		rows[i] = []any{runID, p.U, p.V, p.Probability, p.RuleHit}
	}
	_, err := db.CopyFrom(ctx, s.pool, "scored_pairs",
		[]string{"run_id", "u", "v", "probability", "rule_hit"}, rows)
	return err
}

func (s *PostgresStore) SaveFamilyMembers(ctx context.Context, runID string, members []model.FamilyMember) error {
	rows := make([][]any, len(members))
	for i, m := range members {
		rows[i] = []any{runID, m.SubscriberID, m.FamilyID, m.KeyPerson}
	}
	_, err := db.CopyFrom(ctx, s.pool, "family_members",
		[]string{"run_id", "subscriber_id", "family_id", "key_person"}, rows)
	return err
}

func (s *PostgresStore) SaveFamilyProfiles(ctx context.Context, runID string, profiles []model.FamilyProfile) error {
	rows := make([][]any, len(profiles))
	for i, p := range profiles {
		flagJSON, err := json.Marshal(p.FlagMeans)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal flag means")
		}
		rows[i] = []any{runID, p.FamilyID, p.Size, nanToNull(p.ARPUMean), nanToNull(p.DOUMean), nanToNull(p.MOUMean), nanToNull(p.AgeMean), string(flagJSON)}
	}
	_, err := db.CopyFrom(ctx, s.pool, "family_profiles",
		[]string{"run_id", "family_id", "size", "arpu_mean", "dou_mean", "mou_mean", "age_mean", "flag_means"}, rows)
	return err
}

func (s *PostgresStore) ListFamilies(ctx context.Context, runID string) ([]FamilySummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT family_id,
		        COUNT(*) AS size,
		        COALESCE(MAX(CASE WHEN key_person THEN subscriber_id END), '') AS key_person
		 FROM family_members WHERE run_id = $1 GROUP BY family_id ORDER BY family_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list families")
	}
	defer rows.Close()

	var out []FamilySummary
	for rows.Next() {
		var f FamilySummary
		if err := rows.Scan(&f.FamilyID, &f.Size, &f.KeyPerson); err != nil {
			return nil, eris.Wrap(err, "postgres: scan family")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list families")
}

func (s *PostgresStore) GetFamilyMembers(ctx context.Context, runID, familyID string) ([]model.FamilyMember, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subscriber_id, family_id, key_person FROM family_members
		 WHERE run_id = $1 AND family_id = $2 ORDER BY subscriber_id`,
		runID, familyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get family members")
	}
	defer rows.Close()

	var out []model.FamilyMember
	for rows.Next() {
		var m model.FamilyMember
		if err := rows.Scan(&m.SubscriberID, &m.FamilyID, &m.KeyPerson); err != nil {
			return nil, eris.Wrap(err, "postgres: scan family member")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: get family members")
}

func (s *PostgresStore) GetFamilyProfile(ctx context.Context, runID, familyID string) (*model.FamilyProfile, error) {
	var p model.FamilyProfile
	var arpu, dou, mou, age sql.NullFloat64
	var flagJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT family_id, size, arpu_mean, dou_mean, mou_mean, age_mean, flag_means
		 FROM family_profiles WHERE run_id = $1 AND family_id = $2`,
		runID, familyID,
	).Scan(&p.FamilyID, &p.Size, &arpu, &dou, &mou, &age, &flagJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get family profile")
	}
	p.ARPUMean = nullToNaN(arpu)
	p.DOUMean = nullToNaN(dou)
	p.MOUMean = nullToNaN(mou)
	p.AgeMean = nullToNaN(age)
	if len(flagJSON) > 0 {
		if err := json.Unmarshal(flagJSON, &p.FlagMeans); err != nil {
			return nil, eris.Wrap(err, "postgres: parse flag means")
		}
	}
	return &p, nil
}

func (s *PostgresStore) GetSubscriberFamily(ctx context.Context, runID, subscriberID string) (*model.FamilyMember, error) {
	var m model.FamilyMember
	err := s.pool.QueryRow(ctx,
		`SELECT subscriber_id, family_id, key_person FROM family_members
		 WHERE run_id = $1 AND subscriber_id = $2`,
		runID, subscriberID,
	).Scan(&m.SubscriberID, &m.FamilyID, &m.KeyPerson)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get subscriber family")
	}
	return &m, nil
}
