package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/telco-insight/family-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	params     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	metrics    TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scored_pairs (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	u           TEXT NOT NULL,
	v           TEXT NOT NULL,
	probability REAL NOT NULL,
	rule_hit    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, u, v)
);

CREATE TABLE IF NOT EXISTS family_members (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	subscriber_id TEXT NOT NULL,
	family_id     TEXT NOT NULL,
	key_person    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, subscriber_id)
);

CREATE TABLE IF NOT EXISTS family_profiles (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	family_id  TEXT NOT NULL,
	size       INTEGER NOT NULL,
	arpu_mean  REAL,
	dou_mean   REAL,
	mou_mean   REAL,
	age_mean   REAL,
	flag_means TEXT,
	PRIMARY KEY (run_id, family_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_family_members_family ON family_members(run_id, family_id);
CREATE INDEX IF NOT EXISTS idx_scored_pairs_u ON scored_pairs(run_id, u);
CREATE INDEX IF NOT EXISTS idx_scored_pairs_v ON scored_pairs(run_id, v);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(paramsJSON), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Params:    params,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, metrics model.RunMetrics) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metrics")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, metrics = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(metricsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), runErr.Error(), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, params, status, metrics, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRunRow(row.Scan)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, params, status, metrics, error, created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
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
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func (s *SQLiteStore) SaveScoredPairs(ctx context.Context, runID string, pairs []model.ScoredPair) error {
	return s.bulkInsert(ctx, "scored pairs",
		`INSERT INTO scored_pairs (run_id, u, v, probability, rule_hit) VALUES (?, ?, ?, ?, ?)`,
		len(pairs), func(i int) []any {
			p := pairs[i]
			return []any{runID, p.U, p.V, p.Probability, p.RuleHit}
		})
}

func (s *SQLiteStore) SaveFamilyMembers(ctx context.Context, runID string, members []model.FamilyMember) error {
	return s.bulkInsert(ctx, "family members",
		`INSERT INTO family_members (run_id, subscriber_id, family_id, key_person) VALUES (?, ?, ?, ?)`,
		len(members), func(i int) []any {
			m := members[i]
			return []any{runID, m.SubscriberID, m.FamilyID, boolToInt(m.KeyPerson)}
		})
}

func (s *SQLiteStore) SaveFamilyProfiles(ctx context.Context, runID string, profiles []model.FamilyProfile) error {
	flagJSON := make([]string, len(profiles))
	for i, p := range profiles {
		data, err := json.Marshal(p.FlagMeans)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal flag means")
		}
		flagJSON[i] = string(data)
	}
	return s.bulkInsert(ctx, "family profiles",
		`INSERT INTO family_profiles (run_id, family_id, size, arpu_mean, dou_mean, mou_mean, age_mean, flag_means) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		len(profiles), func(i int) []any {
			p := profiles[i]
			return []any{runID, p.FamilyID, p.Size, nanToNull(p.ARPUMean), nanToNull(p.DOUMean), nanToNull(p.MOUMean), nanToNull(p.AgeMean), flagJSON[i]}
		})
}

// bulkInsert writes rows inside one transaction; a single statement failure
// rolls back the whole batch.
func (s *SQLiteStore) bulkInsert(ctx context.Context, what, query string, n int, args func(int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin %s", what)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare %s", what)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", what)
		}
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit %s", what)
}

func (s *SQLiteStore) ListFamilies(ctx context.Context, runID string) ([]FamilySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT family_id,
		        COUNT(*) AS size,
		        COALESCE(MAX(CASE WHEN key_person = 1 THEN subscriber_id END), '') AS key_person
		 FROM family_members WHERE run_id = ? GROUP BY family_id ORDER BY family_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list families")
	}
	defer rows.Close()

	var out []FamilySummary
	for rows.Next() {
		var f FamilySummary
		if err := rows.Scan(&f.FamilyID, &f.Size, &f.KeyPerson); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan family")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list families")
}

func (s *SQLiteStore) GetFamilyMembers(ctx context.Context, runID, familyID string) ([]model.FamilyMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subscriber_id, family_id, key_person FROM family_members
		 WHERE run_id = ? AND family_id = ? ORDER BY subscriber_id`,
		runID, familyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get family members")
	}
	defer rows.Close()

	var out []model.FamilyMember
	for rows.Next() {
		var m model.FamilyMember
		var kp int
		if err := rows.Scan(&m.SubscriberID, &m.FamilyID, &kp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan family member")
		}
		m.KeyPerson = kp == 1
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get family members")
}

func (s *SQLiteStore) GetFamilyProfile(ctx context.Context, runID, familyID string) (*model.FamilyProfile, error) {
	var p model.FamilyProfile
	var arpu, dou, mou, age sql.NullFloat64
	var flagJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT family_id, size, arpu_mean, dou_mean, mou_mean, age_mean, flag_means
		 FROM family_profiles WHERE run_id = ? AND family_id = ?`,
		runID, familyID,
	).Scan(&p.FamilyID, &p.Size, &arpu, &dou, &mou, &age, &flagJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get family profile")
	}
	p.ARPUMean = nullToNaN(arpu)
	p.DOUMean = nullToNaN(dou)
	p.MOUMean = nullToNaN(mou)
	p.AgeMean = nullToNaN(age)
	if flagJSON.Valid && flagJSON.String != "" {
		if err := json.Unmarshal([]byte(flagJSON.String), &p.FlagMeans); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse flag means")
		}
	}
	return &p, nil
}

func (s *SQLiteStore) GetSubscriberFamily(ctx context.Context, runID, subscriberID string) (*model.FamilyMember, error) {
	var m model.FamilyMember
	var kp int
	err := s.db.QueryRowContext(ctx,
		`SELECT subscriber_id, family_id, key_person FROM family_members
		 WHERE run_id = ? AND subscriber_id = ?`,
		runID, subscriberID,
	).Scan(&m.SubscriberID, &m.FamilyID, &kp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get subscriber family")
	}
	m.KeyPerson = kp == 1
	return &m, nil
}
