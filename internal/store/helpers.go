package store

import (
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/telco-insight/family-cli/internal/model"
)

// scanRunRow decodes one runs row from any row scanner (database/sql or pgx).
func scanRunRow(scan func(dest ...any) error) (*model.Run, error) {
	var run model.Run
	var paramsJSON string
	var metricsJSON, errMsg sql.NullString
	var createdAt, updatedAt time.Time

	if err := scan(&run.ID, &paramsJSON, (*string)(&run.Status), &metricsJSON, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, eris.Wrap(err, "store: get run")
	}

	if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
		return nil, eris.Wrap(err, "store: parse run params")
	}
	if metricsJSON.Valid && metricsJSON.String != "" {
		run.Metrics = &model.RunMetrics{}
		if err := json.Unmarshal([]byte(metricsJSON.String), run.Metrics); err != nil {
			return nil, eris.Wrap(err, "store: parse run metrics")
		}
	}
	run.Error = errMsg.String
	run.CreatedAt = createdAt
	run.UpdatedAt = updatedAt
	return &run, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "store: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("store: %s %s not found", kind, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nanToNull maps a missing mean (NaN) to SQL NULL.
func nanToNull(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
