package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	ingestion "fleet-telemetry/internal/ingestion/domain"
)

const defaultMeasurementTable = "session_measurements"

// MeasurementRepository stores flattened telemetry rows per session.
type MeasurementRepository struct {
	db    *sql.DB
	table string
}

// MeasurementRepositoryOption configures the repository.
type MeasurementRepositoryOption func(*MeasurementRepository)

// WithMeasurementTable overrides the default table name.
func WithMeasurementTable(table string) MeasurementRepositoryOption {
	return func(repo *MeasurementRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewMeasurementRepository constructs a repository with default table name.
func NewMeasurementRepository(db *sql.DB, opts ...MeasurementRepositoryOption) *MeasurementRepository {
	repo := &MeasurementRepository{db: db, table: defaultMeasurementTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InsertMeasurements writes one chunk of rows. Re-inserting an identical row
// is a no-op (ON CONFLICT DO NOTHING), which keeps the dedup guard safe when
// a previous run died between chunks.
func (r *MeasurementRepository) InsertMeasurements(ctx context.Context, rows []ingestion.Measurement) error {
	if r == nil || r.db == nil {
		return errors.New("measurement repo: nil db")
	}
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (session_id, kind, ts, payload, text_value)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id, kind, ts) DO NOTHING`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if row.SessionID == "" || !row.Kind.IsValid() || row.TS.IsZero() {
			_ = tx.Rollback()
			return errors.New("measurement repo: invalid row")
		}
		values, err := json.Marshal(row.Values)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		textValue := sql.NullString{}
		if row.Text != "" {
			textValue = sql.NullString{String: row.Text, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, row.SessionID, string(row.Kind), row.TS, values, textValue); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
