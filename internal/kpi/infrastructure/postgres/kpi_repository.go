package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	kpi "fleet-telemetry/internal/kpi/domain"
)

const defaultKPITable = "vehicle_daily_kpis"

// KPIRepository stores daily KPI records in Postgres.
type KPIRepository struct {
	db    *sql.DB
	table string
}

// KPIRepositoryOption configures the repository.
type KPIRepositoryOption func(*KPIRepository)

// WithKPITable overrides the default table name.
func WithKPITable(table string) KPIRepositoryOption {
	return func(repo *KPIRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewKPIRepository constructs a repository with default table name.
func NewKPIRepository(db *sql.DB, opts ...KPIRepositoryOption) *KPIRepository {
	repo := &KPIRepository{db: db, table: defaultKPITable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Upsert creates or replaces the record for (vehicle, date).
func (r *KPIRepository) Upsert(ctx context.Context, record kpi.Record) error {
	if r == nil || r.db == nil {
		return errors.New("kpi repo: nil db")
	}
	if record.VehicleID == "" || record.Date.IsZero() {
		return errors.New("kpi repo: invalid record")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	vehicle_id,
	day,
	clave_on_minutes,
	clave_off_minutes,
	out_of_park_minutes,
	workshop_minutes,
	park_minutes,
	high_severity_events,
	moderate_severity_events,
	updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
)
ON CONFLICT (vehicle_id, day)
DO UPDATE SET
	clave_on_minutes = EXCLUDED.clave_on_minutes,
	clave_off_minutes = EXCLUDED.clave_off_minutes,
	out_of_park_minutes = EXCLUDED.out_of_park_minutes,
	workshop_minutes = EXCLUDED.workshop_minutes,
	park_minutes = EXCLUDED.park_minutes,
	high_severity_events = EXCLUDED.high_severity_events,
	moderate_severity_events = EXCLUDED.moderate_severity_events,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		record.VehicleID,
		record.Date,
		record.ClaveOnMinutes,
		record.ClaveOffMinutes,
		record.OutOfParkMinutes,
		record.WorkshopMinutes,
		record.ParkMinutes,
		record.HighSeverityEvents,
		record.ModerateSeverityEvents,
	)
	return err
}

// Get returns the stored record for (vehicle, date), or nil.
func (r *KPIRepository) Get(ctx context.Context, vehicleID string, date time.Time) (*kpi.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("kpi repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT vehicle_id, day, clave_on_minutes, clave_off_minutes, out_of_park_minutes,
	workshop_minutes, park_minutes, high_severity_events, moderate_severity_events
FROM %s
WHERE vehicle_id = $1 AND day = $2`, r.table)

	row := r.db.QueryRowContext(ctx, query, vehicleID, date)
	record := &kpi.Record{}
	err := row.Scan(
		&record.VehicleID,
		&record.Date,
		&record.ClaveOnMinutes,
		&record.ClaveOffMinutes,
		&record.OutOfParkMinutes,
		&record.WorkshopMinutes,
		&record.ParkMinutes,
		&record.HighSeverityEvents,
		&record.ModerateSeverityEvents,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
