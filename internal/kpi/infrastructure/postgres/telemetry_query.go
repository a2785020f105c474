package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	kpi "fleet-telemetry/internal/kpi/domain"
)

const (
	defaultQueryMeasurementTable = "session_measurements"
	defaultQuerySessionTable     = "vehicle_sessions"
	defaultEventTable            = "vehicle_events"
)

// TelemetryQuery reads the stored measurement streams the KPI engine consumes.
type TelemetryQuery struct {
	db               *sql.DB
	measurementTable string
	sessionTable     string
	eventTable       string
}

// TelemetryQueryOption configures the query.
type TelemetryQueryOption func(*TelemetryQuery)

// WithTables overrides the default table names. Empty names keep defaults.
func WithTables(measurements, sessions, events string) TelemetryQueryOption {
	return func(q *TelemetryQuery) {
		if measurements != "" {
			q.measurementTable = measurements
		}
		if sessions != "" {
			q.sessionTable = sessions
		}
		if events != "" {
			q.eventTable = events
		}
	}
}

// NewTelemetryQuery constructs a query with default table names.
func NewTelemetryQuery(db *sql.DB, opts ...TelemetryQueryOption) *TelemetryQuery {
	query := &TelemetryQuery{
		db:               db,
		measurementTable: defaultQueryMeasurementTable,
		sessionTable:     defaultQuerySessionTable,
		eventTable:       defaultEventTable,
	}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// SessionIDsOverlappingDay returns ids of sessions intersecting [dayStart, dayEnd).
func (q *TelemetryQuery) SessionIDsOverlappingDay(ctx context.Context, vehicleID string, dayStart, dayEnd time.Time) ([]string, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}
	if vehicleID == "" || dayStart.IsZero() || dayEnd.IsZero() {
		return nil, errors.New("telemetry query: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT id
FROM %s
WHERE vehicle_id = $1
	AND start_ts < $3
	AND end_ts >= $2
ORDER BY start_ts ASC`, q.sessionTable)

	rows, err := q.db.QueryContext(ctx, query, vehicleID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GPSPoints returns the sessions' GPS fixes ascending by timestamp.
func (q *TelemetryQuery) GPSPoints(ctx context.Context, sessionIDs []string) ([]kpi.GPSPoint, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	placeholders, args := inArgs(sessionIDs)
	query := fmt.Sprintf(`
SELECT ts, (payload->>'latitude')::float8, (payload->>'longitude')::float8
FROM %s
WHERE kind = 'gps'
	AND session_id IN (%s)
ORDER BY ts ASC`, q.measurementTable, placeholders)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []kpi.GPSPoint
	for rows.Next() {
		var point kpi.GPSPoint
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&point.TS, &lat, &lon); err != nil {
			return nil, err
		}
		if !lat.Valid || !lon.Valid {
			continue
		}
		point.Latitude = lat.Float64
		point.Longitude = lon.Float64
		points = append(points, point)
	}
	return points, rows.Err()
}

// BeaconEvents returns the sessions' beacon transitions ascending by timestamp.
func (q *TelemetryQuery) BeaconEvents(ctx context.Context, sessionIDs []string) ([]kpi.BeaconEvent, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	placeholders, args := inArgs(sessionIDs)
	query := fmt.Sprintf(`
SELECT ts, text_value
FROM %s
WHERE kind = 'rotativo'
	AND session_id IN (%s)
ORDER BY ts ASC`, q.measurementTable, placeholders)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []kpi.BeaconEvent
	for rows.Next() {
		var ts time.Time
		var state sql.NullString
		if err := rows.Scan(&ts, &state); err != nil {
			return nil, err
		}
		events = append(events, kpi.BeaconEvent{TS: ts, On: strings.EqualFold(state.String, "ON")})
	}
	return events, rows.Err()
}

// SeverityEvents returns the sessions' event type strings ascending by timestamp.
func (q *TelemetryQuery) SeverityEvents(ctx context.Context, sessionIDs []string) ([]string, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	placeholders, args := inArgs(sessionIDs)
	query := fmt.Sprintf(`
SELECT event_type
FROM %s
WHERE session_id IN (%s)
ORDER BY ts ASC`, q.eventTable, placeholders)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var eventType string
		if err := rows.Scan(&eventType); err != nil {
			return nil, err
		}
		types = append(types, eventType)
	}
	return types, rows.Err()
}

func inArgs(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}
