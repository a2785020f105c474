package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	ingestion "fleet-telemetry/internal/ingestion/domain"
)

const defaultSessionTable = "vehicle_sessions"

// SessionRepository is the Postgres persistence guard backend.
type SessionRepository struct {
	db       *sql.DB
	table    string
	strategy ingestion.SessionKeyStrategy
}

// SessionRepositoryOption configures the repository.
type SessionRepositoryOption func(*SessionRepository)

// WithSessionTable overrides the default table name.
func WithSessionTable(table string) SessionRepositoryOption {
	return func(repo *SessionRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithKeyStrategy selects the dedup key. Default is (vehicle, start, end);
// the alternate ingestion pipeline keys on (vehicle, start) alone.
func WithKeyStrategy(strategy ingestion.SessionKeyStrategy) SessionRepositoryOption {
	return func(repo *SessionRepository) {
		if strategy.IsValid() {
			repo.strategy = strategy
		}
	}
}

// NewSessionRepository constructs a repository with default table and keying.
func NewSessionRepository(db *sql.DB, opts ...SessionRepositoryOption) *SessionRepository {
	repo := &SessionRepository{db: db, table: defaultSessionTable, strategy: ingestion.SessionKeyStartEnd}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// FindSession returns the stored session matching the configured key, or nil.
func (r *SessionRepository) FindSession(ctx context.Context, vehicleID string, start, end time.Time) (*ingestion.PersistedSession, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	if vehicleID == "" || start.IsZero() {
		return nil, errors.New("session repo: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT id, vehicle_id, start_ts, end_ts, sequence
FROM %s
WHERE vehicle_id = $1
	AND start_ts = $2`, r.table)
	args := []any{vehicleID, start}
	if r.strategy == ingestion.SessionKeyStartEnd {
		query += "\n\tAND end_ts = $3"
		args = append(args, end)
	}
	query += "\nLIMIT 1"

	row := r.db.QueryRowContext(ctx, query, args...)
	session := &ingestion.PersistedSession{}
	err := row.Scan(&session.ID, &session.VehicleID, &session.Start, &session.End, &session.Sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// NextSequence returns the vehicle's last stored sequence plus one.
func (r *SessionRepository) NextSequence(ctx context.Context, vehicleID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("session repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT COALESCE(MAX(sequence), 0)
FROM %s
WHERE vehicle_id = $1`, r.table)

	var last int
	if err := r.db.QueryRowContext(ctx, query, vehicleID).Scan(&last); err != nil {
		return 0, err
	}
	return last + 1, nil
}

// CreateSession stores an accepted candidate and returns the persisted row.
func (r *SessionRepository) CreateSession(ctx context.Context, candidate ingestion.SessionCandidate) (*ingestion.PersistedSession, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	if candidate.VehicleID == "" || candidate.Start.IsZero() || candidate.End.IsZero() {
		return nil, errors.New("session repo: invalid candidate")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, vehicle_id, start_ts, end_ts, sequence, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())`, r.table)

	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx, query, id, candidate.VehicleID, candidate.Start, candidate.End, candidate.Sequence); err != nil {
		return nil, err
	}
	return &ingestion.PersistedSession{
		ID:        id,
		VehicleID: candidate.VehicleID,
		Start:     candidate.Start,
		End:       candidate.End,
		Sequence:  candidate.Sequence,
	}, nil
}

// SessionsOverlappingDay returns sessions intersecting [dayStart, dayEnd).
func (r *SessionRepository) SessionsOverlappingDay(ctx context.Context, vehicleID string, dayStart, dayEnd time.Time) ([]ingestion.PersistedSession, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, vehicle_id, start_ts, end_ts, sequence
FROM %s
WHERE vehicle_id = $1
	AND start_ts < $3
	AND end_ts >= $2
ORDER BY start_ts ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, vehicleID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []ingestion.PersistedSession
	for rows.Next() {
		var session ingestion.PersistedSession
		if err := rows.Scan(&session.ID, &session.VehicleID, &session.Start, &session.End, &session.Sequence); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
