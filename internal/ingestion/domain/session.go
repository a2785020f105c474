package ingestion

import (
	"context"
	"time"
)

// SessionCandidate is a clustered group of fragments proposed as one vehicle trip.
// Candidates are transient: they live for a single ingestion run and are either
// persisted or dropped.
type SessionCandidate struct {
	VehicleID string
	Start     time.Time
	End       time.Time
	Fragments []Fragment
	Sequence  int
}

// Kinds returns the distinct sensor kinds present in the candidate.
func (c SessionCandidate) Kinds() map[RecordKind]struct{} {
	kinds := make(map[RecordKind]struct{}, len(c.Fragments))
	for _, fragment := range c.Fragments {
		kinds[fragment.Kind] = struct{}{}
	}
	return kinds
}

// Acceptable reports whether the candidate carries at least two distinct
// sensor kinds, one of them stability.
func (c SessionCandidate) Acceptable() bool {
	kinds := c.Kinds()
	if len(kinds) < 2 {
		return false
	}
	_, ok := kinds[KindStability]
	return ok
}

// SessionKeyStrategy selects how the dedup guard keys stored sessions.
type SessionKeyStrategy string

const (
	// SessionKeyStartEnd matches on (vehicle, start, end).
	SessionKeyStartEnd SessionKeyStrategy = "start_end"
	// SessionKeyStartOnly matches on (vehicle, start), the alternate
	// pipeline's behavior.
	SessionKeyStartOnly SessionKeyStrategy = "start_only"
)

// IsValid reports whether the strategy is one of the two known keyings.
func (s SessionKeyStrategy) IsValid() bool {
	return s == SessionKeyStartEnd || s == SessionKeyStartOnly
}

// PersistedSession is the store's view of a session. Only identity and the
// per-vehicle sequence matter to the core.
type PersistedSession struct {
	ID        string
	VehicleID string
	Start     time.Time
	End       time.Time
	Sequence  int
}

// Measurement is one flattened record row bound to a persisted session.
type Measurement struct {
	SessionID string
	Kind      RecordKind
	TS        time.Time
	Values    map[string]float64
	Text      string
}

// SessionRepository is the persistence guard's view of the external store.
type SessionRepository interface {
	// FindSession returns nil when no session matches the configured key.
	FindSession(ctx context.Context, vehicleID string, start, end time.Time) (*PersistedSession, error)
	// NextSequence returns last stored sequence for the vehicle plus one.
	NextSequence(ctx context.Context, vehicleID string) (int, error)
	CreateSession(ctx context.Context, candidate SessionCandidate) (*PersistedSession, error)
}

// MeasurementRepository persists flattened records. InsertMeasurements must
// tolerate re-insertion of identical rows without erroring so the dedup guard
// stays safe under partial retry.
type MeasurementRepository interface {
	InsertMeasurements(ctx context.Context, rows []Measurement) error
}
