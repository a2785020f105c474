package kpi

import (
	"context"
	"strings"
	"time"
)

// Record is one vehicle's operational KPIs for one calendar day. Records are
// recomputed idempotently: a rerun for the same (vehicle, date) replaces the
// stored value, it never accumulates.
type Record struct {
	VehicleID              string    `json:"vehicle_id"`
	Date                   time.Time `json:"date"`
	ClaveOnMinutes         float64   `json:"clave_on_minutes"`
	ClaveOffMinutes        float64   `json:"clave_off_minutes"`
	OutOfParkMinutes       float64   `json:"out_of_park_minutes"`
	WorkshopMinutes        float64   `json:"workshop_minutes"`
	ParkMinutes            float64   `json:"park_minutes"`
	HighSeverityEvents     int       `json:"high_severity_events"`
	ModerateSeverityEvents int       `json:"moderate_severity_events"`
}

// Repository persists daily KPI records with create-or-replace semantics.
type Repository interface {
	Upsert(ctx context.Context, record Record) error
	Get(ctx context.Context, vehicleID string, date time.Time) (*Record, error)
}

// ZoneRepository loads an organization's zones.
type ZoneRepository interface {
	FindZones(ctx context.Context, orgID string) ([]Zone, error)
}

// SessionQuery resolves which stored sessions touch a day.
type SessionQuery interface {
	SessionIDsOverlappingDay(ctx context.Context, vehicleID string, dayStart, dayEnd time.Time) ([]string, error)
}

// GPSPoint is one stored position fix, ordered by timestamp when queried.
type GPSPoint struct {
	TS        time.Time
	Latitude  float64
	Longitude float64
}

// TelemetryQuery loads the stored measurement streams the engine walks.
// All results come back ascending by timestamp.
type TelemetryQuery interface {
	GPSPoints(ctx context.Context, sessionIDs []string) ([]GPSPoint, error)
	BeaconEvents(ctx context.Context, sessionIDs []string) ([]BeaconEvent, error)
	SeverityEvents(ctx context.Context, sessionIDs []string) ([]string, error)
}

// Severity buckets an event type string.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityModerate
	SeverityHigh
)

var (
	highSeverityKeywords     = []string{"critico", "curva_brusca"}
	moderateSeverityKeywords = []string{"moderado", "warning"}
)

// ClassifySeverity matches an event type by keyword. Unmatched types are
// neither high nor moderate.
func ClassifySeverity(eventType string) Severity {
	lowered := strings.ToLower(eventType)
	for _, keyword := range highSeverityKeywords {
		if strings.Contains(lowered, keyword) {
			return SeverityHigh
		}
	}
	for _, keyword := range moderateSeverityKeywords {
		if strings.Contains(lowered, keyword) {
			return SeverityModerate
		}
	}
	return SeverityNone
}
