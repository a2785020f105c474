package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	kpi "fleet-telemetry/internal/kpi/domain"
)

// Engine computes one vehicle's daily KPIs from stored telemetry: a
// time-weighted walk over consecutive GPS fixes, each interval attributed to
// exactly one bucket by zone class and beacon state, plus severity counters
// over the day's event records.
type Engine struct {
	sessions  kpi.SessionQuery
	telemetry kpi.TelemetryQuery
	zones     kpi.ZoneRepository
	records   kpi.Repository
	logger    *log.Logger
}

// NewEngine constructs the KPI engine.
func NewEngine(sessions kpi.SessionQuery, telemetry kpi.TelemetryQuery, zones kpi.ZoneRepository, records kpi.Repository, logger *log.Logger) (*Engine, error) {
	if sessions == nil {
		return nil, errors.New("kpi engine: nil session query")
	}
	if telemetry == nil {
		return nil, errors.New("kpi engine: nil telemetry query")
	}
	if zones == nil {
		return nil, errors.New("kpi engine: nil zone repository")
	}
	if records == nil {
		return nil, errors.New("kpi engine: nil record repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{sessions: sessions, telemetry: telemetry, zones: zones, records: records, logger: logger}, nil
}

// ComputeDay builds and stores the KPI record for (vehicleID, date).
// A day without sessions produces an all-zero record, not an error.
func (e *Engine) ComputeDay(ctx context.Context, vehicleID, orgID string, date time.Time) (*kpi.Record, error) {
	if vehicleID == "" {
		return nil, errors.New("kpi engine: empty vehicle id")
	}
	if date.IsZero() {
		return nil, errors.New("kpi engine: zero date")
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	record := kpi.Record{VehicleID: vehicleID, Date: dayStart}

	sessionIDs, err := e.sessions.SessionIDsOverlappingDay(ctx, vehicleID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("kpi engine: sessions: %w", err)
	}
	if len(sessionIDs) == 0 {
		if err := e.records.Upsert(ctx, record); err != nil {
			return nil, fmt.Errorf("kpi engine: upsert: %w", err)
		}
		return &record, nil
	}

	zones, err := e.zones.FindZones(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("kpi engine: zones: %w", err)
	}
	locator := kpi.NewLocator(zones)

	points, err := e.telemetry.GPSPoints(ctx, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("kpi engine: gps: %w", err)
	}
	beaconEvents, err := e.telemetry.BeaconEvents(ctx, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("kpi engine: beacon: %w", err)
	}
	eventTypes, err := e.telemetry.SeverityEvents(ctx, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("kpi engine: events: %w", err)
	}

	timeline := kpi.NewBeaconTimeline(beaconEvents)

	for i := 0; i+1 < len(points); i++ {
		p1, p2 := points[i], points[i+1]
		minutes := p2.TS.Sub(p1.TS).Minutes()
		if minutes <= 0 {
			continue
		}

		class := locator.Classify(kpi.Point{Latitude: p1.Latitude, Longitude: p1.Longitude})
		switch class {
		case kpi.LocationWorkshop:
			record.WorkshopMinutes += minutes
		case kpi.LocationPark:
			record.ParkMinutes += minutes
		default:
			record.OutOfParkMinutes += minutes
			if timeline.StateAt(p1.TS) {
				record.ClaveOnMinutes += minutes
			} else {
				record.ClaveOffMinutes += minutes
			}
		}
	}

	for _, eventType := range eventTypes {
		switch kpi.ClassifySeverity(eventType) {
		case kpi.SeverityHigh:
			record.HighSeverityEvents++
		case kpi.SeverityModerate:
			record.ModerateSeverityEvents++
		}
	}

	if err := e.records.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("kpi engine: upsert: %w", err)
	}
	return &record, nil
}
