package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleet-telemetry/internal/eventing"
	"fleet-telemetry/internal/ingestion/application/events"
	ingestion "fleet-telemetry/internal/ingestion/domain"
	"fleet-telemetry/internal/ingestion/parser"
)

const defaultBatchSize = 1000

// Clock provides time for run timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// InputFile is one raw recorder file handed in by the transport layer.
type InputFile struct {
	Name    string
	Content []byte
}

// Service runs the ingestion pipeline for one vehicle at a time: parse files
// into fragments, cluster fragments into session candidates, guard against
// already-persisted sessions, and persist the rest with their measurements.
type Service struct {
	sessions     ingestion.SessionRepository
	measurements ingestion.MeasurementRepository
	normalizer   *parser.Normalizer
	bus          eventing.EventBus
	logger       *log.Logger
	clock        Clock
	batchSize    int
}

// ServiceOption configures the ingestion service.
type ServiceOption func(*Service)

// WithNormalizer overrides the timestamp normalizer.
func WithNormalizer(normalizer *parser.Normalizer) ServiceOption {
	return func(s *Service) {
		if normalizer != nil {
			s.normalizer = normalizer
		}
	}
}

// WithEventBus attaches a bus for SessionCreated events.
func WithEventBus(bus eventing.EventBus) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBatchSize overrides the measurement insert chunk size.
func WithBatchSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// NewService constructs the ingestion service.
func NewService(sessions ingestion.SessionRepository, measurements ingestion.MeasurementRepository, opts ...ServiceOption) (*Service, error) {
	if sessions == nil {
		return nil, errors.New("ingestion service: nil session repository")
	}
	if measurements == nil {
		return nil, errors.New("ingestion service: nil measurement repository")
	}
	service := &Service{
		sessions:     sessions,
		measurements: measurements,
		normalizer:   parser.NewNormalizer(),
		logger:       log.Default(),
		clock:        systemClock{},
		batchSize:    defaultBatchSize,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// IngestVehicle runs one vehicle's files through the full pipeline. The
// returned report is always populated, also when the run aborts on a store
// error; only store failures are errors, malformed input never is.
func (s *Service) IngestVehicle(ctx context.Context, vehicleID string, files []InputFile) (*ingestion.IngestReport, error) {
	if vehicleID == "" {
		return nil, errors.New("ingestion service: empty vehicle id")
	}

	report := &ingestion.IngestReport{
		RunID:     uuid.NewString(),
		VehicleID: vehicleID,
		StartedAt: s.clock.Now(),
	}

	var fragments []ingestion.Fragment
	for _, file := range files {
		kind, ok := DetectKind(file.Name, file.Content)
		if !ok {
			report.AddFile(ingestion.FileReport{
				SourceFile: file.Name,
				Dropped:    true,
				DropReason: ingestion.ErrUnknownKind.Error(),
			})
			continue
		}
		fileParser, err := parser.ForKind(kind, s.normalizer)
		if err != nil {
			report.AddFile(ingestion.FileReport{
				SourceFile: file.Name,
				Kind:       kind,
				Dropped:    true,
				DropReason: err.Error(),
			})
			continue
		}
		fragment, fileReport := BuildFragment(fileParser, file.Content, file.Name)
		report.AddFile(fileReport)
		if fragment != nil {
			fragments = append(fragments, *fragment)
		}
	}
	report.FragmentsBuilt = len(fragments)

	clustered := Cluster(vehicleID, fragments)
	report.InsufficientData = clustered.Insufficient

	for _, candidate := range clustered.Accepted {
		created, err := s.persistCandidate(ctx, candidate)
		if err != nil {
			report.FinishedAt = s.clock.Now()
			return report, fmt.Errorf("ingestion service: vehicle %s: %w", vehicleID, err)
		}
		if created == nil {
			report.SessionsOmitted++
			continue
		}
		report.SessionsCreated++
	}

	report.FinishedAt = s.clock.Now()
	return report, nil
}

// persistCandidate applies the dedup guard. A nil session with nil error
// means the candidate was omitted as already stored.
func (s *Service) persistCandidate(ctx context.Context, candidate ingestion.SessionCandidate) (*ingestion.PersistedSession, error) {
	existing, err := s.sessions.FindSession(ctx, candidate.VehicleID, candidate.Start, candidate.End)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	sequence, err := s.sessions.NextSequence(ctx, candidate.VehicleID)
	if err != nil {
		return nil, err
	}
	candidate.Sequence = sequence

	session, err := s.sessions.CreateSession(ctx, candidate)
	if err != nil {
		return nil, err
	}

	rows := flattenMeasurements(session.ID, candidate)
	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.measurements.InsertMeasurements(ctx, rows[start:end]); err != nil {
			return nil, err
		}
	}

	if s.bus != nil {
		event := events.SessionCreated{
			SessionID:  session.ID,
			VehicleID:  session.VehicleID,
			Start:      session.Start,
			End:        session.End,
			Sequence:   session.Sequence,
			OccurredAt: s.clock.Now(),
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Printf("ingestion: session created event: %v", err)
		}
	}

	return session, nil
}

// DetectKind resolves a file's sensor family from the filename convention
// TYPE_VEHICLEID_YYYYMMDD.{txt|csv}, falling back to the in-file type marker.
func DetectKind(name string, content []byte) (ingestion.RecordKind, bool) {
	base := strings.ToUpper(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	if marker, _, found := strings.Cut(base, "_"); found {
		if kind, ok := ingestion.KindFromMarker(marker); ok {
			return kind, true
		}
	}

	firstLine := string(content)
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	if header, ok := parser.ParseLegacyHeader(firstLine, nil); ok {
		return header.Kind, true
	}
	return "", false
}

func flattenMeasurements(sessionID string, candidate ingestion.SessionCandidate) []ingestion.Measurement {
	var rows []ingestion.Measurement
	for _, fragment := range candidate.Fragments {
		for _, record := range fragment.Records {
			rows = append(rows, toMeasurement(sessionID, record))
		}
	}
	return rows
}

func toMeasurement(sessionID string, record ingestion.Record) ingestion.Measurement {
	row := ingestion.Measurement{
		SessionID: sessionID,
		Kind:      record.Kind(),
		TS:        record.Timestamp(),
	}
	switch r := record.(type) {
	case ingestion.StabilityRecord:
		row.Values = map[string]float64{
			"accel_x":         r.AccelX,
			"accel_y":         r.AccelY,
			"accel_z":         r.AccelZ,
			"gyro_x":          r.GyroX,
			"gyro_y":          r.GyroY,
			"gyro_z":          r.GyroZ,
			"stability_index": r.StabilityIndex,
		}
	case ingestion.CANRecord:
		row.Values = map[string]float64{
			"engine_rpm":         r.EngineRPM,
			"vehicle_speed":      r.VehicleSpeed,
			"fuel_system_status": r.FuelSystemStatus,
		}
	case ingestion.GPSRecord:
		row.Values = map[string]float64{
			"latitude":  r.Latitude,
			"longitude": r.Longitude,
			"altitude":  r.Altitude,
			"speed":     r.Speed,
		}
	case ingestion.RotativoRecord:
		state := 0.0
		if r.State == ingestion.BeaconOn {
			state = 1
		}
		row.Values = map[string]float64{"state": state}
		row.Text = string(r.State)
	}
	return row
}
