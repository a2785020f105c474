package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"fleet-telemetry/internal/eventing"
	"fleet-telemetry/internal/ingestion/application/events"
	ingestion "fleet-telemetry/internal/ingestion/domain"
)

type stubSessionRepo struct {
	sessions []ingestion.PersistedSession
	findErr  error
}

func (r *stubSessionRepo) FindSession(_ context.Context, vehicleID string, start, end time.Time) (*ingestion.PersistedSession, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for i, s := range r.sessions {
		if s.VehicleID == vehicleID && s.Start.Equal(start) && s.End.Equal(end) {
			return &r.sessions[i], nil
		}
	}
	return nil, nil
}

func (r *stubSessionRepo) NextSequence(_ context.Context, vehicleID string) (int, error) {
	max := 0
	for _, s := range r.sessions {
		if s.VehicleID == vehicleID && s.Sequence > max {
			max = s.Sequence
		}
	}
	return max + 1, nil
}

func (r *stubSessionRepo) CreateSession(_ context.Context, candidate ingestion.SessionCandidate) (*ingestion.PersistedSession, error) {
	session := ingestion.PersistedSession{
		ID:        fmt.Sprintf("session-%d", len(r.sessions)+1),
		VehicleID: candidate.VehicleID,
		Start:     candidate.Start,
		End:       candidate.End,
		Sequence:  candidate.Sequence,
	}
	r.sessions = append(r.sessions, session)
	return &session, nil
}

type stubMeasurementRepo struct {
	batches [][]ingestion.Measurement
	err     error
}

func (r *stubMeasurementRepo) InsertMeasurements(_ context.Context, rows []ingestion.Measurement) error {
	if r.err != nil {
		return r.err
	}
	batch := append([]ingestion.Measurement(nil), rows...)
	r.batches = append(r.batches, batch)
	return nil
}

type capturingBus struct {
	published []any
}

func (b *capturingBus) Publish(_ context.Context, event any) error {
	b.published = append(b.published, event)
	return nil
}

func (b *capturingBus) Subscribe(string, eventing.EventHandler) {}

func stabilityFile(name string, rows int) InputFile {
	var sb strings.Builder
	base := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		fmt.Fprintf(&sb, "%s;0.1;0.2;9.8;0.01;0.02;0.03\n", ts.Format(time.RFC3339))
	}
	return InputFile{Name: name, Content: []byte(sb.String())}
}

func gpsFile(name string, rows int) InputFile {
	var sb strings.Builder
	base := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		fmt.Fprintf(&sb, "%s;40.41;-3.70;650;12.5\n", ts.Format(time.RFC3339))
	}
	return InputFile{Name: name, Content: []byte(sb.String())}
}

func TestIngestVehicleCreatesSession(t *testing.T) {
	sessions := &stubSessionRepo{}
	measurements := &stubMeasurementRepo{}
	bus := &capturingBus{}
	service, err := NewService(sessions, measurements, WithEventBus(bus))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	files := []InputFile{
		stabilityFile("ESTABILIDAD_VH-1_20240513.txt", 10),
		gpsFile("GPS_VH-1_20240513.txt", 10),
	}
	report, err := service.IngestVehicle(context.Background(), "VH-1", files)
	if err != nil {
		t.Fatalf("IngestVehicle: %v", err)
	}

	if report.RunID == "" {
		t.Fatalf("missing run id")
	}
	if report.FilesScanned != 2 || report.FragmentsBuilt != 2 {
		t.Fatalf("scanned %d built %d, want 2/2", report.FilesScanned, report.FragmentsBuilt)
	}
	if report.SessionsCreated != 1 || report.SessionsOmitted != 0 {
		t.Fatalf("created %d omitted %d, want 1/0", report.SessionsCreated, report.SessionsOmitted)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("stored %d sessions", len(sessions.sessions))
	}
	if got := sessions.sessions[0].Sequence; got != 1 {
		t.Fatalf("sequence %d, want 1", got)
	}

	total := 0
	for _, batch := range measurements.batches {
		total += len(batch)
	}
	if total != 20 {
		t.Fatalf("stored %d measurements, want 20", total)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	evt, ok := bus.published[0].(events.SessionCreated)
	if !ok {
		t.Fatalf("event is %T", bus.published[0])
	}
	if evt.VehicleID != "VH-1" || evt.Sequence != 1 {
		t.Fatalf("event %+v", evt)
	}
}

func TestIngestVehicleSecondRunOmitsEverything(t *testing.T) {
	sessions := &stubSessionRepo{}
	measurements := &stubMeasurementRepo{}
	service, err := NewService(sessions, measurements)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	files := []InputFile{
		stabilityFile("ESTABILIDAD_VH-1_20240513.txt", 5),
		gpsFile("GPS_VH-1_20240513.txt", 5),
	}
	if _, err := service.IngestVehicle(context.Background(), "VH-1", files); err != nil {
		t.Fatalf("first run: %v", err)
	}

	report, err := service.IngestVehicle(context.Background(), "VH-1", files)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.SessionsCreated != 0 || report.SessionsOmitted != 1 {
		t.Fatalf("created %d omitted %d, want 0/1", report.SessionsCreated, report.SessionsOmitted)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("stored %d sessions after rerun", len(sessions.sessions))
	}
	if len(measurements.batches) != 1 {
		t.Fatalf("measurements written %d times, want 1", len(measurements.batches))
	}
}

func TestIngestVehicleSequencesPerVehicle(t *testing.T) {
	sessions := &stubSessionRepo{}
	service, err := NewService(sessions, &stubMeasurementRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	morning := []InputFile{
		stabilityFile("ESTABILIDAD_VH-1_20240513.txt", 5),
		gpsFile("GPS_VH-1_20240513.txt", 5),
	}
	if _, err := service.IngestVehicle(context.Background(), "VH-1", morning); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// A later, disjoint trip for the same vehicle gets the next sequence.
	later := time.Date(2024, 5, 13, 14, 0, 0, 0, time.UTC)
	var stab, gps strings.Builder
	for i := 0; i < 5; i++ {
		ts := later.Add(time.Duration(i) * time.Second).Format(time.RFC3339)
		fmt.Fprintf(&stab, "%s;0.1;0.2;9.8;0.01;0.02;0.03\n", ts)
		fmt.Fprintf(&gps, "%s;40.41;-3.70;650;12.5\n", ts)
	}
	afternoon := []InputFile{
		{Name: "ESTABILIDAD_VH-1_20240514.txt", Content: []byte(stab.String())},
		{Name: "GPS_VH-1_20240514.txt", Content: []byte(gps.String())},
	}
	if _, err := service.IngestVehicle(context.Background(), "VH-1", afternoon); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(sessions.sessions) != 2 {
		t.Fatalf("stored %d sessions, want 2", len(sessions.sessions))
	}
	if sessions.sessions[0].Sequence != 1 || sessions.sessions[1].Sequence != 2 {
		t.Fatalf("sequences %d,%d want 1,2", sessions.sessions[0].Sequence, sessions.sessions[1].Sequence)
	}
}

func TestIngestVehicleChunksMeasurementInserts(t *testing.T) {
	measurements := &stubMeasurementRepo{}
	service, err := NewService(&stubSessionRepo{}, measurements, WithBatchSize(7))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	files := []InputFile{
		stabilityFile("ESTABILIDAD_VH-1_20240513.txt", 10),
		gpsFile("GPS_VH-1_20240513.txt", 10),
	}
	if _, err := service.IngestVehicle(context.Background(), "VH-1", files); err != nil {
		t.Fatalf("IngestVehicle: %v", err)
	}

	if len(measurements.batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(measurements.batches))
	}
	sizes := []int{7, 7, 6}
	for i, want := range sizes {
		if len(measurements.batches[i]) != want {
			t.Fatalf("batch %d size %d, want %d", i, len(measurements.batches[i]), want)
		}
	}
}

func TestIngestVehicleReportsUnknownKind(t *testing.T) {
	service, err := NewService(&stubSessionRepo{}, &stubMeasurementRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	files := []InputFile{{Name: "notes.txt", Content: []byte("free text, no marker")}}
	report, err := service.IngestVehicle(context.Background(), "VH-1", files)
	if err != nil {
		t.Fatalf("IngestVehicle: %v", err)
	}
	if report.FilesScanned != 1 || len(report.Files) != 1 {
		t.Fatalf("report %+v", report)
	}
	file := report.Files[0]
	if !file.Dropped || file.DropReason == "" {
		t.Fatalf("file report %+v, want dropped with reason", file)
	}
}

func TestIngestVehicleStoreErrorAborts(t *testing.T) {
	storeErr := errors.New("connection reset")
	sessions := &stubSessionRepo{findErr: storeErr}
	service, err := NewService(sessions, &stubMeasurementRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	files := []InputFile{
		stabilityFile("ESTABILIDAD_VH-1_20240513.txt", 5),
		gpsFile("GPS_VH-1_20240513.txt", 5),
	}
	report, err := service.IngestVehicle(context.Background(), "VH-1", files)
	if err == nil {
		t.Fatalf("expected store error")
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("error %v does not wrap store error", err)
	}
	if report == nil {
		t.Fatalf("report must survive an aborted run")
	}
	if report.FragmentsBuilt != 2 {
		t.Fatalf("fragments %d, want 2", report.FragmentsBuilt)
	}
}

func TestIngestVehicleEmptyVehicleID(t *testing.T) {
	service, err := NewService(&stubSessionRepo{}, &stubMeasurementRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := service.IngestVehicle(context.Background(), "", nil); err == nil {
		t.Fatalf("expected error for empty vehicle id")
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    ingestion.RecordKind
		ok      bool
	}{
		{"ESTABILIDAD_VH-1_20240513.txt", "", ingestion.KindStability, true},
		{"CAN_VH-1_20240513.csv", "", ingestion.KindCAN, true},
		{"data.txt", "GPS;13/05/2024 10:00:00;VH-1;4;0\nrows", ingestion.KindGPS, true},
		{"data.txt", "no marker here", "", false},
	}
	for _, tt := range tests {
		kind, ok := DetectKind(tt.name, []byte(tt.content))
		if ok != tt.ok || kind != tt.want {
			t.Fatalf("DetectKind(%q): %v %v, want %v %v", tt.name, kind, ok, tt.want, tt.ok)
		}
	}
}
