package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fleet-telemetry/internal/ingestion/application"
	ingestion "fleet-telemetry/internal/ingestion/domain"
)

type memorySessionRepo struct {
	sessions []ingestion.PersistedSession
}

func (r *memorySessionRepo) FindSession(_ context.Context, vehicleID string, start, end time.Time) (*ingestion.PersistedSession, error) {
	for i, s := range r.sessions {
		if s.VehicleID == vehicleID && s.Start.Equal(start) && s.End.Equal(end) {
			return &r.sessions[i], nil
		}
	}
	return nil, nil
}

func (r *memorySessionRepo) NextSequence(_ context.Context, vehicleID string) (int, error) {
	max := 0
	for _, s := range r.sessions {
		if s.VehicleID == vehicleID && s.Sequence > max {
			max = s.Sequence
		}
	}
	return max + 1, nil
}

func (r *memorySessionRepo) CreateSession(_ context.Context, candidate ingestion.SessionCandidate) (*ingestion.PersistedSession, error) {
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

type memoryMeasurementRepo struct {
	rows []ingestion.Measurement
}

func (r *memoryMeasurementRepo) InsertMeasurements(_ context.Context, rows []ingestion.Measurement) error {
	r.rows = append(r.rows, rows...)
	return nil
}

type noopLock struct{}

func (noopLock) Acquire() error { return nil }
func (noopLock) Release() error { return nil }

func testService(t *testing.T) (*application.Service, *memorySessionRepo) {
	t.Helper()
	sessions := &memorySessionRepo{}
	service, err := application.NewService(sessions, &memoryMeasurementRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, sessions
}

func testConfig(t *testing.T) Config {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		InputDir:    filepath.Join(root, "incoming"),
		ErrorDir:    filepath.Join(root, "errors"),
		ArchiveDir:  filepath.Join(root, "archive"),
		MaxAttempts: 3,
	}
	if err := os.MkdirAll(cfg.InputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return cfg
}

func writeInput(t *testing.T, cfg Config, name, content string) string {
	t.Helper()
	path := filepath.Join(cfg.InputDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func sensorRows(format string, rows int) string {
	var sb strings.Builder
	base := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		ts := base.Add(time.Duration(i) * time.Second).Format(time.RFC3339)
		fmt.Fprintf(&sb, format+"\n", ts)
	}
	return sb.String()
}

func TestParseFileName(t *testing.T) {
	day := time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		want FileName
		ok   bool
	}{
		{"ESTABILIDAD_VH-1_20240513.txt", FileName{Kind: ingestion.KindStability, VehicleID: "VH-1", Day: day}, true},
		{"CAN_TRUCK_07_20240513.csv", FileName{Kind: ingestion.KindCAN, VehicleID: "TRUCK_07", Day: day}, true},
		{"gps_vh-1_20240513.txt", FileName{Kind: ingestion.KindGPS, VehicleID: "vh-1", Day: day}, true},
		{"ESTABILIDAD_VH-1.txt", FileName{}, false},
		{"UNKNOWN_VH-1_20240513.txt", FileName{}, false},
		{"ESTABILIDAD_VH-1_20240513.pdf", FileName{}, false},
		{"ESTABILIDAD__20240513.txt", FileName{}, false},
		{"ESTABILIDAD_VH-1_2024513.txt", FileName{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseFileName(tt.name)
		if ok != tt.ok {
			t.Fatalf("%s: ok=%v want %v", tt.name, ok, tt.ok)
		}
		if !ok {
			continue
		}
		if got.Kind != tt.want.Kind || got.VehicleID != tt.want.VehicleID || !got.Day.Equal(tt.want.Day) {
			t.Fatalf("%s: got %+v want %+v", tt.name, got, tt.want)
		}
	}
}

func TestRunOnceIngestsAndArchives(t *testing.T) {
	cfg := testConfig(t)
	service, sessions := testService(t)

	writeInput(t, cfg, "ESTABILIDAD_VH-1_20240513.txt", sensorRows("%s;0.1;0.2;9.8;0.01;0.02;0.03", 5))
	writeInput(t, cfg, "GPS_VH-1_20240513.txt", sensorRows("%s;40.41;-3.70;650;12.5", 5))

	watcher, err := NewWatcher(cfg, service, NewDecoder("", 0, nil), noopLock{}, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	reports, err := watcher.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if reports[0].SessionsCreated != 1 {
		t.Fatalf("sessions created %d, want 1", reports[0].SessionsCreated)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("stored %d sessions", len(sessions.sessions))
	}

	remaining, err := os.ReadDir(cfg.InputDir)
	if err != nil {
		t.Fatalf("read input dir: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("%d files left in input dir", len(remaining))
	}
	archived, err := os.ReadDir(cfg.ArchiveDir)
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("%d files archived, want 2", len(archived))
	}
}

func TestRunOnceQuarantinesUnrecognizedNames(t *testing.T) {
	cfg := testConfig(t)
	service, _ := testService(t)

	writeInput(t, cfg, "random-notes.txt", "not a recorder file")

	watcher, err := NewWatcher(cfg, service, NewDecoder("", 0, nil), noopLock{}, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if _, err := watcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.ErrorDir, "random-notes.txt")); err != nil {
		t.Fatalf("quarantined file missing: %v", err)
	}
	diagnostic, err := os.ReadFile(filepath.Join(cfg.ErrorDir, "random-notes.txt.error.json"))
	if err != nil {
		t.Fatalf("diagnostic missing: %v", err)
	}
	if !strings.Contains(string(diagnostic), "unrecognized file name") {
		t.Fatalf("diagnostic %q lacks reason", diagnostic)
	}
}

type scriptedRunner struct {
	calls  int
	script func(call int, filePath string) error
}

func (r *scriptedRunner) Run(_ context.Context, _ string, args ...string) error {
	r.calls++
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	return r.script(r.calls, path)
}

func TestRunOnceDecodesRawCAN(t *testing.T) {
	cfg := testConfig(t)
	service, _ := testService(t)

	canPath := writeInput(t, cfg, "CAN_VH-1_20240513.txt", "raw-frames")
	writeInput(t, cfg, "ESTABILIDAD_VH-1_20240513.txt", sensorRows("%s;0.1;0.2;9.8;0.01;0.02;0.03", 5))

	runner := &scriptedRunner{script: func(_ int, filePath string) error {
		return os.WriteFile(filePath+"_TRADUCIDO.csv", []byte(sensorRows("%s,1450,37.5,2", 5)), 0o644)
	}}
	decoder := NewDecoder("decode-can", time.Second, runner)

	watcher, err := NewWatcher(cfg, service, decoder, noopLock{}, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	reports, err := watcher.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("decoder ran %d times, want 1", runner.calls)
	}
	if len(reports) != 1 || reports[0].SessionsCreated != 1 {
		t.Fatalf("reports %+v, want one created session", reports)
	}
	if _, err := os.Stat(canPath); !os.IsNotExist(err) {
		t.Fatalf("raw CAN file not archived")
	}
}

func TestRunOnceRetriesThenQuarantines(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxAttempts = 3
	service, _ := testService(t)

	writeInput(t, cfg, "CAN_VH-1_20240513.txt", "raw-frames")

	decodeErr := errors.New("device busy")
	runner := &scriptedRunner{script: func(int, string) error { return decodeErr }}
	decoder := NewDecoder("decode-can", time.Second, runner)

	var slept []time.Duration
	watcher, err := NewWatcher(cfg, service, decoder, noopLock{}, log.New(os.Stderr, "", 0),
		WithSleep(func(d time.Duration) { slept = append(slept, d) }))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if _, err := watcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if runner.calls != 3 {
		t.Fatalf("decoder ran %d times, want 3", runner.calls)
	}
	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(slept))
	}
	if slept[0] != 2*time.Second || slept[1] != 4*time.Second {
		t.Fatalf("backoff %v, want doubling from 2s", slept)
	}
	if _, err := os.Stat(filepath.Join(cfg.ErrorDir, "CAN_VH-1_20240513.txt")); err != nil {
		t.Fatalf("file not quarantined: %v", err)
	}
}

func TestRunOnceSkipsDecodedByproducts(t *testing.T) {
	cfg := testConfig(t)
	service, _ := testService(t)

	writeInput(t, cfg, "CAN_VH-1_20240513.txt_TRADUCIDO.csv", "leftover")

	watcher, err := NewWatcher(cfg, service, NewDecoder("", 0, nil), noopLock{}, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	reports, err := watcher.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("got %d reports, want 0", len(reports))
	}
	if _, err := os.Stat(filepath.Join(cfg.InputDir, "CAN_VH-1_20240513.txt_TRADUCIDO.csv")); err != nil {
		t.Fatalf("byproduct must stay in place: %v", err)
	}
}

func TestRunOnceHeldLock(t *testing.T) {
	cfg := testConfig(t)
	service, _ := testService(t)

	lockPath := filepath.Join(cfg.InputDir, "..", "importer.lock")
	if err := os.WriteFile(lockPath, []byte("4242"), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	lock := NewFileLock(lockPath, WithAliveProbe(func(int) bool { return true }))

	watcher, err := NewWatcher(cfg, service, NewDecoder("", 0, nil), lock, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if _, err := watcher.RunOnce(context.Background()); !errors.Is(err, ErrLocked) {
		t.Fatalf("err %v, want ErrLocked", err)
	}
}
