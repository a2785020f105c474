package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleet-telemetry/internal/ingestion/application"
	ingestion "fleet-telemetry/internal/ingestion/domain"
	"fleet-telemetry/internal/observability/metrics"
)

// FileName is the parsed input naming convention
// TYPE_VEHICLEID_YYYYMMDD.{txt|csv}.
type FileName struct {
	Kind      ingestion.RecordKind
	VehicleID string
	Day       time.Time
}

// ParseFileName parses the input convention. Extra underscores belong to the
// vehicle id; the trailing segment must be the date.
func ParseFileName(name string) (FileName, bool) {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	if ext != ".txt" && ext != ".csv" {
		return FileName{}, false
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return FileName{}, false
	}
	kind, ok := ingestion.KindFromMarker(strings.ToUpper(parts[0]))
	if !ok {
		return FileName{}, false
	}
	day, err := time.Parse("20060102", parts[len(parts)-1])
	if err != nil {
		return FileName{}, false
	}
	vehicleID := strings.Join(parts[1:len(parts)-1], "_")
	if vehicleID == "" {
		return FileName{}, false
	}
	return FileName{Kind: kind, VehicleID: vehicleID, Day: day}, true
}

// errorDiagnostic is the JSON log written next to a failed file.
type errorDiagnostic struct {
	ID       string    `json:"id"`
	File     string    `json:"file"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// Watcher scans an input directory for recorder files, runs each vehicle's
// batch through ingestion, and quarantines files that keep failing. One
// logical worker: vehicles are processed strictly one after another.
type Watcher struct {
	cfg     Config
	service *application.Service
	decoder *Decoder
	lock    ProcessLock
	logger  *log.Logger
	sleep   func(time.Duration)
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithSleep overrides the backoff sleep, for tests.
func WithSleep(sleep func(time.Duration)) WatcherOption {
	return func(w *Watcher) {
		if sleep != nil {
			w.sleep = sleep
		}
	}
}

// NewWatcher constructs a watcher.
func NewWatcher(cfg Config, service *application.Service, decoder *Decoder, lock ProcessLock, logger *log.Logger, opts ...WatcherOption) (*Watcher, error) {
	if service == nil {
		return nil, errors.New("importer: nil ingestion service")
	}
	if lock == nil {
		return nil, errors.New("importer: nil lock")
	}
	if logger == nil {
		logger = log.Default()
	}
	watcher := &Watcher{
		cfg:     cfg,
		service: service,
		decoder: decoder,
		lock:    lock,
		logger:  logger,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(watcher)
	}
	return watcher, nil
}

// Start scans on the configured interval until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) {
	interval := time.Duration(w.cfg.ScanIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Printf("importer: scan: %v", err)
			}
		}
	}
}

// RunOnce performs a single scan. A missing input directory or a store
// failure aborts the run and surfaces; per-file trouble never does.
func (w *Watcher) RunOnce(ctx context.Context) ([]*ingestion.IngestReport, error) {
	if err := w.lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := w.lock.Release(); err != nil {
			w.logger.Printf("importer: release lock: %v", err)
		}
	}()

	entries, err := os.ReadDir(w.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("importer: read input dir: %w", err)
	}

	type vehicleFile struct {
		path    string
		content []byte
	}
	byVehicle := make(map[string][]vehicleFile)
	var vehicles []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, decodedSuffix) {
			// Decoder byproduct from an interrupted run; picked up with its source.
			continue
		}
		path := filepath.Join(w.cfg.InputDir, name)

		parsed, ok := ParseFileName(name)
		if !ok {
			w.quarantine(path, "unrecognized file name", 0)
			continue
		}

		content, err := w.loadFile(ctx, path, parsed.Kind)
		if err != nil {
			w.quarantine(path, err.Error(), w.cfg.MaxAttempts)
			continue
		}

		if _, seen := byVehicle[parsed.VehicleID]; !seen {
			vehicles = append(vehicles, parsed.VehicleID)
		}
		byVehicle[parsed.VehicleID] = append(byVehicle[parsed.VehicleID], vehicleFile{path: path, content: content})
	}
	sort.Strings(vehicles)

	var reports []*ingestion.IngestReport
	for _, vehicleID := range vehicles {
		batch := byVehicle[vehicleID]
		files := make([]application.InputFile, 0, len(batch))
		for _, file := range batch {
			files = append(files, application.InputFile{Name: filepath.Base(file.path), Content: file.content})
		}

		report, err := w.service.IngestVehicle(ctx, vehicleID, files)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			// Store unreachable mid-run: earlier vehicles' progress stands.
			return reports, err
		}

		for _, file := range batch {
			w.archive(file.path)
		}
	}
	return reports, nil
}

// loadFile reads (and for raw CAN files, first decodes) one input file with
// exponential backoff: up to MaxAttempts tries, waiting 2^attempt seconds.
func (w *Watcher) loadFile(ctx context.Context, path string, kind ingestion.RecordKind) ([]byte, error) {
	var content []byte
	attempt := 0
	operation := func() error {
		readPath := path
		if kind == ingestion.KindCAN && !strings.EqualFold(filepath.Ext(path), ".csv") {
			if !w.decoder.Enabled() {
				return errors.New("raw CAN file and no decoder configured")
			}
			decoded, err := w.decoder.Decode(ctx, path)
			if err != nil {
				metrics.IncDecoderFailure()
				return err
			}
			readPath = decoded
		}
		data, err := os.ReadFile(readPath)
		if err != nil {
			return err
		}
		content = data
		return nil
	}

	for {
		err := operation()
		if err == nil {
			return content, nil
		}
		attempt++
		if attempt >= w.cfg.MaxAttempts {
			return nil, err
		}
		metrics.IncImporterRetry()
		w.logger.Printf("importer: %s attempt %d failed: %v", filepath.Base(path), attempt, err)
		w.sleep(time.Duration(1<<attempt) * time.Second)
	}
}

// quarantine moves a failed file to the error directory with a sibling JSON
// diagnostic. The input directory never keeps a failed file.
func (w *Watcher) quarantine(path, reason string, attempts int) {
	metrics.IncImporterFailure()
	base := filepath.Base(path)
	w.logger.Printf("importer: quarantine %s: %s", base, reason)

	if err := os.MkdirAll(w.cfg.ErrorDir, 0o755); err != nil {
		w.logger.Printf("importer: create error dir: %v", err)
		return
	}
	target := filepath.Join(w.cfg.ErrorDir, base)
	if err := os.Rename(path, target); err != nil {
		w.logger.Printf("importer: move %s: %v", base, err)
		return
	}

	diagnostic := errorDiagnostic{
		ID:       uuid.NewString(),
		File:     base,
		Reason:   reason,
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(diagnostic, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(target+".error.json", data, 0o644); err != nil {
		w.logger.Printf("importer: write diagnostic for %s: %v", base, err)
	}
}

// archive moves an ingested file out of the input directory.
func (w *Watcher) archive(path string) {
	if w.cfg.ArchiveDir == "" {
		if err := os.Remove(path); err != nil {
			w.logger.Printf("importer: remove %s: %v", filepath.Base(path), err)
		}
		return
	}
	if err := os.MkdirAll(w.cfg.ArchiveDir, 0o755); err != nil {
		w.logger.Printf("importer: create archive dir: %v", err)
		return
	}
	if err := os.Rename(path, filepath.Join(w.cfg.ArchiveDir, filepath.Base(path))); err != nil {
		w.logger.Printf("importer: archive %s: %v", filepath.Base(path), err)
	}
}
