package ingestion

import "time"

// Discard is one rejected row or file with the reason it was rejected.
type Discard struct {
	SourceFile string `json:"source_file"`
	Line       int    `json:"line,omitempty"`
	Context    string `json:"context,omitempty"`
	Reason     string `json:"reason"`
}

// FileReport summarizes parsing of a single file.
type FileReport struct {
	SourceFile string     `json:"source_file"`
	Kind       RecordKind `json:"kind"`
	Accepted   int        `json:"accepted"`
	Discarded  int        `json:"discarded"`
	Discards   []Discard  `json:"discards,omitempty"`
	Dropped    bool       `json:"dropped"`
	DropReason string     `json:"drop_reason,omitempty"`
}

// IngestReport is the run's diagnostic summary. It is the primary way the
// pipeline's health is observed and travels back to the caller as a value,
// not as log output.
type IngestReport struct {
	RunID            string       `json:"run_id"`
	VehicleID        string       `json:"vehicle_id"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
	FilesScanned     int          `json:"files_scanned"`
	Files            []FileReport `json:"files"`
	FragmentsBuilt   int          `json:"fragments_built"`
	SessionsCreated  int          `json:"sessions_created"`
	SessionsOmitted  int          `json:"sessions_omitted"`
	InsufficientData int          `json:"insufficient_data"`
	Warnings         []string     `json:"warnings,omitempty"`
}

// AddFile records a per-file report and keeps the scan counter consistent.
func (r *IngestReport) AddFile(file FileReport) {
	r.Files = append(r.Files, file)
	r.FilesScanned++
}

// Warn appends a run-level warning.
func (r *IngestReport) Warn(message string) {
	r.Warnings = append(r.Warnings, message)
}
