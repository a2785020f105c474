package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"fleet-telemetry/internal/ingestion/application"
	"fleet-telemetry/internal/observability/metrics"
)

const maxUploadBytes = 64 << 20

// UploadHandler ingests a batch of raw recorder files for one vehicle.
// The transport owns authentication; this handler owns nothing but moving
// bytes into the pipeline and returning the run's diagnostic report.
type UploadHandler struct {
	service *application.Service
	logger  *log.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service *application.Service, logger *log.Logger) (*UploadHandler, error) {
	if service == nil {
		return nil, errors.New("upload handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &UploadHandler{service: service, logger: logger}, nil
}

// ServeHTTP handles POST /ingest/files (multipart, field "files", form value
// "vehicle_id") and responds with the ingest report.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.IngestResultSuccess
	defer func() {
		metrics.ObserveIngestRun(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.IngestResultError
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.logger.Printf("upload: parse multipart error: %v", err)
		result = metrics.IngestResultError
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	vehicleID := r.FormValue("vehicle_id")
	if vehicleID == "" {
		result = metrics.IngestResultError
		http.Error(w, "vehicle_id required", http.StatusBadRequest)
		return
	}

	var files []application.InputFile
	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			h.logger.Printf("upload: open %s: %v", header.Filename, err)
			result = metrics.IngestResultError
			http.Error(w, "read file error", http.StatusBadRequest)
			return
		}
		content, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			h.logger.Printf("upload: read %s: %v", header.Filename, err)
			result = metrics.IngestResultError
			http.Error(w, "read file error", http.StatusBadRequest)
			return
		}
		files = append(files, application.InputFile{Name: header.Filename, Content: content})
	}
	if len(files) == 0 {
		result = metrics.IngestResultError
		http.Error(w, "no files", http.StatusBadRequest)
		return
	}

	report, err := h.service.IngestVehicle(r.Context(), vehicleID, files)
	if err != nil {
		h.logger.Printf("upload: ingest vehicle %s: %v", vehicleID, err)
		result = metrics.IngestResultError
		status := http.StatusInternalServerError
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if report != nil {
			_ = json.NewEncoder(w).Encode(report)
		}
		return
	}

	for _, file := range report.Files {
		metrics.AddRows(string(file.Kind), file.Accepted, file.Discarded)
	}
	metrics.AddSessions(report.SessionsCreated, report.SessionsOmitted)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(report)
}
