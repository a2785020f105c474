package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"fleet-telemetry/internal/auth"
	"fleet-telemetry/internal/kpi/application"
	kpi "fleet-telemetry/internal/kpi/domain"
	"fleet-telemetry/internal/observability/metrics"
)

const dayLayout = "2006-01-02"

// Handler provides KPI HTTP endpoints: recompute, fetch and report export.
type Handler struct {
	engine  *application.Engine
	records kpi.Repository
	logger  *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(engine *application.Engine, records kpi.Repository, logger *log.Logger) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("kpi handler: nil engine")
	}
	if records == nil {
		return nil, errors.New("kpi handler: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{engine: engine, records: records, logger: logger}, nil
}

// Recompute handles POST /api/v1/kpi/recompute.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		VehicleID string `json:"vehicle_id"`
		Date      string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dayLayout, req.Date)
	if err != nil || req.VehicleID == "" {
		http.Error(w, "vehicle_id and date (YYYY-MM-DD) required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	record, err := h.engine.ComputeDay(r.Context(), req.VehicleID, auth.OrgIDFromContext(r.Context()), date)
	if err != nil {
		metrics.ObserveKPIRun(metrics.IngestResultError, time.Since(start))
		h.logger.Printf("kpi recompute: vehicle %s day %s: %v", req.VehicleID, req.Date, err)
		http.Error(w, "compute error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveKPIRun(metrics.IngestResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
}

// Get handles GET /api/v1/kpi?vehicle_id=&date=.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	vehicleID := r.URL.Query().Get("vehicle_id")
	date, err := time.Parse(dayLayout, r.URL.Query().Get("date"))
	if err != nil || vehicleID == "" {
		http.Error(w, "vehicle_id and date (YYYY-MM-DD) required", http.StatusBadRequest)
		return
	}

	record, err := h.records.Get(r.Context(), vehicleID, date)
	if err != nil {
		h.logger.Printf("kpi get: vehicle %s: %v", vehicleID, err)
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
}

// Report handles GET /api/v1/kpi/report?vehicle_id=&date=&format=xlsx|pdf.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	vehicleID := r.URL.Query().Get("vehicle_id")
	date, err := time.Parse(dayLayout, r.URL.Query().Get("date"))
	if err != nil || vehicleID == "" {
		http.Error(w, "vehicle_id and date (YYYY-MM-DD) required", http.StatusBadRequest)
		return
	}

	record, err := h.records.Get(r.Context(), vehicleID, date)
	if err != nil {
		h.logger.Printf("kpi report: vehicle %s: %v", vehicleID, err)
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch r.URL.Query().Get("format") {
	case "pdf":
		content, err := BuildDayReportPDF(record)
		if err != nil {
			h.logger.Printf("kpi report pdf: %v", err)
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename=kpi-"+vehicleID+"-"+r.URL.Query().Get("date")+".pdf")
		_, _ = w.Write(content)
	case "", "xlsx":
		content, err := BuildDayReportXLSX(record)
		if err != nil {
			h.logger.Printf("kpi report xlsx: %v", err)
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=kpi-"+vehicleID+"-"+r.URL.Query().Get("date")+".xlsx")
		_, _ = w.Write(content)
	default:
		http.Error(w, "unknown format", http.StatusBadRequest)
	}
}
