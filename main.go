package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleet-telemetry/internal/auth"
	"fleet-telemetry/internal/eventing"
	"fleet-telemetry/internal/importer"
	ingestapp "fleet-telemetry/internal/ingestion/application"
	"fleet-telemetry/internal/ingestion/application/events"
	ingestion "fleet-telemetry/internal/ingestion/domain"
	ingestrepo "fleet-telemetry/internal/ingestion/infrastructure/postgres"
	ingesthttp "fleet-telemetry/internal/ingestion/interfaces/http"
	"fleet-telemetry/internal/ingestion/parser"
	kpiapp "fleet-telemetry/internal/kpi/application"
	kpirepo "fleet-telemetry/internal/kpi/infrastructure/postgres"
	kpiinterfaces "fleet-telemetry/internal/kpi/interfaces"
	kpihttp "fleet-telemetry/internal/kpi/interfaces/http"
	"fleet-telemetry/internal/observability/metrics"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()

	importerCfg, err := importer.LoadConfig()
	if err != nil {
		logger.Fatalf("importer config error: %v", err)
	}

	normalizer := parser.NewNormalizer(parser.WithDateOrder(parser.DateOrder(importerCfg.DateOrder)))

	sessionRepo := ingestrepo.NewSessionRepository(db,
		ingestrepo.WithKeyStrategy(ingestion.SessionKeyStrategy(importerCfg.DedupKey)))
	measurementRepo := ingestrepo.NewMeasurementRepository(db)

	bus := eventing.NewInMemoryBus()

	ingestService, err := ingestapp.NewService(sessionRepo, measurementRepo,
		ingestapp.WithNormalizer(normalizer),
		ingestapp.WithEventBus(bus),
		ingestapp.WithLogger(logger))
	if err != nil {
		logger.Fatalf("ingestion service error: %v", err)
	}

	kpiRepo := kpirepo.NewKPIRepository(db)
	zoneRepo := kpirepo.NewZoneRepository(db)
	telemetryQuery := kpirepo.NewTelemetryQuery(db)
	kpiEngine, err := kpiapp.NewEngine(telemetryQuery, telemetryQuery, zoneRepo, kpiRepo, logger)
	if err != nil {
		logger.Fatalf("kpi engine error: %v", err)
	}

	kpiConsumer, err := kpiinterfaces.NewSessionCreatedConsumer(kpiEngine, cfg.OrgID, logger)
	if err != nil {
		logger.Fatalf("kpi consumer error: %v", err)
	}
	bus.Subscribe(eventing.EventTypeOf[events.SessionCreated](), kpiConsumer.Handle)

	uploadHandler, err := ingesthttp.NewUploadHandler(ingestService, logger)
	if err != nil {
		logger.Fatalf("upload handler error: %v", err)
	}
	kpiHandler, err := kpihttp.NewHandler(kpiEngine, kpiRepo, logger)
	if err != nil {
		logger.Fatalf("kpi handler error: %v", err)
	}

	if cfg.ImporterEnabled {
		decoder := importer.NewDecoder(importerCfg.DecoderCommand,
			time.Duration(importerCfg.DecoderTimeoutSecs)*time.Second, nil)
		lock := importer.NewFileLock(importerCfg.LockFile)
		watcher, err := importer.NewWatcher(importerCfg, ingestService, decoder, lock, logger)
		if err != nil {
			logger.Fatalf("importer error: %v", err)
		}
		go watcher.Start(context.Background())
		logger.Printf("importer watching %s", importerCfg.InputDir)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	router := mux.NewRouter()
	router.Handle("/ingest/files", uploadHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/kpi/recompute", kpiHandler.Recompute).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/kpi/report", kpiHandler.Report).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/kpi", kpiHandler.Get).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := handlers.CombinedLoggingHandler(os.Stdout, authMiddleware.Wrap(router))
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL     string
	HTTPAddr        string
	OrgID           string
	JWTSecret       string
	ImporterEnabled bool
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		OrgID:           getenvDefault("ORG_ID", "org-demo"),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ImporterEnabled: getenvDefault("IMPORTER_ENABLED", "true") == "true",
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
