package importer

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	ingestion "fleet-telemetry/internal/ingestion/domain"
	"fleet-telemetry/internal/ingestion/parser"
)

// Config defines the directory importer's configuration.
type Config struct {
	InputDir            string `yaml:"input_dir"`
	ErrorDir            string `yaml:"error_dir"`
	ArchiveDir          string `yaml:"archive_dir"`
	LockFile            string `yaml:"lock_file"`
	DecoderCommand      string `yaml:"decoder_command"`
	DecoderTimeoutSecs  int    `yaml:"decoder_timeout_seconds"`
	MaxAttempts         int    `yaml:"max_attempts"`
	ScanIntervalSecs    int    `yaml:"scan_interval_seconds"`
	DateOrder           string `yaml:"date_order"`
	DedupKey            string `yaml:"dedup_key"`
	DefaultOrganization string `yaml:"default_organization"`
}

// LoadConfig loads importer config from yaml (IMPORTER_CONFIG) or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		InputDir:            getenvDefault("IMPORTER_INPUT_DIR", filepath.FromSlash("var/import/incoming")),
		ErrorDir:            getenvDefault("IMPORTER_ERROR_DIR", filepath.FromSlash("var/import/errors")),
		ArchiveDir:          getenvDefault("IMPORTER_ARCHIVE_DIR", filepath.FromSlash("var/import/archive")),
		LockFile:            getenvDefault("IMPORTER_LOCK_FILE", filepath.FromSlash("var/import/importer.lock")),
		DecoderCommand:      os.Getenv("IMPORTER_DECODER_COMMAND"),
		DecoderTimeoutSecs:  getenvIntDefault("IMPORTER_DECODER_TIMEOUT_SECONDS", 30),
		MaxAttempts:         getenvIntDefault("IMPORTER_MAX_ATTEMPTS", 3),
		ScanIntervalSecs:    getenvIntDefault("IMPORTER_SCAN_INTERVAL_SECONDS", 60),
		DateOrder:           getenvDefault("IMPORTER_DATE_ORDER", string(parser.DateOrderMonthFirst)),
		DedupKey:            getenvDefault("IMPORTER_DEDUP_KEY", string(ingestion.SessionKeyStartEnd)),
		DefaultOrganization: getenvDefault("IMPORTER_DEFAULT_ORG", ""),
	}

	if path := os.Getenv("IMPORTER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.InputDir == "" {
		return cfg, errors.New("importer: input dir required")
	}
	if cfg.ErrorDir == "" {
		return cfg, errors.New("importer: error dir required")
	}
	if !parser.DateOrder(cfg.DateOrder).IsValid() {
		return cfg, errors.New("importer: invalid date_order")
	}
	if !ingestion.SessionKeyStrategy(cfg.DedupKey).IsValid() {
		return cfg, errors.New("importer: invalid dedup_key")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DecoderTimeoutSecs <= 0 {
		cfg.DecoderTimeoutSecs = 30
	}
	if cfg.ScanIntervalSecs <= 0 {
		cfg.ScanIntervalSecs = 60
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
