package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage and drafter backend selectors.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"

	DrafterTemplate = "template"
	DrafterAgent    = "agent"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	StorageBackend string // "file" or "postgres"
	DatabaseURL    string // required for the postgres backend
	LedgerFile     string // ledger path for the file backend
	SnapshotDir    string // default snapshot source directory

	DrafterBackend string // "template" or "agent"
	AgentDraftURL  string // required for the agent backend

	TelegramToken      string // empty disables the Telegram review surface
	ReviewerTelegramID int64  // required when TelegramToken is set

	HTTPAddr string

	InactivityDays   int
	DropThreshold    float64
	IncludeUnflagged bool
	CronSpecIngest   string

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.StorageBackend = strings.ToLower(os.Getenv("STORAGE_BACKEND"))
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = StorageFile
	}
	if cfg.StorageBackend != StorageFile && cfg.StorageBackend != StoragePostgres {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q, expected %q or %q", cfg.StorageBackend, StorageFile, StoragePostgres)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StorageBackend == StoragePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set (required for the postgres storage backend)")
	}

	cfg.LedgerFile = os.Getenv("LEDGER_FILE")
	if cfg.LedgerFile == "" {
		cfg.LedgerFile = "db/notifications.json"
	}

	cfg.SnapshotDir = os.Getenv("SNAPSHOT_DIR")
	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = "data"
	}

	cfg.DrafterBackend = strings.ToLower(os.Getenv("DRAFTER_BACKEND"))
	if cfg.DrafterBackend == "" {
		cfg.DrafterBackend = DrafterTemplate
	}
	if cfg.DrafterBackend != DrafterTemplate && cfg.DrafterBackend != DrafterAgent {
		return nil, fmt.Errorf("invalid DRAFTER_BACKEND %q, expected %q or %q", cfg.DrafterBackend, DrafterTemplate, DrafterAgent)
	}

	cfg.AgentDraftURL = os.Getenv("AGENT_DRAFT_URL")
	if cfg.DrafterBackend == DrafterAgent && cfg.AgentDraftURL == "" {
		return nil, fmt.Errorf("AGENT_DRAFT_URL is not set (required for the agent drafter backend)")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	reviewerIDStr := os.Getenv("REVIEWER_TELEGRAM_ID")
	if cfg.TelegramToken != "" {
		if reviewerIDStr == "" {
			return nil, fmt.Errorf("REVIEWER_TELEGRAM_ID is not set (required when TELEGRAM_TOKEN is set)")
		}
		cfg.ReviewerTelegramID, err = strconv.ParseInt(reviewerIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid REVIEWER_TELEGRAM_ID: %w", err)
		}
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.InactivityDays = 7
	if raw := os.Getenv("INACTIVITY_DAYS"); raw != "" {
		cfg.InactivityDays, err = strconv.Atoi(raw)
		if err != nil || cfg.InactivityDays <= 0 {
			return nil, fmt.Errorf("invalid INACTIVITY_DAYS: %q", raw)
		}
	}

	cfg.DropThreshold = -5.0
	if raw := os.Getenv("DROP_THRESHOLD"); raw != "" {
		cfg.DropThreshold, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DROP_THRESHOLD: %q", raw)
		}
	}

	cfg.IncludeUnflagged = false
	if raw := strings.ToLower(os.Getenv("INCLUDE_UNFLAGGED")); raw != "" {
		cfg.IncludeUnflagged = raw == "1" || raw == "true" || raw == "yes"
	}

	cfg.CronSpecIngest = os.Getenv("CRON_SPEC_INGEST")
	if cfg.CronSpecIngest == "" {
		cfg.CronSpecIngest = "0 9 * * 1" // Default: 9:00 AM every Monday
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}
