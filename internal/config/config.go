package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	billing "metering-dashboard/internal/billing/domain"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds process configuration.
type Config struct {
	Store       string
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
	LogLevel    string
	ServiceName string
	Timezone    string
	SeedFile    string

	Engine    EngineConfig
	SMTP      SMTPConfig
	Messaging MessagingConfig
	Archive   ArchiveConfig
	Rates     billing.Rates
}

// EngineConfig tunes the scheduling engine.
type EngineConfig struct {
	Tick                time.Duration `yaml:"tick"`
	MaxConcurrentRuns   int           `yaml:"max_concurrent_runs"`
	FetchConcurrency    int           `yaml:"fetch_concurrency"`
	DispatchConcurrency int           `yaml:"dispatch_concurrency"`
	RunTimeout          time.Duration `yaml:"run_timeout"`
	SubjectTemplate     string        `yaml:"subject_template"`
	BodyTemplate        string        `yaml:"body_template"`
}

// SMTPConfig holds the email relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether email delivery is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// MessagingConfig selects the push-messaging transport.
type MessagingConfig struct {
	WebhookURL  string
	SNSRegion   string
	SNSTopicARN string
}

// ArchiveConfig selects the artifact archive.
type ArchiveConfig struct {
	Root          string
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	PublicBaseURL string
}

// fileConfig is the optional YAML file layout.
type fileConfig struct {
	Engine EngineConfig  `yaml:"engine"`
	Tariff billing.Rates `yaml:"tariff"`
}

// Load reads configuration: defaults, then the YAML file named by
// EXPORT_CONFIG, then environment variables (a .env file is loaded first when
// present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Engine: EngineConfig{
			Tick:                time.Minute,
			MaxConcurrentRuns:   4,
			FetchConcurrency:    4,
			DispatchConcurrency: 8,
			RunTimeout:          10 * time.Minute,
		},
		Rates: billing.DefaultRates(),
	}

	if path := os.Getenv("EXPORT_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Store = strings.ToLower(getenvDefault("STORE", StorePostgres))
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", ""))
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	cfg.JWTSecret = strings.TrimSpace(getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")))
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.ServiceName = getenvDefault("SERVICE_NAME", "export-engine")
	cfg.Timezone = getenvDefault("SCHEDULER_TIMEZONE", "UTC")
	cfg.SeedFile = getenvDefault("MASTERDATA_SEED", "")

	cfg.Engine.Tick = getenvDuration("SCHEDULER_TICK", cfg.Engine.Tick)
	cfg.Engine.MaxConcurrentRuns = getenvIntDefault("SCHEDULER_MAX_CONCURRENT_RUNS", cfg.Engine.MaxConcurrentRuns)
	cfg.Engine.FetchConcurrency = getenvIntDefault("FETCH_CONCURRENCY", cfg.Engine.FetchConcurrency)
	cfg.Engine.DispatchConcurrency = getenvIntDefault("DISPATCH_CONCURRENCY", cfg.Engine.DispatchConcurrency)
	cfg.Engine.RunTimeout = getenvDuration("RUN_TIMEOUT", cfg.Engine.RunTimeout)

	cfg.SMTP = SMTPConfig{
		Host:     getenvDefault("SMTP_HOST", ""),
		Port:     getenvIntDefault("SMTP_PORT", 587),
		Username: getenvDefault("SMTP_USERNAME", ""),
		Password: getenvDefault("SMTP_PASSWORD", ""),
		From:     getenvDefault("SMTP_FROM", ""),
	}
	cfg.Messaging = MessagingConfig{
		WebhookURL:  getenvDefault("MESSAGING_WEBHOOK_URL", ""),
		SNSRegion:   getenvDefault("MESSAGING_SNS_REGION", ""),
		SNSTopicARN: getenvDefault("MESSAGING_SNS_TOPIC_ARN", ""),
	}
	cfg.Archive = ArchiveConfig{
		Root:          getenvDefault("ARCHIVE_ROOT", ""),
		S3Bucket:      getenvDefault("ARCHIVE_S3_BUCKET", ""),
		S3Region:      getenvDefault("ARCHIVE_S3_REGION", ""),
		S3Prefix:      getenvDefault("ARCHIVE_S3_PREFIX", "exports"),
		PublicBaseURL: strings.TrimRight(getenvDefault("ARCHIVE_PUBLIC_BASE_URL", ""), "/"),
	}

	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	// keys missing from the file keep their defaults
	file := fileConfig{Engine: cfg.Engine, Tariff: cfg.Rates}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Engine = file.Engine
	cfg.Rates = file.Tariff
	return nil
}

// Validate checks required settings.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	if c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: SCHEDULER_TIMEZONE: %w", err)
	}
	if c.Engine.Tick <= 0 || c.Engine.RunTimeout <= 0 {
		return errors.New("config: tick and run timeout must be positive")
	}
	if c.Archive.S3Bucket != "" && c.Archive.S3Region == "" {
		return errors.New("config: ARCHIVE_S3_REGION is required with ARCHIVE_S3_BUCKET")
	}
	return c.Rates.Validate()
}

// Location returns the scheduler timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
