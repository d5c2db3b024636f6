package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Encryption EncryptionConfig
	Firefly    FireflyConfig
	SimpleFIN  SimpleFINConfig
	Sync       SyncConfig
	Scheduler  SchedulerConfig
	TLS        TLSConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type EncryptionConfig struct {
	Key string // hex-encoded 32-byte key
}

type FireflyConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type SimpleFINConfig struct {
	Timeout time.Duration
}

type SyncConfig struct {
	LookbackDays      int
	ManualSyncsPerDay int
}

type SchedulerConfig struct {
	Enabled      bool
	ScheduleTime string // "HH:MM"
	Timezone     string // IANA name; invalid values fall back to UTC at startup
	RunOnStartup bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

func Load() (*Config, error) {

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	fireflyTimeout, err := time.ParseDuration(getEnv("FIREFLY_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid FIREFLY_TIMEOUT: %w", err)
	}
	simplefinTimeout, err := time.ParseDuration(getEnv("SIMPLEFIN_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIMPLEFIN_TIMEOUT: %w", err)
	}

	lookbackDays, err := strconv.Atoi(getEnv("SYNC_LOOKBACK_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_LOOKBACK_DAYS: %w", err)
	}
	manualSyncsPerDay, err := strconv.Atoi(getEnv("SYNC_MANUAL_PER_DAY", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_MANUAL_PER_DAY: %w", err)
	}

	// Parse allowed hosts (comma-separated list)
	allowedHostsStr := getEnv("ALLOWED_HOSTS", "")
	var allowedHosts []string
	if allowedHostsStr != "" {
		for _, host := range strings.Split(allowedHostsStr, ",") {
			host = strings.TrimSpace(host)
			if host != "" {
				allowedHosts = append(allowedHosts, host)
			}
		}
	}

	// The scheduler only runs in production; manual triggers stay available
	// everywhere.
	appEnv := getEnv("APP_ENV", "development")
	schedulerEnabled := getBoolEnv("SCHEDULER_ENABLED", true) && appEnv == "production"

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: allowedHosts,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "banksync"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "banksync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Firefly: FireflyConfig{
			BaseURL: strings.TrimRight(getEnv("FIREFLY_BASE_URL", ""), "/"),
			Token:   getEnv("FIREFLY_TOKEN", ""),
			Timeout: fireflyTimeout,
		},
		SimpleFIN: SimpleFINConfig{
			Timeout: simplefinTimeout,
		},
		Sync: SyncConfig{
			LookbackDays:      lookbackDays,
			ManualSyncsPerDay: manualSyncsPerDay,
		},
		Scheduler: SchedulerConfig{
			Enabled:      schedulerEnabled,
			ScheduleTime: getEnv("SYNC_SCHEDULE_TIME", "02:00"),
			Timezone:     getEnv("SYNC_SCHEDULE_TZ", "UTC"),
			RunOnStartup: getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "banksync-api"),
			Environment:  appEnv,
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
	}

	// Validate required fields. The pipeline must refuse to start silently
	// degraded, so every credential-bearing setting is checked here.
	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if key, err := hex.DecodeString(cfg.Encryption.Key); err != nil || len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be a hex-encoded 32-byte key (64 hex characters)")
	}
	if cfg.Firefly.BaseURL == "" {
		return nil, fmt.Errorf("FIREFLY_BASE_URL is required")
	}
	if cfg.Firefly.Token == "" {
		return nil, fmt.Errorf("FIREFLY_TOKEN is required")
	}
	if _, err := parseScheduleTime(cfg.Scheduler.ScheduleTime); err != nil {
		return nil, fmt.Errorf("invalid SYNC_SCHEDULE_TIME: %w", err)
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// parseScheduleTime validates an "HH:MM" time-of-day string.
func parseScheduleTime(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
