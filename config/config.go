package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = 8080
	defaultTimezone      = "Europe/Berlin"
	defaultFeedTimeout   = 20 * time.Second
	defaultSyncSchedule  = "0 */6 * * *"
	defaultImportLogPath = "data/imports.db"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL    string
	JWTSecretKey   string
	ServerPort     int
	LogLevel       slog.Level
	TeamTimezone   string
	Location       *time.Location
	AllowedOrigins []string

	Fixtures  FixturesConfig
	ImportLog string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
}

// FixturesConfig описывает внешний фид игр. Его можно задать в YAML-файле (CONFIG_FILE),
// переменные окружения имеют приоритет.
type FixturesConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	SyncEnabled  bool          `yaml:"sync_enabled"`
	SyncSchedule string        `yaml:"sync_schedule"`
}

type fileConfig struct {
	Fixtures     FixturesConfig `yaml:"fixtures"`
	TeamTimezone string         `yaml:"team_timezone"`
}

// Load загружает конфигурацию: .env (если есть), затем YAML из CONFIG_FILE, затем окружение.
func Load() (*Config, error) {
	// Ошибку не считаем фатальной: .env нужен только локально
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:   defaultPort,
		LogLevel:     slog.LevelInfo,
		TeamTimezone: defaultTimezone,
		ImportLog:    defaultImportLogPath,
		Fixtures: FixturesConfig{
			Timeout:      defaultFeedTimeout,
			SyncSchedule: defaultSyncSchedule,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.TeamTimezone != "" {
		c.TeamTimezone = fc.TeamTimezone
	}
	f := fc.Fixtures
	if f.BaseURL != "" {
		c.Fixtures.BaseURL = f.BaseURL
	}
	if f.Token != "" {
		c.Fixtures.Token = f.Token
	}
	if f.Timeout != 0 {
		c.Fixtures.Timeout = f.Timeout
	}
	if f.SyncSchedule != "" {
		c.Fixtures.SyncSchedule = f.SyncSchedule
	}
	c.Fixtures.SyncEnabled = f.SyncEnabled
	return nil
}

func (c *Config) loadEnv() error {
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.JWTSecretKey = os.Getenv("JWT_SECRET_KEY")

	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
		}
		c.ServerPort = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}
	if v := os.Getenv("TEAM_TIMEZONE"); v != "" {
		c.TeamTimezone = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("FIXTURE_API_BASE_URL"); v != "" {
		c.Fixtures.BaseURL = v
	}
	if v := os.Getenv("FIXTURE_API_TOKEN"); v != "" {
		c.Fixtures.Token = v
	}
	if v := os.Getenv("FIXTURE_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FIXTURE_API_TIMEOUT: %w", err)
		}
		c.Fixtures.Timeout = d
	}
	if v := os.Getenv("FIXTURE_SYNC_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FIXTURE_SYNC_ENABLED: %w", err)
		}
		c.Fixtures.SyncEnabled = enabled
	}
	if v := os.Getenv("FIXTURE_SYNC_SCHEDULE"); v != "" {
		c.Fixtures.SyncSchedule = v
	}
	if v := os.Getenv("IMPORT_LOG_PATH"); v != "" {
		c.ImportLog = v
	}

	c.R2AccountID = os.Getenv("R2_ACCOUNT_ID")
	c.R2AccessKeyID = os.Getenv("R2_ACCESS_KEY_ID")
	c.R2SecretAccessKey = os.Getenv("R2_SECRET_ACCESS_KEY")
	c.R2BucketName = os.Getenv("R2_BUCKET_NAME")
	return nil
}

// Validate отклоняет некорректные значения до старта сервера и заполняет Location.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable is not set"))
	}
	if c.JWTSecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY environment variable is not set"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}

	loc, err := time.LoadLocation(c.TeamTimezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid TEAM_TIMEZONE %q: %w", c.TeamTimezone, err))
	} else {
		c.Location = loc
	}

	if c.Fixtures.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("FIXTURE_API_TIMEOUT must be positive, got %s", c.Fixtures.Timeout))
	}
	if c.Fixtures.SyncEnabled {
		if c.Fixtures.BaseURL == "" {
			errs = append(errs, errors.New("FIXTURE_SYNC_ENABLED requires FIXTURE_API_BASE_URL"))
		}
		if _, err := cron.ParseStandard(c.Fixtures.SyncSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid FIXTURE_SYNC_SCHEDULE %q: %w", c.Fixtures.SyncSchedule, err))
		}
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
