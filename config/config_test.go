package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"CONFIG_FILE", "DATABASE_URL", "JWT_SECRET_KEY", "SERVER_PORT", "LOG_LEVEL", "TEAM_TIMEZONE",
	"CORS_ALLOWED_ORIGINS", "FIXTURE_API_BASE_URL", "FIXTURE_API_TOKEN", "FIXTURE_API_TIMEOUT",
	"FIXTURE_SYNC_ENABLED", "FIXTURE_SYNC_SCHEDULE", "IMPORT_LOG_PATH",
	"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME",
}

// setEnv clears every key Load reads, then applies vals.
func setEnv(t *testing.T, vals map[string]string) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
	for k, v := range vals {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET_KEY": "s"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != 8080 || cfg.LogLevel != slog.LevelInfo || cfg.TeamTimezone != "Europe/Berlin" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Location == nil || cfg.Location.String() != "Europe/Berlin" {
		t.Errorf("location not resolved: %v", cfg.Location)
	}
	if cfg.Fixtures.Timeout != 20*time.Second || cfg.Fixtures.SyncSchedule != "0 */6 * * *" || cfg.Fixtures.SyncEnabled {
		t.Errorf("unexpected fixture defaults %+v", cfg.Fixtures)
	}
	if cfg.ImportLog != "data/imports.db" || cfg.R2BucketName != "" {
		t.Errorf("unexpected storage defaults %+v", cfg)
	}
}

func TestLoad_YAMLOverlayAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
team_timezone: Europe/Vienna
fixtures:
  base_url: https://feed.example.com
  token: from-file
  timeout: 5s
  sync_enabled: true
  sync_schedule: "30 3 * * *"
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatal(err)
	}
	setEnv(t, map[string]string{
		"CONFIG_FILE":          path,
		"DATABASE_URL":         "postgres://x",
		"JWT_SECRET_KEY":       "s",
		"FIXTURE_API_TOKEN":    "from-env",
		"LOG_LEVEL":            "debug",
		"CORS_ALLOWED_ORIGINS": "https://a.example, ,https://b.example",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := cfg.Fixtures
	if f.BaseURL != "https://feed.example.com" || f.Token != "from-env" || f.Timeout != 5*time.Second || !f.SyncEnabled || f.SyncSchedule != "30 3 * * *" {
		t.Errorf("unexpected fixtures config %+v", f)
	}
	if cfg.TeamTimezone != "Europe/Vienna" || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("unexpected overlay result %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoad_Rejects(t *testing.T) {
	base := map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET_KEY": "s"}
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing database", map[string]string{"JWT_SECRET_KEY": "s"}, "DATABASE_URL"},
		{"missing secret", map[string]string{"DATABASE_URL": "postgres://x"}, "JWT_SECRET_KEY"},
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}, "SERVER_PORT"},
		{"port not a number", map[string]string{"SERVER_PORT": "http"}, "SERVER_PORT"},
		{"unknown timezone", map[string]string{"TEAM_TIMEZONE": "Mars/Olympus"}, "TEAM_TIMEZONE"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad timeout", map[string]string{"FIXTURE_API_TIMEOUT": "soon"}, "FIXTURE_API_TIMEOUT"},
		{"sync without url", map[string]string{"FIXTURE_SYNC_ENABLED": "true"}, "FIXTURE_API_BASE_URL"},
		{"bad schedule", map[string]string{"FIXTURE_SYNC_ENABLED": "true", "FIXTURE_API_BASE_URL": "http://f", "FIXTURE_SYNC_SCHEDULE": "hourly-ish"}, "FIXTURE_SYNC_SCHEDULE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{}
			if !strings.HasPrefix(tt.name, "missing") {
				for k, v := range base {
					env[k] = v
				}
			}
			for k, v := range tt.env {
				env[k] = v
			}
			setEnv(t, env)

			_, err := Load()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %s", err, tt.wantErr)
			}
		})
	}
}
