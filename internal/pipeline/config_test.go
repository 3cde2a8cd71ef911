package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMonthLabel(t *testing.T) {
	cases := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), "2026_08"},
		{time.Date(2026, time.September, 30, 23, 59, 0, 0, time.UTC), "2026_08"},
		{time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), "2025_12"},
		{time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), "2026_02"},
	}
	for _, tc := range cases {
		if got := MonthLabel(tc.now); got != tc.want {
			t.Fatalf("MonthLabel(%v) = %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestExtractDirOverride(t *testing.T) {
	now := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	cfg := Config{RawRoot: filepath.Join("docs", "raw_data")}
	if got := cfg.ExtractDir(now); got != filepath.Join("docs", "raw_data", "2026_08") {
		t.Fatalf("derived extract dir: %s", got)
	}

	cfg.DataDir = filepath.Join("tmp", "fixtures")
	if got := cfg.ExtractDir(now); got != filepath.Join("tmp", "fixtures") {
		t.Fatalf("override ignored: %s", got)
	}
}

func TestLoadConfigRequiresPassword(t *testing.T) {
	t.Setenv("DB_PASS", "")
	t.Setenv("PIPELINE_CONFIG", "")

	_, err := LoadConfig()
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestLoadConfigDefaultsAndOverlay(t *testing.T) {
	t.Setenv("DB_PASS", "secret")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("METRICS_ADDR", "")

	overlay := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(overlay, []byte("views_dir: custom/views\nmetrics_addr: :9102\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PIPELINE_CONFIG", overlay)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBHost != "localhost" || cfg.DBName != "Station" {
		t.Fatalf("defaults not applied: host=%s name=%s", cfg.DBHost, cfg.DBName)
	}
	if cfg.ViewsDir != "custom/views" || cfg.MetricsAddr != ":9102" {
		t.Fatalf("overlay not applied: views=%s metrics=%s", cfg.ViewsDir, cfg.MetricsAddr)
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{
		DBHost: "db.internal",
		DBPort: "5433",
		DBName: "Station",
		DBUser: "etl",
		DBPass: "p@ss word",
	}
	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "postgres://") {
		t.Fatalf("scheme: %s", dsn)
	}
	if !strings.Contains(dsn, "db.internal:5433") || !strings.Contains(dsn, "/Station") {
		t.Fatalf("host or database missing: %s", dsn)
	}
	if strings.Contains(dsn, "p@ss word") {
		t.Fatalf("password not escaped: %s", dsn)
	}
	if !strings.Contains(dsn, "sslmode=disable") {
		t.Fatalf("sslmode missing: %s", dsn)
	}

	cfg.SSLMode = "require"
	if dsn := cfg.DSN(); !strings.Contains(dsn, "sslmode=require") {
		t.Fatalf("configured sslmode ignored: %s", dsn)
	}
}
