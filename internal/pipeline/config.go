package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries connection parameters and pipeline paths. It is loaded once
// at startup and passed into each component explicitly.
type Config struct {
	DBHost  string `yaml:"db_host"`
	DBPort  string `yaml:"db_port"`
	DBName  string `yaml:"db_name"`
	DBUser  string `yaml:"db_user"`
	DBPass  string `yaml:"-"`
	SSLMode string `yaml:"db_sslmode"`

	// RawRoot and HistoricalRoot hold one YYYY_MM subdirectory per monthly
	// extract. DataDir overrides the derived extract directory when set.
	RawRoot        string `yaml:"raw_root"`
	HistoricalRoot string `yaml:"historical_root"`
	DataDir        string `yaml:"data_dir"`
	ViewsDir       string `yaml:"views_dir"`
	ReportDir      string `yaml:"report_dir"`

	RestoreConstraints bool   `yaml:"restore_constraints"`
	MetricsAddr        string `yaml:"metrics_addr"`
}

// ErrMissingCredentials is returned before any database contact is attempted.
var ErrMissingCredentials = errors.New("pipeline: DB_PASS is required")

// LoadConfig reads .env, environment variables and the optional YAML overlay
// named by PIPELINE_CONFIG.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBHost:             getenvDefault("DB_HOST", "localhost"),
		DBPort:             getenvDefault("DB_PORT", "5432"),
		DBName:             getenvDefault("DB_NAME", "Station"),
		DBUser:             getenvDefault("DB_USER", "postgres"),
		DBPass:             os.Getenv("DB_PASS"),
		SSLMode:            getenvDefault("DB_SSLMODE", "disable"),
		RawRoot:            getenvDefault("RAW_DATA_ROOT", filepath.Join("docs", "raw_data")),
		HistoricalRoot:     getenvDefault("HISTORICAL_DATA_ROOT", filepath.Join("docs", "historical_data")),
		DataDir:            os.Getenv("DATA_DIR"),
		ViewsDir:           getenvDefault("VIEWS_DIR", filepath.Join("analytics", "queries")),
		ReportDir:          getenvDefault("REPORT_DIR", filepath.Join("var", "reports")),
		RestoreConstraints: os.Getenv("RESTORE_CONSTRAINTS") == "true",
		MetricsAddr:        os.Getenv("METRICS_ADDR"),
	}

	if path := os.Getenv("PIPELINE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("pipeline config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("pipeline config: %w", err)
		}
	}

	if cfg.DBPass == "" {
		return cfg, ErrMissingCredentials
	}
	return cfg, nil
}

// DSN renders a postgres connection URL for the stdlib pgx driver.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPass),
		Host:   c.DBHost + ":" + c.DBPort,
		Path:   "/" + c.DBName,
	}
	mode := c.SSLMode
	if mode == "" {
		mode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", mode)
	u.RawQuery = q.Encode()
	return u.String()
}

// ExtractDir returns the directory the loader reads from: DataDir when set,
// otherwise RawRoot/<previous month>.
func (c Config) ExtractDir(now time.Time) string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return filepath.Join(c.RawRoot, MonthLabel(now))
}

// HistoricalDir returns the snapshot directory for the previous month.
func (c Config) HistoricalDir(now time.Time) string {
	return filepath.Join(c.HistoricalRoot, MonthLabel(now))
}

// MonthLabel formats the month preceding now as YYYY_MM, the naming scheme of
// the extract and archive directories.
func MonthLabel(now time.Time) string {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastOfPrevious := firstOfMonth.AddDate(0, 0, -1)
	return lastOfPrevious.Format("2006_01")
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
