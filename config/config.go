package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultAPIURL = "http://gis.vantaa.fi/rest/tyopaikat/v1/kaikki"

// Config holds all application configuration. Values come from defaults, an
// optional YAML file, then .env and the process environment, each layer
// overriding the previous one.
type Config struct {
	APIURL      string `yaml:"api_url"`
	HTTPTimeout int    `yaml:"http_timeout_seconds"`

	DBDriver         string `yaml:"db_driver"`
	DatabaseURL      string `yaml:"database_url"`
	IDColumnType     string `yaml:"id_column_type"`
	DBConnectRetries int    `yaml:"db_connect_retries"`

	LockPath    string `yaml:"lock_path"`
	MetricsFile string `yaml:"metrics_file"`
	LogLevel    string `yaml:"log_level"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		APIURL:           DefaultAPIURL,
		HTTPTimeout:      30,
		DBDriver:         "sqlite",
		DatabaseURL:      "./data/vantaa.db",
		IDColumnType:     "integer",
		DBConnectRetries: 3,
		LockPath:         "./data/vantaa-etl.lock",
		LogLevel:         "info",
	}
}

// Load builds the Config. path may be empty; a missing .env is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("ETL_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg.APIURL = getEnv("API_URL", cfg.APIURL)
	cfg.HTTPTimeout = getEnvInt("HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeout)
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", cfg.DBDriver))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.IDColumnType = strings.ToLower(getEnv("ID_COLUMN_TYPE", cfg.IDColumnType))
	cfg.DBConnectRetries = getEnvInt("DB_CONNECT_RETRIES", cfg.DBConnectRetries)
	cfg.LockPath = getEnv("LOCK_PATH", cfg.LockPath)
	cfg.MetricsFile = getEnv("METRICS_FILE", cfg.MetricsFile)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.APIURL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("api_url %q must be an absolute http(s) URL", c.APIURL))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, "http_timeout_seconds must be > 0")
	}
	switch c.DBDriver {
	case "sqlite", "postgres", "pgx":
	default:
		errs = append(errs, fmt.Sprintf("db_driver %q must be sqlite, postgres or pgx", c.DBDriver))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, "database_url is required")
	}
	switch c.IDColumnType {
	case "integer", "text":
	default:
		errs = append(errs, fmt.Sprintf("id_column_type %q must be integer or text", c.IDColumnType))
	}
	if c.DBConnectRetries < 1 {
		errs = append(errs, "db_connect_retries must be >= 1")
	}
	if strings.TrimSpace(c.LockPath) == "" {
		errs = append(errs, "lock_path is required")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

// Timeout returns the HTTP client timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
