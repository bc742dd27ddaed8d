package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for filedrive.
type Config struct {
	// Base URL of the document store that holds the /files and /folders
	// collections.
	StoreBaseURL string `env:"STORE_BASE_URL" envDefault:"http://localhost:3000"`

	// Timeout for individual store requests.
	StoreTimeoutSeconds int `env:"STORE_TIMEOUT_SECONDS" envDefault:"30"`

	// Address the HTTP API listens on.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Optional directory watched for files to upload into the root scope.
	// Disabled when empty.
	ImportDir string `env:"IMPORT_DIR"`

	// Optional YAML file mapping file extensions to MIME types, merged
	// over the built-in fallback table.
	MIMEOverridesFile string `env:"MIME_OVERRIDES_FILE"`

	// Path of the bbolt database holding UI preferences. Defaults to
	// ~/.filedrive/prefs.db when empty.
	PrefsDBPath string `env:"PREFS_DB_PATH"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. Group or world readable files risk
// exposing store credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.PrefsDBPath == "" {
		path, err := DefaultPrefsPath()
		if err != nil {
			return nil, err
		}

		cfg.PrefsDBPath = path
	}

	// Resolve ImportDir to an absolute path at startup so watcher events,
	// which carry absolute paths, compare cleanly against it.
	if cfg.ImportDir != "" {
		absDir, err := filepath.Abs(cfg.ImportDir)
		if err != nil {
			return nil, fmt.Errorf("resolving import dir to absolute path: %w", err)
		}

		cfg.ImportDir = absDir
	}

	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.StoreBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("STORE_BASE_URL must be an absolute URL, got %q", c.StoreBaseURL)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("STORE_BASE_URL must use http or https, got %q", u.Scheme)
	}

	if c.StoreTimeoutSeconds <= 0 {
		return fmt.Errorf("STORE_TIMEOUT_SECONDS must be positive, got %d", c.StoreTimeoutSeconds)
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR must not be empty")
	}

	return nil
}

// StoreTimeout returns the store request timeout as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DefaultPrefsPath returns the default preferences database path:
// ~/.filedrive/prefs.db
func DefaultPrefsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".filedrive", "prefs.db"), nil
}
