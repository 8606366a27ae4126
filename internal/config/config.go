package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Mode         string        `yaml:"mode"` // "tui" or "http"
	UpperBound   int           `yaml:"upper_bound"`
	RestartDelay time.Duration `yaml:"restart_delay"`
	Port         string        `yaml:"port"`
	Store        string        `yaml:"store"` // "memory" or "sqlite"
	DBPath       string        `yaml:"db_path"`
	JWTSecret    string        `yaml:"jwt_secret"`
	AdminKeyHash string        `yaml:"admin_key_hash"` // bcrypt hash; empty disables fixed answers
	ClientOrigin string        `yaml:"client_origin"`
	SecureCookie bool          `yaml:"secure_cookie"`
	DailySalt    string        `yaml:"daily_salt"`
	LogLevel     string        `yaml:"log_level"`
	LogFile      string        `yaml:"log_file"`
}

const (
	ModeTUI  = "tui"
	ModeHTTP = "http"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Mode:         ModeTUI,
		UpperBound:   100,
		RestartDelay: 5 * time.Second,
		Port:         "5175",
		Store:        StoreMemory,
		DBPath:       "./data/guesser.db",
		JWTSecret:    "dev_secret_change_me",
		ClientOrigin: "http://localhost:5173",
		DailySalt:    "local_dev_salt",
		LogLevel:     "info",
	}
}

// Path returns the YAML file location: GUESSER_CONFIG if set, else ./guesser.yaml.
func Path() string {
	if p := os.Getenv("GUESSER_CONFIG"); p != "" {
		return expandPath(p)
	}
	return "guesser.yaml"
}

// Load builds the configuration from defaults, the optional YAML file,
// a .env file and finally the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := cfg.loadFile(Path()); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file over cfg. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.DBPath = expandPath(c.DBPath)
	c.LogFile = expandPath(c.LogFile)
	return nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("MODE", &c.Mode)
	str("PORT", &c.Port)
	str("STORE", &c.Store)
	str("DB_PATH", &c.DBPath)
	str("JWT_SECRET", &c.JWTSecret)
	str("ADMIN_KEY_HASH", &c.AdminKeyHash)
	str("CLIENT_ORIGIN", &c.ClientOrigin)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	str("DAILY_SALT", &c.DailySalt)

	if v, ok := lookup("SECURE_COOKIE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SECURE_COOKIE: %w", err)
		}
		c.SecureCookie = b
	}

	if v, ok := lookup("UPPER_BOUND"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("UPPER_BOUND: %w", err)
		}
		c.UpperBound = n
	}
	if v, ok := lookup("RESTART_DELAY"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RESTART_DELAY: %w", err)
		}
		c.RestartDelay = d
	}
	return nil
}

// Validate rejects configurations the game cannot run with.
func (c *Config) Validate() error {
	var errs []error
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))

	if c.Mode != ModeTUI && c.Mode != ModeHTTP {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeTUI, ModeHTTP, c.Mode))
	}
	if c.UpperBound < 1 {
		errs = append(errs, fmt.Errorf("upper_bound must be at least 1, got %d", c.UpperBound))
	}
	if c.RestartDelay <= 0 {
		errs = append(errs, fmt.Errorf("restart_delay must be positive, got %s", c.RestartDelay))
	}
	if c.Store != StoreMemory && c.Store != StoreSQLite {
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StoreMemory, StoreSQLite, c.Store))
	}
	if c.Store == StoreSQLite && c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required for the sqlite store"))
	}
	if c.Mode == ModeHTTP && c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required in http mode"))
	}
	return errors.Join(errs...)
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
