// Package config loads server configuration from command-line flags,
// environment variables and a .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Media     MediaConfig
	QC        QCConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        // default: 8080
	ReadTimeout    time.Duration // default: 15s
	WriteTimeout   time.Duration // default: 0, SSE streams stay open
	IdleTimeout    time.Duration // default: 60s
	AllowedOrigins []string      // default: *
}

// MediaConfig describes the optional media directory served by the server.
type MediaConfig struct {
	// Root is scanned into the grouping engine at startup and on rescan.
	// Empty means files only arrive through the ingest endpoint.
	Root        string
	Watch       bool          // default: true
	SettleDelay time.Duration // default: 500ms
	// Locale drives collation of subjects, sessions and file names.
	Locale string // default: und
}

// QCConfig holds ledger configuration.
type QCConfig struct {
	// CSVPath is imported at startup when set.
	CSVPath string
	// VariablesPath is a YAML variable preset applied at startup when set.
	VariablesPath string
	// ProgressEvery is the number of row visits between progress events.
	ProgressEvery int // default: 250
	// WaitTimeout bounds how long a request waits for a recompute.
	WaitTimeout time.Duration // default: 30s
}

// RateLimitConfig limits mutating requests per client IP.
type RateLimitConfig struct {
	RPS   float64 // default: 20
	Burst int     // default: 40
}

// LoadConfig loads configuration from os.Args with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig with explicit arguments.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("mediaqc", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 0)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed origins (default: *)")

	mediaRoot := fs.String("media-root", "", "Directory scanned for subject/session/file media")
	mediaWatch := fs.String("media-watch", "", "Rescan when the media root changes (default: true)")
	settleDelay := fs.String("media-settle-delay", "", "Quiet period before a rescan (default: 500ms)")
	locale := fs.String("locale", "", "Collation locale for sorted views (default: und)")

	csvPath := fs.String("qc-csv", "", "QC sheet imported at startup")
	variablesPath := fs.String("qc-variables", "", "YAML QC variable preset applied at startup")
	progressEvery := fs.String("qc-progress-every", "", "Rows between recompute progress events (default: 250)")
	waitTimeout := fs.String("qc-wait-timeout", "", "How long requests wait for a recompute (default: 30s)")

	rateRPS := fs.String("rate-limit-rps", "", "Mutating requests per second per client (default: 20)")
	rateBurst := fs.String("rate-limit-burst", "", "Mutating request burst per client (default: 40)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		Media: MediaConfig{
			Root:   getConfigValue(*mediaRoot, "MEDIA_ROOT", ""),
			Watch:  getBoolConfigValue(*mediaWatch, "MEDIA_WATCH", true),
			Locale: getConfigValue(*locale, "COLLATION_LOCALE", "und"),
		},
		QC: QCConfig{
			CSVPath:       getConfigValue(*csvPath, "QC_CSV_PATH", ""),
			VariablesPath: getConfigValue(*variablesPath, "QC_VARIABLES_PATH", ""),
			ProgressEvery: getIntConfigValue(*progressEvery, "QC_PROGRESS_EVERY", 250),
		},
		RateLimit: RateLimitConfig{
			RPS:   getFloatConfigValue(*rateRPS, "RATE_LIMIT_RPS", 20),
			Burst: getIntConfigValue(*rateBurst, "RATE_LIMIT_BURST", 40),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Media.SettleDelay, *settleDelay, "MEDIA_SETTLE_DELAY", "500ms"},
		{&cfg.QC.WaitTimeout, *waitTimeout, "QC_WAIT_TIMEOUT", "30s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	var err error
	if cfg.Media.Root, err = expandPath(cfg.Media.Root); err != nil {
		return nil, fmt.Errorf("invalid media root: %w", err)
	}
	if cfg.QC.CSVPath, err = expandPath(cfg.QC.CSVPath); err != nil {
		return nil, fmt.Errorf("invalid qc csv path: %w", err)
	}
	if cfg.QC.VariablesPath, err = expandPath(cfg.QC.VariablesPath); err != nil {
		return nil, fmt.Errorf("invalid qc variables path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that config values are present and in range.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Server.Port == "" {
		return errors.New("server port cannot be empty")
	}
	if _, err := language.Parse(c.Media.Locale); err != nil {
		return fmt.Errorf("invalid collation locale %q: %w", c.Media.Locale, err)
	}
	if c.Media.SettleDelay < 0 {
		return errors.New("media settle delay cannot be negative")
	}
	if c.QC.ProgressEvery <= 0 {
		return fmt.Errorf("qc progress interval must be positive, got %d", c.QC.ProgressEvery)
	}
	if c.QC.WaitTimeout <= 0 {
		return errors.New("qc wait timeout must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive, got rps=%v burst=%d", c.RateLimit.RPS, c.RateLimit.Burst)
	}
	return nil
}

// expandPath expands ~ and makes a non-empty path absolute.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	switch strings.ToLower(strValue) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// getIntConfigValue falls back to the default when the value does not parse.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from a .env file. Variables already set
// in the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
