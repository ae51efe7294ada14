package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/pagecapture/internal/engine"
)

const (
	minJobTimeout = 10 * time.Second
	minJobs       = 1
)

// Config holds all configuration for the capture controller.
type Config struct {
	BindAddr         string
	PortAutoFallback bool
	PortCandidates   []string

	OutputDir         string
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	// SettingsFile optionally seeds the global capture settings (YAML).
	SettingsFile string

	LogLevel string
	LogFile  string

	// NotifyURL receives a text message for every finished job when set.
	NotifyURL string
	// JournalDir holds the JSONL audit trail of finished jobs when set.
	JournalDir string

	// DriverPaths override driver or browser discovery per kind.
	DriverPaths map[engine.Kind]string
	// BrowserPaths override the browser binary driven by a WebDriver kind.
	BrowserPaths map[engine.Kind]string
}

// Load reads configuration from environment variables after loading the
// given .env files. With no files, ./.env is tried.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug("failed to load .env file", "files", envFiles, "error", err)
	}

	cfg := &Config{
		BindAddr:          getEnvOrDefault("CAPTURE_BIND_ADDR", "127.0.0.1:8000"),
		PortAutoFallback:  getEnvBoolOrDefault("CAPTURE_PORT_AUTO_FALLBACK", true),
		PortCandidates:    splitList(getEnvOrDefault("CAPTURE_PORT_CANDIDATES", "127.0.0.1:8001,127.0.0.1:8002,127.0.0.1:8003")),
		OutputDir:         getEnvOrDefault("CAPTURE_OUTPUT_DIR", "./screenshots"),
		MaxConcurrentJobs: getEnvIntOrDefault("CAPTURE_MAX_CONCURRENT_JOBS", 4),
		JobTimeout:        time.Duration(getEnvIntOrDefault("CAPTURE_JOB_TIMEOUT_SECONDS", 120)) * time.Second,
		SettingsFile:      getEnvOrDefault("CAPTURE_SETTINGS_FILE", ""),
		LogLevel:          strings.ToLower(getEnvOrDefault("CAPTURE_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("CAPTURE_LOG_FILE", "logs/capture_controller.log"),
		NotifyURL:         getEnvOrDefault("CAPTURE_NOTIFY_URL", ""),
		JournalDir:        getEnvOrDefault("CAPTURE_JOURNAL_DIR", ""),
		DriverPaths: compact(map[engine.Kind]string{
			engine.KindChrome:  os.Getenv("CHROME_PATH"),
			engine.KindEdge:    os.Getenv("EDGE_PATH"),
			engine.KindFirefox: os.Getenv("GECKODRIVER_PATH"),
			engine.KindSafari:  os.Getenv("SAFARIDRIVER_PATH"),
		}),
		BrowserPaths: compact(map[engine.Kind]string{
			engine.KindFirefox: os.Getenv("FIREFOX_PATH"),
		}),
	}
	if cfg.MaxConcurrentJobs < minJobs {
		cfg.MaxConcurrentJobs = minJobs
	}
	if cfg.JobTimeout < minJobTimeout {
		cfg.JobTimeout = minJobTimeout
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func compact(m map[engine.Kind]string) map[engine.Kind]string {
	for k, v := range m {
		if strings.TrimSpace(v) == "" {
			delete(m, k)
		}
	}
	return m
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
