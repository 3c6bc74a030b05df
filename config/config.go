package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Runner    RunnerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server used by `pageshot serve`.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8090
	Mode string // "debug", "release", "test"; default: "release"

	// QueueSize bounds the number of runs waiting for the worker.
	QueueSize int // default: 16
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ControlURL connects to an already running browser instead of
	// launching one.
	ControlURL string

	// Stealth opens pages with anti-automation-detection evasions.
	Stealth bool // default: false

	// BlockAds blocks requests to known ad/tracking domains. Images and
	// stylesheets are never blocked; screenshots must stay faithful.
	BlockAds bool // default: false

	// Headers are extra HTTP headers sent with every page request.
	Headers map[string]string

	// ViewportWidth/ViewportHeight is the default window size.
	ViewportWidth  int // default: 1280
	ViewportHeight int // default: 720
}

// RunnerConfig controls verification runs.
type RunnerConfig struct {
	// BaseURL is the server URL steps are resolved against.
	BaseURL string // default: "http://localhost:8000"

	// SiteDir is the directory file steps are resolved against.
	SiteDir string // default: "."

	// OutputDir is where screenshots and reports are written.
	OutputDir string // default: "jules-scratch/verification"

	// NavigationTimeout bounds each page open.
	NavigationTimeout time.Duration // default: 60s

	// ReadinessTimeout is the default bound for element and network-idle waits.
	ReadinessTimeout time.Duration // default: 5s

	// AssertionTimeout is the default bound for each assertion.
	AssertionTimeout time.Duration // default: 5s

	// NetworkIdleQuiet is how long the network must stay quiet.
	NetworkIdleQuiet time.Duration // default: 500ms

	// CaptureTimeout bounds screenshot writes, including the diagnostic one.
	CaptureTimeout time.Duration // default: 15s

	// DiagnosticScreenshot is the file name of the error-state capture.
	DiagnosticScreenshot string // default: "error_screenshot.png"

	// TextSnapshots writes a Markdown rendition next to each screenshot.
	TextSnapshots bool // default: false

	// Preflight checks every target is reachable before launching the browser.
	Preflight bool // default: false
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// StoreConfig controls the in-memory run store.
type StoreConfig struct {
	// MaxEntries is the maximum number of runs kept.
	MaxEntries int // default: 200

	// TTL is how long finished runs are kept.
	TTL time.Duration // default: 1h
}

// WebhookConfig controls run-event delivery.
type WebhookConfig struct {
	// Secret signs webhook bodies with HMAC-SHA256 when set.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      envOr("PAGESHOT_HOST", "127.0.0.1"),
			Port:      envIntOr("PAGESHOT_PORT", 8090),
			Mode:      envOr("PAGESHOT_MODE", "release"),
			QueueSize: envIntOr("PAGESHOT_QUEUE_SIZE", 16),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("PAGESHOT_HEADLESS", true),
			NoSandbox:      envBoolOr("PAGESHOT_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("PAGESHOT_BROWSER_BIN"),
			ControlURL:     os.Getenv("PAGESHOT_CONTROL_URL"),
			Stealth:        envBoolOr("PAGESHOT_STEALTH", false),
			BlockAds:       envBoolOr("PAGESHOT_BLOCK_ADS", false),
			Headers:        envMapOr("PAGESHOT_HEADERS", nil),
			ViewportWidth:  envIntOr("PAGESHOT_VIEWPORT_WIDTH", 1280),
			ViewportHeight: envIntOr("PAGESHOT_VIEWPORT_HEIGHT", 720),
		},
		Runner: RunnerConfig{
			BaseURL:              envOr("PAGESHOT_BASE_URL", "http://localhost:8000"),
			SiteDir:              envOr("PAGESHOT_SITE_DIR", "."),
			OutputDir:            envOr("PAGESHOT_OUTPUT_DIR", "jules-scratch/verification"),
			NavigationTimeout:    envDurationOr("PAGESHOT_NAV_TIMEOUT", 60*time.Second),
			ReadinessTimeout:     envDurationOr("PAGESHOT_READY_TIMEOUT", 5*time.Second),
			AssertionTimeout:     envDurationOr("PAGESHOT_ASSERT_TIMEOUT", 5*time.Second),
			NetworkIdleQuiet:     envDurationOr("PAGESHOT_IDLE_QUIET", 500*time.Millisecond),
			CaptureTimeout:       envDurationOr("PAGESHOT_CAPTURE_TIMEOUT", 15*time.Second),
			DiagnosticScreenshot: envOr("PAGESHOT_ERROR_SCREENSHOT", "error_screenshot.png"),
			TextSnapshots:        envBoolOr("PAGESHOT_TEXT_SNAPSHOTS", false),
			Preflight:            envBoolOr("PAGESHOT_PREFLIGHT", false),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PAGESHOT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PAGESHOT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PAGESHOT_RATE_RPS", 2.0),
			Burst:             envIntOr("PAGESHOT_RATE_BURST", 5),
		},
		Store: StoreConfig{
			MaxEntries: envIntOr("PAGESHOT_STORE_MAX_RUNS", 200),
			TTL:        envDurationOr("PAGESHOT_STORE_TTL", time.Hour),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("PAGESHOT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("PAGESHOT_LOG_LEVEL", "info"),
			Format: envOr("PAGESHOT_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses "Key=Value,Key2=Value2". Pairs without '=' are skipped.
func envMapOr(key string, fallback map[string]string) map[string]string {
	pairs := envSliceOr(key, nil)
	if len(pairs) == 0 {
		return fallback
	}
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return result
}
