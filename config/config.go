package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Fetch      FetchConfig
	HostLimit  HostLimitConfig
	Pagination PaginationConfig
	Extract    ExtractConfig
	LLM        LLMConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Cache      CacheConfig
	Log        LogConfig
	Engine     EngineConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 5000, the port the web UI calls
	Mode string // "debug", "release", "test"; default: "release"

	// RequestTimeout is the overall deadline for one review request.
	RequestTimeout time.Duration // default: 90s
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Enabled toggles the headless browser. When false or when launch fails
	// the service runs HTTP-only.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 6

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockedResourceTypes lists resource types to block while rendering.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// EngineConfig controls the fetch engine dispatcher.
type EngineConfig struct {
	// EscalationDelay is how long the second engine waits before joining the race.
	EscalationDelay time.Duration // default: 3s

	// DomainMemoryTTL is how long a winning engine is remembered per host.
	DomainMemoryTTL time.Duration // default: 24h
}

// FetchConfig controls single page fetches.
type FetchConfig struct {
	Timeout      time.Duration // default: 15s
	MaxRedirects int           // default: 5

	// MaxRetries is the number of retries for transient network errors.
	MaxRetries int // default: 2

	// Backoff is the wait before each transient retry.
	Backoff []time.Duration // default: [500ms, 1500ms]
}

// HostLimitConfig controls the process-wide per-host throttle.
type HostLimitConfig struct {
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 2
	MaxConcurrent     int     // default: 2
}

// PaginationConfig bounds the pagination coordinator.
type PaginationConfig struct {
	MaxPages    int           // default: 10
	MaxElapsed  time.Duration // default: 60s
	Concurrency int           // default: 3
}

// ExtractConfig controls adapters.
type ExtractConfig struct {
	// SelectorsDir, if set, holds <kind>.yaml files overriding the embedded
	// selector sets.
	SelectorsDir string

	// SemanticEnabled toggles the LLM block classifier for unknown sites.
	SemanticEnabled bool // default: false

	// SemanticMaxBlocks caps classifier calls per page.
	SemanticMaxBlocks int // default: 12

	// SemanticTimeout bounds each classifier call.
	SemanticTimeout time.Duration // default: 8s
}

// LLMConfig configures the OpenAI-compatible endpoint used by the semantic
// heuristic.
type LLMConfig struct {
	APIKey  string
	Model   string // default: "gpt-4o-mini"
	BaseURL string // default: "https://api.openai.com/v1"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	APIKeys []string
}

// RateLimitConfig controls per-client rate limiting of the API itself.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per client.
	Burst int // default: 5
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string // default: ["http://localhost:5173", "http://127.0.0.1:5173"]
}

// CacheConfig controls the optional review response cache.
type CacheConfig struct {
	// TTL is how long a successful result is served from cache. 0 disables caching.
	TTL time.Duration // default: 0

	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           envOr("REVIEWLENS_HOST", "127.0.0.1"),
			Port:           envIntOr("REVIEWLENS_PORT", 5000),
			Mode:           envOr("REVIEWLENS_MODE", "release"),
			RequestTimeout: envDurationOr("REVIEWLENS_REQUEST_TIMEOUT", 90*time.Second),
		},
		Browser: BrowserConfig{
			Enabled:    envBoolOr("REVIEWLENS_BROWSER", true),
			Headless:   envBoolOr("REVIEWLENS_HEADLESS", true),
			MaxPages:   envIntOr("REVIEWLENS_MAX_TABS", 6),
			NoSandbox:  envBoolOr("REVIEWLENS_NO_SANDBOX", false),
			BrowserBin: os.Getenv("REVIEWLENS_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("REVIEWLENS_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Engine: EngineConfig{
			EscalationDelay: envDurationOr("REVIEWLENS_ESCALATION_DELAY", 3*time.Second),
			DomainMemoryTTL: envDurationOr("REVIEWLENS_DOMAIN_MEMORY_TTL", 24*time.Hour),
		},
		Fetch: FetchConfig{
			Timeout:      envDurationOr("REVIEWLENS_FETCH_TIMEOUT", 15*time.Second),
			MaxRedirects: envIntOr("REVIEWLENS_MAX_REDIRECTS", 5),
			MaxRetries:   envIntOr("REVIEWLENS_MAX_RETRIES", 2),
			Backoff: envDurationSliceOr("REVIEWLENS_RETRY_BACKOFF", []time.Duration{
				500 * time.Millisecond, 1500 * time.Millisecond,
			}),
		},
		HostLimit: HostLimitConfig{
			RequestsPerSecond: envFloatOr("REVIEWLENS_HOST_RPS", 1.0),
			Burst:             envIntOr("REVIEWLENS_HOST_BURST", 2),
			MaxConcurrent:     envIntOr("REVIEWLENS_HOST_CONCURRENCY", 2),
		},
		Pagination: PaginationConfig{
			MaxPages:    envIntOr("REVIEWLENS_MAX_PAGES", 10),
			MaxElapsed:  envDurationOr("REVIEWLENS_PAGINATION_BUDGET", 60*time.Second),
			Concurrency: envIntOr("REVIEWLENS_PAGINATION_CONCURRENCY", 3),
		},
		Extract: ExtractConfig{
			SelectorsDir:      os.Getenv("REVIEWLENS_SELECTORS_DIR"),
			SemanticEnabled:   envBoolOr("REVIEWLENS_SEMANTIC", false),
			SemanticMaxBlocks: envIntOr("REVIEWLENS_SEMANTIC_MAX_BLOCKS", 12),
			SemanticTimeout:   envDurationOr("REVIEWLENS_SEMANTIC_TIMEOUT", 8*time.Second),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envOr("REVIEWLENS_LLM_MODEL", "gpt-4o-mini"),
			BaseURL: envOr("REVIEWLENS_LLM_BASE_URL", "https://api.openai.com/v1"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("REVIEWLENS_AUTH_ENABLED", false),
			APIKeys: envSliceOr("REVIEWLENS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("REVIEWLENS_RATE_RPS", 2.0),
			Burst:             envIntOr("REVIEWLENS_RATE_BURST", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: envSliceOr("REVIEWLENS_CORS_ORIGINS", []string{
				"http://localhost:5173", "http://127.0.0.1:5173",
			}),
		},
		Cache: CacheConfig{
			TTL:        envDurationOr("REVIEWLENS_CACHE_TTL", 0),
			MaxEntries: envIntOr("REVIEWLENS_CACHE_MAX_ENTRIES", 500),
		},
		Log: LogConfig{
			Level:  envOr("REVIEWLENS_LOG_LEVEL", "info"),
			Format: envOr("REVIEWLENS_LOG_FORMAT", "json"),
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

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
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
