// Configuration types and environment bootstrap
package gateway

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultDeepSeekModel = "deepseek-chat"
	DefaultOllamaModel   = "gpt-oss:20b"
)

const DefaultOllamaBaseURL = "http://localhost:11434"

const (
	// DefaultTimeout bounds one gateway HTTP exchange when the caller's
	// context does not.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxTransportRetries is how many times a transport-level
	// failure is attempted before giving up.
	DefaultMaxTransportRetries = 3
)

// Config holds what a session-scoped gateway needs: the session identity,
// where the control plane lives, and the spend ceiling.
type Config struct {
	// SessionToken authenticates the gateway to the control plane. It is a
	// session credential, never a provider API key.
	SessionToken string `json:"session_token,omitempty"`

	// ControlPlaneURL is the base URL of the credential broker.
	ControlPlaneURL string `json:"control_plane_url,omitempty"`

	// SessionID scopes cost accounting and message persistence.
	SessionID string `json:"session_id,omitempty"`

	// CostCapUSD is the ceiling on cumulative session spend. Zero means
	// uncapped.
	CostCapUSD float64 `json:"cost_cap_usd,omitempty"`

	// Timeout bounds each HTTP exchange (default: DefaultTimeout).
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries bounds transport-level retry attempts (default:
	// DefaultMaxTransportRetries). Distinct from rate-limit retries, which
	// are opt-in via WithRetry.
	MaxRetries int `json:"max_retries,omitempty"`

	// RequestsPerSecond enables client-side pacing of control-plane calls
	// when positive.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`

	// Logger receives debug/warn lines from the gateway. Nil means
	// slog.Default().
	Logger *slog.Logger `json:"-"`
}

// ProviderConfig holds configuration for creating provider adapters
type ProviderConfig struct {
	Provider   string            `json:"provider"` // openai, gemini, deepseek, openrouter, bedrock, ollama
	Model      string            `json:"model"`
	APIKey     string            `json:"api_key,omitempty"`
	BaseURL    string            `json:"base_url,omitempty"`
	Timeout    time.Duration     `json:"timeout,omitempty"`
	MaxRetries int               `json:"max_retries,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"` // Provider-specific configs
}

// parseTimeoutFromEnv parses timeout from environment variable with fallback to default
func parseTimeoutFromEnv(envVar string, defaultTimeout time.Duration) time.Duration {
	if timeoutStr := os.Getenv(envVar); timeoutStr != "" {
		if timeoutSecs, err := strconv.Atoi(timeoutStr); err == nil && timeoutSecs > 0 {
			return time.Duration(timeoutSecs) * time.Second
		}
	}
	return defaultTimeout
}

// envOr returns the first non-empty value among the given variables.
func envOr(vars ...string) string {
	for _, v := range vars {
		if val := os.Getenv(v); val != "" {
			return val
		}
	}
	return ""
}

// FromEnv builds a session Config from the environment:
//
//	SESSION_TOKEN      (or HALCYON_SESSION_TOKEN)
//	CONTROL_PLANE_URL  (or HALCYON_CONTROL_PLANE_URL)
//	SESSION_ID         (or HALCYON_SESSION_ID)
//	COST_CAP_USD       optional spend ceiling
//	GATEWAY_TIMEOUT    optional, seconds
//
// Missing token or URL is a configuration error, not a panic: the caller
// decides whether to fall back to a direct gateway.
func FromEnv() (Config, error) {
	cfg := Config{
		SessionToken:    envOr("SESSION_TOKEN", "HALCYON_SESSION_TOKEN"),
		ControlPlaneURL: envOr("CONTROL_PLANE_URL", "HALCYON_CONTROL_PLANE_URL"),
		SessionID:       envOr("SESSION_ID", "HALCYON_SESSION_ID"),
		Timeout:         parseTimeoutFromEnv("GATEWAY_TIMEOUT", DefaultTimeout),
		MaxRetries:      DefaultMaxTransportRetries,
	}

	if capStr := os.Getenv("COST_CAP_USD"); capStr != "" {
		capUSD, err := strconv.ParseFloat(capStr, 64)
		if err != nil || capUSD < 0 {
			return Config{}, &Error{
				Code:    "invalid_cost_cap",
				Message: "COST_CAP_USD must be a non-negative number, got " + capStr,
				Kind:    KindConfiguration,
			}
		}
		cfg.CostCapUSD = capUSD
	}

	if cfg.SessionToken == "" {
		return Config{}, &Error{
			Code:    "missing_session_token",
			Message: "SESSION_TOKEN is not set",
			Kind:    KindConfiguration,
		}
	}
	if cfg.ControlPlaneURL == "" {
		return Config{}, &Error{
			Code:    "missing_control_plane_url",
			Message: "CONTROL_PLANE_URL is not set",
			Kind:    KindConfiguration,
		}
	}

	return cfg, nil
}

// ProviderConfigFromEnv picks a provider configuration for the direct
// variant from whatever credentials the environment carries.
func ProviderConfigFromEnv() ProviderConfig {
	// Priority 1: Custom OpenAI-compatible endpoint (highest priority if explicitly configured)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			apiKey = "dummy" // Some endpoints don't require real keys
		}

		model := DefaultOpenAIModel
		// Allow model override for custom endpoints
		if customModel := envOr("OPENAI_MODEL", "MODEL"); customModel != "" {
			model = customModel
		}

		return ProviderConfig{
			Provider: "openai",
			Model:    model,
			APIKey:   apiKey,
			BaseURL:  baseURL,
			Timeout:  parseTimeoutFromEnv("OPENAI_TIMEOUT", 30*time.Second),
		}
	}

	// Priority 2: OpenAI API
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		return ProviderConfig{
			Provider: "openai",
			Model:    DefaultOpenAIModel,
			APIKey:   apiKey,
			Timeout:  parseTimeoutFromEnv("OPENAI_TIMEOUT", 30*time.Second),
		}
	}

	// Priority 3: Gemini API
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		model := DefaultGeminiModel
		if customModel := os.Getenv("GEMINI_MODEL"); customModel != "" {
			model = customModel
		}

		return ProviderConfig{
			Provider: "gemini",
			Model:    model,
			APIKey:   apiKey,
			Timeout:  parseTimeoutFromEnv("GEMINI_TIMEOUT", 30*time.Second),
		}
	}

	// Priority 4: DeepSeek API
	if apiKey := os.Getenv("DEEPSEEK_API_KEY"); apiKey != "" {
		model := DefaultDeepSeekModel
		if customModel := os.Getenv("DEEPSEEK_MODEL"); customModel != "" {
			model = customModel
		}

		return ProviderConfig{
			Provider: "deepseek",
			Model:    model,
			APIKey:   apiKey,
			Timeout:  parseTimeoutFromEnv("DEEPSEEK_TIMEOUT", 30*time.Second),
		}
	}

	// Priority 5: OpenRouter API
	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		model := envOr("OPENROUTER_MODEL", "MODEL")
		if model == "" {
			model = "openai/" + DefaultOpenAIModel
		}

		return ProviderConfig{
			Provider: "openrouter",
			Model:    model,
			APIKey:   apiKey,
			Timeout:  parseTimeoutFromEnv("OPENROUTER_TIMEOUT", 30*time.Second),
		}
	}

	// Default: Ollama (local, free)
	return ProviderConfig{
		Provider: "ollama",
		Model:    DefaultOllamaModel,
		BaseURL:  DefaultOllamaBaseURL,
		Timeout:  parseTimeoutFromEnv("OLLAMA_TIMEOUT", 60*time.Second),
	}
}
