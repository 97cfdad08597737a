package factory

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
	"github.com/halcyon-ai/go-gateway/pkg/gateways/controlplane"
	"github.com/halcyon-ai/go-gateway/pkg/gateways/direct"
)

// DefaultProvider is used when the configuration does not name one.
const DefaultProvider = "openai"

// Factory creates provider adapters based on configuration
type Factory struct{}

// New creates a new provider factory
func New() *Factory {
	return &Factory{}
}

// CreateProvider creates a provider adapter based on the configuration.
func (f *Factory) CreateProvider(config gateway.ProviderConfig) (gateway.Provider, error) {
	provider := config.Provider
	if provider == "" {
		provider = DefaultProvider
	}
	provider = strings.ToLower(provider)

	if config.Model == "" {
		return nil, &gateway.Error{
			Code:    "missing_model",
			Message: "model is required",
			Kind:    gateway.KindValidation,
		}
	}

	constructor, exists := GetProvider(provider)
	if !exists {
		return nil, &gateway.Error{
			Code:    "unsupported_provider",
			Message: fmt.Sprintf("unsupported provider: %s", provider),
			Kind:    gateway.KindValidation,
		}
	}

	return constructor(config)
}

// NewGatewayFromEnv builds the gateway variant the environment calls for:
// the control-plane client when session credentials are present, otherwise a
// direct gateway around whichever provider the environment configures. A
// half-configured control plane (token without URL, or the reverse) is an
// error rather than a silent fallback to in-process credentials.
func NewGatewayFromEnv() (gateway.Gateway, error) {
	if controlPlaneConfigured() {
		cfg, err := gateway.FromEnv()
		if err != nil {
			return nil, err
		}
		return controlplane.New(cfg)
	}
	return NewDirectGatewayFromEnv()
}

// NewDirectGatewayFromEnv builds a direct gateway around the provider
// selected by gateway.ProviderConfigFromEnv, honoring COST_CAP_USD,
// SESSION_ID, and WORKSPACE_ROOT when set.
func NewDirectGatewayFromEnv() (gateway.Gateway, error) {
	provider, err := New().CreateProvider(gateway.ProviderConfigFromEnv())
	if err != nil {
		return nil, err
	}

	var opts direct.Options
	if capStr := os.Getenv("COST_CAP_USD"); capStr != "" {
		capUSD, parseErr := strconv.ParseFloat(capStr, 64)
		if parseErr != nil || capUSD < 0 {
			_ = provider.Close()
			return nil, &gateway.Error{
				Code:    "invalid_cost_cap",
				Message: "COST_CAP_USD must be a non-negative number, got " + capStr,
				Kind:    gateway.KindConfiguration,
			}
		}
		opts.CostCapUSD = capUSD
	}
	if sessionID := firstEnv("SESSION_ID", "HALCYON_SESSION_ID"); sessionID != "" {
		opts.SessionID = sessionID
	}
	if root := os.Getenv("WORKSPACE_ROOT"); root != "" {
		opts.WorkspaceRoot = root
	}

	return direct.New(provider, opts)
}

// controlPlaneConfigured reports whether the environment carries any
// control-plane session setting.
func controlPlaneConfigured() bool {
	return firstEnv(
		"SESSION_TOKEN", "HALCYON_SESSION_TOKEN",
		"CONTROL_PLANE_URL", "HALCYON_CONTROL_PLANE_URL",
	) != ""
}

func firstEnv(vars ...string) string {
	for _, v := range vars {
		if val := os.Getenv(v); val != "" {
			return val
		}
	}
	return ""
}
