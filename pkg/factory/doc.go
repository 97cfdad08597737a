// Package factory provides provider registration and gateway construction.
//
// Importing the package registers every built-in provider adapter with a
// thread-safe registry; CreateProvider then builds adapters by name, and
// NewGatewayFromEnv assembles the right gateway variant for the current
// environment (control-plane when session credentials are present, direct
// otherwise).
//
// Example usage:
//
//	import (
//	    "github.com/halcyon-ai/go-gateway/pkg/factory"
//	    "github.com/halcyon-ai/go-gateway/pkg/gateway"
//	)
//
//	provider, err := factory.New().CreateProvider(gateway.ProviderConfig{
//	    Provider: "openai",
//	    Model:    "gpt-4o-mini",
//	    APIKey:   "your-api-key",
//	})
package factory
