package factory

import (
	"github.com/halcyon-ai/go-gateway/pkg/gateway"
	"github.com/halcyon-ai/go-gateway/pkg/providers/bedrock"
	"github.com/halcyon-ai/go-gateway/pkg/providers/deepseek"
	"github.com/halcyon-ai/go-gateway/pkg/providers/gemini"
	"github.com/halcyon-ai/go-gateway/pkg/providers/mock"
	"github.com/halcyon-ai/go-gateway/pkg/providers/ollama"
	"github.com/halcyon-ai/go-gateway/pkg/providers/openai"
	"github.com/halcyon-ai/go-gateway/pkg/providers/openrouter"
)

func init() {
	// Register the OpenAI provider
	RegisterProvider("openai", func(config gateway.ProviderConfig) (gateway.Provider, error) {
		return openai.NewClient(config)
	})

	// Register the Gemini provider
	RegisterProvider("gemini", func(config gateway.ProviderConfig) (gateway.Provider, error) {
		return gemini.NewClient(config)
	})

	// Register the DeepSeek provider
	RegisterProvider("deepseek", func(config gateway.ProviderConfig) (gateway.Provider, error) {
		return deepseek.NewClient(config)
	})

	// Register the OpenRouter provider
	RegisterProvider("openrouter", func(config gateway.ProviderConfig) (gateway.Provider, error) {
		return openrouter.NewClient(config)
	})

	// Register the Bedrock provider
	RegisterProvider("bedrock", func(config gateway.ProviderConfig) (gateway.Provider, error) {
		return bedrock.NewClient(config)
	})

	// Register the Ollama provider
	RegisterProvider("ollama", func(config gateway.ProviderConfig) (gateway.Provider, error) {
		return ollama.NewClient(config)
	})

	// Register the mock provider
	RegisterProvider("mock", func(config gateway.ProviderConfig) (gateway.Provider, error) {
		return mock.NewClient(config.Model), nil
	})
	RegisterProvider("mocked", func(config gateway.ProviderConfig) (gateway.Provider, error) {
		return mock.NewClient(config.Model), nil
	})
}
