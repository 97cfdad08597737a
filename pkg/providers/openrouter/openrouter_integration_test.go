package openrouter

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

func integrationConfig(t *testing.T) gateway.ProviderConfig {
	t.Helper()
	if os.Getenv("OPENROUTER_API_KEY") == "" {
		t.Skip("OPENROUTER_API_KEY not set, skipping real integration test")
	}

	config := gateway.ProviderConfig{
		Provider: "openrouter",
		Model:    TestingModel(true),
		APIKey:   os.Getenv("OPENROUTER_API_KEY"),
	}
	if baseURL := os.Getenv("OPENROUTER_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}
	return config
}

// TestOpenRouterCompleteIntegration exercises a basic completion against the
// real OpenRouter API
func TestOpenRouterCompleteIntegration(t *testing.T) {
	config := integrationConfig(t)

	client, err := NewClient(config)
	require.NoError(t, err)
	require.NotNil(t, client)
	defer func() { _ = client.Close() }()

	maxTokens := 50 // Keep response short for faster tests
	req := gateway.CompletionRequest{
		Messages: []gateway.Message{
			gateway.NewUserMessage("Hello! Please respond with a short greeting."),
		},
		MaxTokens: &maxTokens,
	}

	completion, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, completion)

	t.Logf("Using model: %s", config.Model)
	t.Logf("Response model: %s", completion.Model)
	t.Logf("Finish reason: %s", completion.FinishReason)
	t.Logf("Usage: %+v", completion.Usage)

	require.NotEmpty(t, completion.Message.Content)
	assert.Equal(t, gateway.RoleAssistant, completion.Message.Role)
	assert.Greater(t, completion.Usage.TotalTokens, 0)
}

// TestOpenRouterListModelsIntegration verifies the model catalog is reachable
func TestOpenRouterListModelsIntegration(t *testing.T) {
	config := integrationConfig(t)

	client, err := NewClient(config)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, models)

	for _, model := range models[:min(3, len(models))] {
		t.Logf("Model: %s (free=%v)", model.ID, model.Free)
		assert.NotEmpty(t, model.ID)
	}
}

func TestOpenRouterNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(gateway.ProviderConfig{Provider: "openrouter", Model: FallbackTestingModel})
	require.Error(t, err)

	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gateway.KindConfiguration, gwErr.Kind)
}
