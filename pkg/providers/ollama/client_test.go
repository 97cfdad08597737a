package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

func TestClient_Complete(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":             "llama3.1",
			"message":           map[string]string{"role": "assistant", "content": "Hello from local."},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 12,
			"eval_count":        7,
		})
	}))
	defer server.Close()

	client, err := NewClient(gateway.ProviderConfig{
		Provider: "ollama",
		Model:    "llama3.1",
		BaseURL:  server.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	completion, err := client.Complete(context.Background(), gateway.CompletionRequest{
		Messages: []gateway.Message{
			gateway.NewSystemMessage("Be brief."),
			gateway.NewUserMessage("Say hello."),
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if completion.Message.Content != "Hello from local." {
		t.Errorf("content = %q", completion.Message.Content)
	}
	if completion.FinishReason != gateway.FinishReasonStop {
		t.Errorf("finish reason = %q", completion.FinishReason)
	}
	if completion.Usage.InputTokens != 12 || completion.Usage.OutputTokens != 7 || completion.Usage.TotalTokens != 19 {
		t.Errorf("usage = %+v", completion.Usage)
	}

	if gotBody["model"] != "llama3.1" {
		t.Errorf("request model = %v", gotBody["model"])
	}
	if stream, ok := gotBody["stream"].(bool); !ok || stream {
		t.Errorf("request stream = %v, want false", gotBody["stream"])
	}
	messages, ok := gotBody["messages"].([]interface{})
	if !ok || len(messages) != 2 {
		t.Fatalf("request messages = %v, want 2 turns", gotBody["messages"])
	}
	first := messages[0].(map[string]interface{})
	if first["role"] != "system" || first["content"] != "Be brief." {
		t.Errorf("first message = %v", first)
	}
}

func TestClient_Complete_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "model 'missing' not found"})
	}))
	defer server.Close()

	client, err := NewClient(gateway.ProviderConfig{Provider: "ollama", Model: "missing", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Complete(context.Background(), gateway.CompletionRequest{
		Messages: []gateway.Message{gateway.NewUserMessage("hi")},
	})
	var provErr *gateway.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if provErr.Code != "model_not_found" || provErr.StatusCode != 404 {
		t.Errorf("error = %+v, want model_not_found/404", provErr)
	}
}

func TestClient_Complete_DaemonUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(gateway.ProviderConfig{Provider: "ollama", Model: "llama3.1", BaseURL: url})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Complete(context.Background(), gateway.CompletionRequest{
		Messages: []gateway.Message{gateway.NewUserMessage("hi")},
	})
	var provErr *gateway.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if provErr.Code != "connection_error" {
		t.Errorf("error code = %q, want connection_error", provErr.Code)
	}
}

func TestClient_RejectsTools(t *testing.T) {
	client, err := NewClient(gateway.ProviderConfig{Provider: "ollama", Model: "llama3.1"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.convertRequest(gateway.CompletionRequest{
		Messages: []gateway.Message{gateway.NewUserMessage("hi")},
		Tools: []gateway.Tool{
			gateway.NewTool("noop", "does nothing", map[string]interface{}{"type": "object"}),
		},
	})
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("error = %v, want gateway.Error", err)
	}
	if gwErr.Kind != gateway.KindValidation {
		t.Errorf("error kind = %q, want validation", gwErr.Kind)
	}
}

func TestClient_FlattensToolCallHistory(t *testing.T) {
	client := &Client{model: "llama3.1"}

	call := gateway.ToolCall{
		ID:   "call_1",
		Type: "function",
		Function: gateway.ToolCallFunction{
			Name:      "lookup",
			Arguments: `{"q":"go"}`,
		},
	}
	messages := client.convertMessages([]gateway.Message{
		gateway.NewAssistantMessage("Searching.", call),
	})

	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	content := messages[0].Content
	for _, want := range []string{"Searching.", "lookup", `{"q":"go"}`} {
		if !strings.Contains(content, want) {
			t.Errorf("flattened content %q missing %q", content, want)
		}
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(gateway.ProviderConfig{Provider: "ollama"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.model != gateway.DefaultOllamaModel {
		t.Errorf("model = %q, want default", client.model)
	}
	if client.baseURL != gateway.DefaultOllamaBaseURL {
		t.Errorf("baseURL = %q, want default", client.baseURL)
	}
}

func TestNewClient_RejectsBadScheme(t *testing.T) {
	_, err := NewClient(gateway.ProviderConfig{Provider: "ollama", BaseURL: "localhost:11434"})
	if err == nil {
		t.Fatal("NewClient() with schemeless URL should fail")
	}
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gateway.KindConfiguration {
		t.Errorf("error = %v, want configuration error", err)
	}
}
