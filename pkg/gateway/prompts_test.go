package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptsConfig_GetSystemPrompts(t *testing.T) {
	tests := []struct {
		name     string
		config   PromptsConfig
		expected string
	}{
		{
			name:     "empty system prompts",
			config:   PromptsConfig{System: nil},
			expected: "",
		},
		{
			name:     "single system prompt",
			config:   PromptsConfig{System: []string{"You are a helpful assistant."}},
			expected: "You are a helpful assistant.",
		},
		{
			name: "multiple system prompts",
			config: PromptsConfig{System: []string{
				"You are a helpful assistant.",
				"Always be polite.",
			}},
			expected: "You are a helpful assistant.\nAlways be polite.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.GetSystemPrompts())
		})
	}
}

func TestPromptsConfig_Predicates(t *testing.T) {
	empty := PromptsConfig{}
	assert.False(t, empty.HasSystemPrompts())
	assert.False(t, empty.HasUserPrompts())

	full := PromptsConfig{System: []string{"s"}, User: []string{"u"}}
	assert.True(t, full.HasSystemPrompts())
	assert.True(t, full.HasUserPrompts())
	assert.Equal(t, "u", full.GetUserPrompts())
}

func TestPromptTemplateRender(t *testing.T) {
	pt := NewPromptTemplate("Hello {{.Name}}, you have {{.Count}} new results.")

	rendered, err := pt.Render(map[string]any{"Name": "agent", "Count": 3})
	require.NoError(t, err)
	assert.Equal(t, "Hello agent, you have 3 new results.", rendered)
}

func TestPromptTemplateRenderInvalid(t *testing.T) {
	pt := NewPromptTemplate("Hello {{.Name")
	_, err := pt.Render(map[string]any{"Name": "agent"})
	assert.Error(t, err)
}

func TestPromptTemplateRenderWithJSONSchemaFor(t *testing.T) {
	type Verdict struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence" minimum:"0" maximum:"1"`
	}

	pt := NewPromptTemplate("Respond as JSON matching this schema:\n{{.JSONSchema}}")

	rendered, err := pt.RenderWithJSONSchemaFor(nil, Verdict{})
	require.NoError(t, err)
	assert.Contains(t, rendered, "answer")
	assert.Contains(t, rendered, "confidence")
	// text/template must not HTML-escape the schema JSON
	assert.Contains(t, rendered, `"properties"`)
}
