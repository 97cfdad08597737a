package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageConstructors(t *testing.T) {
	t.Run("assigns_stable_identity", func(t *testing.T) {
		m1 := NewUserMessage("hello")
		m2 := NewUserMessage("hello")

		require.NotEmpty(t, m1.ID)
		require.NotEmpty(t, m2.ID)
		// Identical text, distinct turns
		assert.NotEqual(t, m1.ID, m2.ID)
		assert.Equal(t, RoleUser, m1.Role)
		assert.Equal(t, "hello", m1.Content)
	})

	t.Run("roles", func(t *testing.T) {
		assert.Equal(t, RoleSystem, NewSystemMessage("x").Role)
		assert.Equal(t, RoleUser, NewUserMessage("x").Role)
		assert.Equal(t, RoleAssistant, NewAssistantMessage("x").Role)
		assert.Equal(t, RoleTool, NewToolResultMessage("call_1", "search", "{}").Role)
	})

	t.Run("tool_result_carries_call_id", func(t *testing.T) {
		m := NewToolResultMessage("call_123", "calculate", `{"result": 8}`)
		assert.Equal(t, "call_123", m.ToolCallID)
		assert.Equal(t, "calculate", m.Name)
		assert.Equal(t, `{"result": 8}`, m.Content)
	})

	t.Run("assistant_with_tool_calls", func(t *testing.T) {
		call := ToolCall{
			ID:   "call_123",
			Type: "function",
			Function: ToolCallFunction{
				Name:      "calculate",
				Arguments: `{"operation": "add", "a": 5, "b": 3}`,
			},
		}
		m := NewAssistantMessage("", call)
		require.True(t, m.HasToolCalls())
		found, ok := m.GetToolCallByName("calculate")
		require.True(t, ok)
		assert.Equal(t, "call_123", found.ID)
	})
}

func TestMessageClone(t *testing.T) {
	original := NewAssistantMessage("I'll help you with that calculation.", ToolCall{
		ID:   "call_123",
		Type: "function",
		Function: ToolCallFunction{
			Name:      "calculate",
			Arguments: `{"operation": "add", "a": 5, "b": 3}`,
		},
	})

	copied := original.Clone()

	// Verify basic properties are copied, identity included
	assert.Equal(t, original.ID, copied.ID)
	assert.Equal(t, original.Role, copied.Role)
	assert.Equal(t, original.Content, copied.Content)
	require.Len(t, copied.ToolCalls, 1)

	// Verify independence - modify the copy
	copied.Content = "modified"
	copied.ToolCalls[0].Function.Arguments = `{"changed": true}`

	assert.Equal(t, "I'll help you with that calculation.", original.Content)
	assert.Equal(t, `{"operation": "add", "a": 5, "b": 3}`, original.ToolCalls[0].Function.Arguments)
}

func TestCloneMessages(t *testing.T) {
	msgs := []Message{
		NewSystemMessage("be helpful"),
		NewUserMessage("hi"),
	}

	cloned := CloneMessages(msgs)
	require.Len(t, cloned, 2)

	cloned[1].Content = "changed"
	assert.Equal(t, "hi", msgs[1].Content)

	// Turn order preserved
	assert.Equal(t, RoleSystem, cloned[0].Role)
	assert.Equal(t, RoleUser, cloned[1].Role)

	assert.Nil(t, CloneMessages(nil))
}

func TestMessageValidate(t *testing.T) {
	assert.NoError(t, NewUserMessage("ok").Validate())

	bad := Message{Role: "narrator", Content: "x"}
	assert.Error(t, bad.Validate())

	// Tool messages need the originating call ID
	orphan := Message{Role: RoleTool, Content: "result"}
	assert.Error(t, orphan.Validate())
	assert.NoError(t, NewToolResultMessage("call_1", "f", "result").Validate())
}

func TestMessageEnsureID(t *testing.T) {
	m := Message{Role: RoleUser, Content: "literal construction"}
	require.Empty(t, m.ID)

	m.EnsureID()
	first := m.ID
	require.NotEmpty(t, first)

	// Idempotent once assigned
	m.EnsureID()
	assert.Equal(t, first, m.ID)
}
