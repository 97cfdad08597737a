// Message types and functionality
package gateway

import (
	"fmt"

	"github.com/google/uuid"
)

// Message represents a single conversation turn.
//
// Every message carries a stable identity assigned at creation time. The
// identity is what makes PersistMessages idempotent: persisting the same
// message twice stores it once, while two messages with identical text remain
// distinct turns.
type Message struct {
	ID         string     `json:"id,omitempty"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Role defines the role of a message sender
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// NewMessage creates a Message with the given role and text content,
// assigning a fresh identity.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message. Tool calls requested by
// the model, if any, are attached in order.
func NewAssistantMessage(content string, toolCalls ...ToolCall) Message {
	m := NewMessage(RoleAssistant, content)
	if len(toolCalls) > 0 {
		m.ToolCalls = make([]ToolCall, len(toolCalls))
		copy(m.ToolCalls, toolCalls)
	}
	return m
}

// NewToolResultMessage creates a tool-role message carrying the result of an
// executed tool call. toolCallID must match the ID of the originating call.
func NewToolResultMessage(toolCallID, name, content string) Message {
	m := NewMessage(RoleTool, content)
	m.ToolCallID = toolCallID
	m.Name = name
	return m
}

// HasToolCalls checks if the message contains any tool calls
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// GetToolCallByName returns the first tool call with the specified name
func (m Message) GetToolCallByName(name string) (*ToolCall, bool) {
	for _, toolCall := range m.ToolCalls {
		if toolCall.Function.Name == name {
			return &toolCall, true
		}
	}
	return nil, false
}

// Validate checks the structural rules a message must satisfy before it can
// be sent or persisted.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
	default:
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	if m.Role == RoleTool && m.ToolCallID == "" {
		return fmt.Errorf("tool message missing tool_call_id")
	}
	return nil
}

// EnsureID assigns a fresh identity when the message does not carry one.
// Callers that construct Message values literally (rather than through the
// constructors) should pass them through EnsureID before persisting.
func (m *Message) EnsureID() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
}

// Clone creates a deep copy of the message, including all tool calls.
// Modifications to the copy will not affect the original, preventing shared
// mutable state between the caller and the gateway's conversation history.
func (m Message) Clone() Message {
	clone := Message{
		ID:         m.ID,
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}
	if len(m.ToolCalls) > 0 {
		clone.ToolCalls = make([]ToolCall, 0, len(m.ToolCalls))
		for _, toolCall := range m.ToolCalls {
			clone.ToolCalls = append(clone.ToolCalls, toolCall.Clone())
		}
	}
	return clone
}

// CloneMessages deep-copies a message sequence preserving turn order.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	cloned := make([]Message, 0, len(messages))
	for _, m := range messages {
		cloned = append(cloned, m.Clone())
	}
	return cloned
}
