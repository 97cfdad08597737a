// Tool declaration and tool call types
package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/swaggest/jsonschema-go"
)

// Tool represents a function tool that can be called by the LLM
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction defines the function specification for a tool
type ToolFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

// ToolCall represents a tool call requested by the LLM. The gateway never
// executes tool calls; it surfaces them for the caller to run.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction represents the function call details
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Clone returns an independent copy of the tool call.
func (t ToolCall) Clone() ToolCall {
	return ToolCall{
		ID:   t.ID,
		Type: t.Type,
		Function: ToolCallFunction{
			Name:      t.Function.Name,
			Arguments: t.Function.Arguments,
		},
	}
}

// NewTool declares a function tool with a JSON-schema parameter object.
func NewTool(name, description string, parameters interface{}) Tool {
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// NewToolFromStruct declares a function tool whose parameter schema is
// reflected from a Go struct using the swaggest/jsonschema-go library.
//
// Example:
//
//	type SearchArgs struct {
//	    Query string `json:"query" required:"true" description:"Search query"`
//	    Limit int    `json:"limit" minimum:"1" maximum:"100"`
//	}
//	tool, err := NewToolFromStruct("search", "Search the corpus", SearchArgs{})
func NewToolFromStruct(name, description string, argsType interface{}) (Tool, error) {
	params, err := SchemaFromStruct(argsType)
	if err != nil {
		return Tool{}, fmt.Errorf("failed to generate schema for tool %q: %w", name, err)
	}
	return NewTool(name, description, params), nil
}

// SchemaFromStruct generates a JSON Schema as map[string]interface{} from a
// Go struct. The map form is what provider wire formats expect for tool
// parameter objects.
func SchemaFromStruct(structType interface{}) (map[string]interface{}, error) {
	reflector := jsonschema.Reflector{}

	schema, err := reflector.Reflect(structType)
	if err != nil {
		return nil, fmt.Errorf("failed to reflect struct to JSON schema: %w", err)
	}

	// Convert to JSON and back to get a map[string]interface{}
	jsonBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema to JSON: %w", err)
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema JSON to map: %w", err)
	}

	return schemaMap, nil
}

// ToolChoice controls whether and how the model may call tools.
//
// The zero value means "unspecified" and is omitted from wire payloads;
// providers then apply their own default (auto when tools are present).
type ToolChoice struct {
	Mode ToolChoiceMode
	// Name is the function the model must call when Mode is
	// ToolChoiceModeFunction.
	Name string
}

// ToolChoiceMode enumerates the tool-choice strategies.
type ToolChoiceMode string

const (
	ToolChoiceModeAuto     ToolChoiceMode = "auto"
	ToolChoiceModeNone     ToolChoiceMode = "none"
	ToolChoiceModeRequired ToolChoiceMode = "required"
	ToolChoiceModeFunction ToolChoiceMode = "function"
)

var (
	// ToolChoiceAuto lets the model decide whether to call tools.
	ToolChoiceAuto = ToolChoice{Mode: ToolChoiceModeAuto}
	// ToolChoiceNone forbids tool calls for this invocation.
	ToolChoiceNone = ToolChoice{Mode: ToolChoiceModeNone}
	// ToolChoiceRequired forces the model to call at least one tool.
	ToolChoiceRequired = ToolChoice{Mode: ToolChoiceModeRequired}
)

// ToolChoiceFunction forces the model to call the named tool.
func ToolChoiceFunction(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceModeFunction, Name: name}
}

// IsZero reports whether the choice is unspecified. Used by encoding/json
// for the omitzero option.
func (tc ToolChoice) IsZero() bool {
	return tc.Mode == "" && tc.Name == ""
}

// Validate checks the choice is one of the supported strategies.
func (tc ToolChoice) Validate() error {
	switch tc.Mode {
	case "", ToolChoiceModeAuto, ToolChoiceModeNone, ToolChoiceModeRequired:
		return nil
	case ToolChoiceModeFunction:
		if tc.Name == "" {
			return fmt.Errorf("tool choice mode %q requires a function name", tc.Mode)
		}
		return nil
	default:
		return fmt.Errorf("invalid tool choice mode: %q", tc.Mode)
	}
}

// MarshalJSON emits the OpenAI-compatible wire form: a bare string for the
// auto/none/required strategies, or {"type":"function","function":{"name":...}}
// for a forced named call.
func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	switch tc.Mode {
	case "", ToolChoiceModeAuto, ToolChoiceModeNone, ToolChoiceModeRequired:
		mode := tc.Mode
		if mode == "" {
			mode = ToolChoiceModeAuto
		}
		return json.Marshal(string(mode))
	case ToolChoiceModeFunction:
		return json.Marshal(map[string]interface{}{
			"type": "function",
			"function": map[string]string{
				"name": tc.Name,
			},
		})
	default:
		return nil, fmt.Errorf("invalid tool choice mode: %q", tc.Mode)
	}
}

// UnmarshalJSON accepts both wire forms produced by MarshalJSON.
func (tc *ToolChoice) UnmarshalJSON(data []byte) error {
	var mode string
	if err := json.Unmarshal(data, &mode); err == nil {
		tc.Mode = ToolChoiceMode(mode)
		tc.Name = ""
		return nil
	}

	var forced struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &forced); err != nil {
		return fmt.Errorf("invalid tool choice payload: %w", err)
	}
	tc.Mode = ToolChoiceModeFunction
	tc.Name = forced.Function.Name
	return nil
}
