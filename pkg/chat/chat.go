package chat

import (
	"encoding/json"
	"fmt"
)

const (
	ChatRoleUser   = "user"      // Rendered working state
	ChatRoleAgent  = "assistant" // Model output
	ChatRoleSystem = "system"    // Fixed instructions
)

// ChatMessage represents a single chat message in the conversation
// sent to the LLM.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Tool describes a function the model may call. Parameters is a JSON schema
// object.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall is a model request to invoke a Tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DecodeArguments unmarshals the call's arguments into v.
func (tc ToolCall) DecodeArguments(v interface{}) error {
	args := tc.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", tc.Name, err)
	}
	return nil
}

// ChatRequest is a provider-agnostic completion request.
type ChatRequest struct {
	Model       string        `json:"model,omitempty"` // Empty selects the provider default
	Messages    []ChatMessage `json:"messages"`
	Tools       []Tool        `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	JSONOutput  bool          `json:"json_output,omitempty"` // Ask for a JSON object response
}

func (cr *ChatRequest) Validate() error {
	if len(cr.Messages) == 0 {
		return fmt.Errorf("messages cannot be empty")
	}
	seen := make(map[string]bool, len(cr.Tools))
	for _, t := range cr.Tools {
		if t.Name == "" {
			return fmt.Errorf("tool name cannot be empty")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tool %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// ChatResponse is a provider-agnostic completion result.
type ChatResponse struct {
	Message   string     `json:"message,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Model     string     `json:"model,omitempty"`
}

// Temperature returns a pointer for ChatRequest.Temperature.
func Temperature(t float64) *float64 {
	return &t
}
