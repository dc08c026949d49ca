// Package api defines the shared wire types and the error taxonomy for the
// dmr-go client.
//
// The model-runner API is OpenAI-compatible but loosely typed: request
// payloads and responses are JSON objects whose field set depends on the
// backing engine. Only the structures the client itself inspects (messages
// and tool descriptors) get Go types; everything else travels as
// map[string]any.
package api

// Message is one turn of a chat conversation. Role is one of "user",
// "assistant", "system" or "tool"; no validation beyond structural shape
// is performed.
type Message struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []map[string]any `json:"tool_calls,omitempty"`
}

// Tool describes a capability offered to the model. Two shapes are in use:
//
//   - OpenAI function style: {type: "function", function: {name, ...}}
//   - MCP style: {type: "mcp", server_label, server_description, command, args}
//
// The MCP shape is a model-runner extension: it names an external
// tool-execution process which the server launches itself. The client only
// forwards it.
type Tool struct {
	Type              string        `json:"type,omitempty"`
	Function          *ToolFunction `json:"function,omitempty"`
	ServerLabel       string        `json:"server_label,omitempty"`
	ServerDescription string        `json:"server_description,omitempty"`
	Command           string        `json:"command,omitempty"`
	Args              []string      `json:"args,omitempty"`
}

// ToolFunction is the OpenAI-style function declaration inside a Tool.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Name returns a display name for the tool regardless of its shape:
// function.name for function tools, falling back to server_label and then
// to the type for MCP-style descriptors. Returns "" if the descriptor
// carries none of the three.
func (t Tool) Name() string {
	if t.Function != nil && t.Function.Name != "" {
		return t.Function.Name
	}
	if t.ServerLabel != "" {
		return t.ServerLabel
	}
	return t.Type
}
