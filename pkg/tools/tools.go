// Package tools builds tool descriptors for chat completion requests.
package tools

import "github.com/rhuss/dmr-go/pkg/api"

// Function returns an OpenAI-style function tool descriptor. parameters is
// a JSON Schema object describing the arguments; nil is allowed for tools
// without arguments.
func Function(name, description string, parameters map[string]any) api.Tool {
	return api.Tool{
		Type: "function",
		Function: &api.ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// MCP returns an mcp-shaped tool descriptor naming an external
// tool-execution process. The server launches the command itself; the
// client only forwards the descriptor.
func MCP(label, description, command string, args ...string) api.Tool {
	return api.Tool{
		Type:              "mcp",
		ServerLabel:       label,
		ServerDescription: description,
		Command:           command,
		Args:              args,
	}
}

// Names returns the display names of all descriptors that have one,
// regardless of shape.
func Names(ts []api.Tool) []string {
	var names []string
	for _, t := range ts {
		if n := t.Name(); n != "" {
			names = append(names, n)
		}
	}
	return names
}
