// Package mcp discovers tool schemas from the MCP server processes named
// by mcp-shaped tool descriptors.
//
// The model-runner server launches and drives MCP tools itself; the client
// never executes them. Discovery is still useful on the client side: it
// turns an opaque {type: "mcp", command, args} descriptor into concrete
// function-shaped descriptors with real JSON schemas, which can be offered
// to the model alongside the forwarded MCP descriptor.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rhuss/dmr-go/pkg/api"
	"github.com/rhuss/dmr-go/pkg/debug"
)

// Session is a scoped connection to one MCP server process. Close it when
// done; the process lives for the duration of the session.
type Session struct {
	label   string
	session *mcp.ClientSession
}

// Connect launches the process named by an mcp-shaped tool descriptor and
// performs the MCP handshake over its stdio.
func Connect(ctx context.Context, tool api.Tool) (*Session, error) {
	if tool.Type != "mcp" || tool.Command == "" {
		return nil, fmt.Errorf("descriptor %q is not an mcp tool with a command", tool.Name())
	}

	cmd := exec.CommandContext(ctx, tool.Command, tool.Args...)
	return ConnectTransport(ctx, tool.ServerLabel, &mcp.CommandTransport{Command: cmd})
}

// ConnectTransport performs the MCP handshake over the given transport.
// Used directly by tests; Connect derives the transport from a descriptor.
func ConnectTransport(ctx context.Context, label string, transport mcp.Transport) (*Session, error) {
	client := mcp.NewClient(
		&mcp.Implementation{Name: "dmr-go", Version: "1.0.0"},
		nil,
	)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %q: %w", label, err)
	}

	debug.Log("mcp", "connected", "server", label)
	return &Session{label: label, session: session}, nil
}

// Tools lists the server's tools as function-shaped api.Tool descriptors.
func (s *Session) Tools(ctx context.Context) ([]api.Tool, error) {
	var out []api.Tool
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", s.label, err)
		}
		converted, convErr := convertTool(tool)
		if convErr != nil {
			return nil, fmt.Errorf("converting tool %q from %q: %w", tool.Name, s.label, convErr)
		}
		out = append(out, converted)
	}
	return out, nil
}

// Close terminates the session and, for command transports, the server
// process with it.
func (s *Session) Close() error {
	return s.session.Close()
}

func convertTool(t *mcp.Tool) (api.Tool, error) {
	fn := &api.ToolFunction{
		Name:        t.Name,
		Description: t.Description,
	}

	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return api.Tool{}, fmt.Errorf("marshalling input schema: %w", err)
		}
		var params map[string]any
		if err := json.Unmarshal(data, &params); err != nil {
			return api.Tool{}, fmt.Errorf("decoding input schema: %w", err)
		}
		fn.Parameters = params
	}

	return api.Tool{Type: "function", Function: fn}, nil
}
