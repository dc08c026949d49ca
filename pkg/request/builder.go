// Package request assembles outgoing JSON payloads for the model-runner API.
//
// Payloads are generic string-keyed maps: endpoint methods contribute their
// named fields (model, messages, prompt, input), arbitrary caller options
// are merged on top, and the tool_choice directive is resolved client-side
// before serialization because the server does not understand it.
package request

import (
	"fmt"
	"strings"

	"github.com/rhuss/dmr-go/pkg/api"
)

// Tool choice values understood by the emulation layer.
const (
	ToolChoiceAuto   = "auto"
	ToolChoiceNone   = "none"
	ToolChoiceAlways = "always"
)

// Field is a named payload entry contributed by an endpoint method.
type Field struct {
	Key   string
	Value any
}

// Build assembles a payload from the model name, the endpoint's named
// fields, and the caller's generic options. Options are merged shallowly
// after the named fields, so the last caller-supplied value for a key wins.
func Build(model string, opts map[string]any, fields ...Field) map[string]any {
	payload := map[string]any{"model": model}
	for _, f := range fields {
		payload[f.Key] = f.Value
	}
	for k, v := range opts {
		payload[k] = v
	}
	return payload
}

// ApplyToolChoice resolves the tool_choice directive in place:
//
//   - "none": the tools field is removed entirely; tools never reach the
//     server.
//   - "always": the names of all offered tools are appended to the content
//     of the last user message as an instruction to use them. If no user
//     message exists, nothing is mutated and no error is raised.
//   - "auto" or unset: no mutation; tools are sent as-is.
//
// The tool_choice key itself is always removed afterwards: it is a
// client-only directive the server would reject as unknown.
//
// Messages are cloned before mutation. A caller who retains a reference to
// the message slice it passed in never observes the appended instruction.
func ApplyToolChoice(payload map[string]any) {
	choice, _ := payload["tool_choice"].(string)

	switch choice {
	case ToolChoiceNone:
		delete(payload, "tools")

	case ToolChoiceAlways:
		names := toolNames(payload["tools"])
		if len(names) > 0 {
			instruction := fmt.Sprintf(" Use tool %s to respond strictly use tool.", strings.Join(names, ", "))
			if msgs, ok := appendToLastUser(payload["messages"], instruction); ok {
				payload["messages"] = msgs
			}
		}
	}

	delete(payload, "tool_choice")
}

// toolNames extracts a display name from every tool descriptor in the list,
// tolerating both typed and generic-map descriptors. The extraction order is
// function.name, then server_label, then type: MCP-shaped descriptors have
// no function field, and failing on them would break the documented
// tool_choice="always" + MCP usage.
func toolNames(tools any) []string {
	var names []string
	add := func(name string) {
		if name != "" {
			names = append(names, name)
		}
	}

	switch list := tools.(type) {
	case []api.Tool:
		for _, t := range list {
			add(t.Name())
		}
	case []map[string]any:
		for _, m := range list {
			add(mapToolName(m))
		}
	case []any:
		for _, item := range list {
			switch t := item.(type) {
			case api.Tool:
				add(t.Name())
			case *api.Tool:
				add(t.Name())
			case map[string]any:
				add(mapToolName(t))
			}
		}
	}
	return names
}

func mapToolName(m map[string]any) string {
	if fn, ok := m["function"].(map[string]any); ok {
		if name, ok := fn["name"].(string); ok && name != "" {
			return name
		}
	}
	if label, ok := m["server_label"].(string); ok && label != "" {
		return label
	}
	name, _ := m["type"].(string)
	return name
}

// appendToLastUser appends suffix to the content of the last message with
// role "user", scanning from the end. It returns a cloned message sequence
// with the mutation applied, or ok=false when no user message exists (or the
// messages value has an unrecognized shape).
func appendToLastUser(messages any, suffix string) (any, bool) {
	switch msgs := messages.(type) {
	case []api.Message:
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == "user" {
				out := make([]api.Message, len(msgs))
				copy(out, msgs)
				out[i].Content += suffix
				return out, true
			}
		}

	case []map[string]any:
		for i := len(msgs) - 1; i >= 0; i-- {
			if isUserMessage(msgs[i]) {
				out := make([]map[string]any, len(msgs))
				copy(out, msgs)
				out[i] = withSuffixedContent(msgs[i], suffix)
				return out, true
			}
		}

	case []any:
		for i := len(msgs) - 1; i >= 0; i-- {
			switch m := msgs[i].(type) {
			case api.Message:
				if m.Role == "user" {
					out := make([]any, len(msgs))
					copy(out, msgs)
					m.Content += suffix
					out[i] = m
					return out, true
				}
			case map[string]any:
				if isUserMessage(m) {
					out := make([]any, len(msgs))
					copy(out, msgs)
					out[i] = withSuffixedContent(m, suffix)
					return out, true
				}
			}
		}
	}
	return messages, false
}

func isUserMessage(m map[string]any) bool {
	role, _ := m["role"].(string)
	if role != "user" {
		return false
	}
	// Only string content can carry the appended instruction.
	_, ok := m["content"].(string)
	return ok
}

func withSuffixedContent(m map[string]any, suffix string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	content, _ := m["content"].(string)
	out["content"] = content + suffix
	return out
}
