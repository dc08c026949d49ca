// Command demo walks through the dmr-go client against a local
// model-runner daemon.
//
// Usage:
//
//	demo [-config dmr.yaml] [-model ai/gemma3]
//
// The daemon must be running; endpoints that are unavailable are reported
// and skipped.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rhuss/dmr-go/pkg/api"
	"github.com/rhuss/dmr-go/pkg/client"
	"github.com/rhuss/dmr-go/pkg/config"
	"github.com/rhuss/dmr-go/pkg/tools"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	model := flag.String("model", "ai/gemma3", "model to use")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	c := client.NewFromConfig(cfg)
	defer c.Close()
	ctx := context.Background()

	fmt.Println("=== dmr-go demo ===")

	// 1. List available models.
	models, err := c.Models().List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listing models: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n[1] Models:\n%s\n", indent(models))

	messages := []api.Message{
		{Role: "user", Content: "What is the capital of France?"},
	}

	// 2. Plain chat completion.
	resp, err := c.Chat().Completions().Create(ctx, *model, messages, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat completion: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n[2] Chat completion:\n%s\n", indent(resp))

	// 3. Streaming, chunk by chunk.
	s, err := c.Chat().Completions().CreateStream(ctx, *model, messages, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stream: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n[3] Streaming chunks:")
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "stream read: %v\n", err)
			break
		}
		fmt.Print(deltaText(chunk))
	}
	s.Close()
	fmt.Println()

	// 4. Streaming with trailing consolidated response.
	ch, err := c.Chat().Completions().Stream(ctx, *model, messages, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stream: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n[4] Streaming with trailing full response:")
	for el := range ch {
		switch {
		case el.Err != nil:
			fmt.Fprintf(os.Stderr, "stream element: %v\n", el.Err)
		case el.Final:
			fmt.Printf("\nfinal response:\n%s\n", indent(el.Chunk))
		default:
			fmt.Print(deltaText(el.Chunk))
		}
	}

	// 5. tool_choice emulation with an MCP tool descriptor.
	interpreter := tools.MCP(
		"mcp-code-interpreter",
		"Python code execution server",
		"docker", "run", "-i", "--rm", "mcp/mcp-code-interpreter",
	)
	resp, err = c.Chat().Completions().Create(ctx, *model,
		[]api.Message{{Role: "user", Content: "Calculate: x = 10, y = 75 print(x * y)"}},
		map[string]any{
			"tools":       []api.Tool{interpreter},
			"tool_choice": "always",
		},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tool call: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n[5] Tool-directed completion:\n%s\n", indent(resp))
}

func indent(v any) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return string(data)
}

// deltaText pulls choices[0].delta.content out of a streaming chunk.
func deltaText(chunk map[string]any) string {
	choices, _ := chunk["choices"].([]any)
	if len(choices) == 0 {
		return ""
	}
	choice, _ := choices[0].(map[string]any)
	delta, _ := choice["delta"].(map[string]any)
	text, _ := delta["content"].(string)
	return text
}
