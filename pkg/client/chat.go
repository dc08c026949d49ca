package client

import (
	"context"
	"io"
	"net/http"

	"github.com/rhuss/dmr-go/pkg/api"
	"github.com/rhuss/dmr-go/pkg/request"
)

const endpointChatCompletions = "chat_completions"

// Chat groups the chat endpoints.
type Chat struct {
	client *Client
}

// Completions returns the chat-completions endpoint.
func (c *Chat) Completions() *ChatCompletions {
	return &ChatCompletions{client: c.client}
}

// ChatCompletions calls POST /chat/completions.
//
// All methods apply the client-side tool_choice emulation: the server does
// not understand the parameter, so "none" strips the tools field, "always"
// appends a use-the-tools instruction to the last user message, and the
// tool_choice key itself never reaches the wire. See request.ApplyToolChoice.
type ChatCompletions struct {
	client *Client
}

// StreamElement is one element of the channel-based streaming mode: either
// an incremental chunk, the trailing consolidated response (Final), or a
// terminal error.
type StreamElement struct {
	Chunk map[string]any
	Final bool
	Err   error
}

// Create performs a non-streaming chat completion. opts are merged into the
// payload as-is; a "tool_choice" option of "auto", "none" or "always" is
// consumed client-side and never forwarded.
func (cc *ChatCompletions) Create(ctx context.Context, model string, messages []api.Message, opts map[string]any) (map[string]any, error) {
	payload := cc.buildPayload(model, messages, opts)
	if streaming, _ := payload["stream"].(bool); streaming {
		return nil, api.NewInvalidRequestError("stream option set on Create; use CreateStream or Stream")
	}
	return cc.client.doJSON(ctx, http.MethodPost, cc.url(), payload, endpointChatCompletions, model)
}

// CreateStream performs a streaming chat completion and returns a
// pull-based Stream of chunks. The caller must Close the stream.
func (cc *ChatCompletions) CreateStream(ctx context.Context, model string, messages []api.Message, opts map[string]any) (*Stream, error) {
	payload := cc.buildPayload(model, messages, opts)
	payload["stream"] = true

	body, err := cc.client.startStream(ctx, cc.url(), payload, endpointChatCompletions, model)
	if err != nil {
		return nil, err
	}
	return newStream(cc.client, body, endpointChatCompletions), nil
}

// Stream performs a streaming chat completion and delivers all incremental
// chunks on the returned channel, followed by one Final element holding the
// body of a second, non-streaming request with the same payload.
//
// The endpoint is invoked twice by design: callers get incremental chunks
// and a consolidated result without manual bookkeeping. The two responses
// are not required to be identical; treat the Final element as
// authoritative rather than as the union of the chunks.
//
// The channel is closed after the Final element, after a terminal error
// element, or when ctx is cancelled.
func (cc *ChatCompletions) Stream(ctx context.Context, model string, messages []api.Message, opts map[string]any) (<-chan StreamElement, error) {
	payload := cc.buildPayload(model, messages, opts)
	payload["stream"] = true

	body, err := cc.client.startStream(ctx, cc.url(), payload, endpointChatCompletions, model)
	if err != nil {
		return nil, err
	}
	s := newStream(cc.client, body, endpointChatCompletions)

	ch := make(chan StreamElement, 16)
	go func() {
		defer close(ch)
		defer s.Close()

		for {
			if ctx.Err() != nil {
				return
			}
			obj, err := s.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				send(ctx, ch, StreamElement{Err: err})
				return
			}
			if !send(ctx, ch, StreamElement{Chunk: obj}) {
				return
			}
		}

		// Trailing consolidated response: same payload, stream removed.
		followup := make(map[string]any, len(payload))
		for k, v := range payload {
			followup[k] = v
		}
		delete(followup, "stream")

		resp, err := cc.client.doJSON(ctx, http.MethodPost, cc.url(), followup, endpointChatCompletions, model)
		if err != nil {
			send(ctx, ch, StreamElement{Err: err})
			return
		}
		send(ctx, ch, StreamElement{Chunk: resp, Final: true})
	}()

	return ch, nil
}

func (cc *ChatCompletions) buildPayload(model string, messages []api.Message, opts map[string]any) map[string]any {
	payload := request.Build(model, opts, request.Field{Key: "messages", Value: messages})
	request.ApplyToolChoice(payload)
	return payload
}

func (cc *ChatCompletions) url() string {
	return cc.client.baseURL + "/chat/completions"
}

func send(ctx context.Context, ch chan<- StreamElement, el StreamElement) bool {
	select {
	case ch <- el:
		return true
	case <-ctx.Done():
		return false
	}
}
