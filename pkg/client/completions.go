package client

import (
	"context"
	"net/http"

	"github.com/rhuss/dmr-go/pkg/request"
)

// Completions calls POST /completions for plain (non-chat) generation.
type Completions struct {
	client *Client
}

// Create performs a completion for the given prompt. opts are merged into
// the payload shallowly; the last caller-supplied value for a key wins.
func (c *Completions) Create(ctx context.Context, model, prompt string, opts map[string]any) (map[string]any, error) {
	payload := request.Build(model, opts, request.Field{Key: "prompt", Value: prompt})
	return c.client.doJSON(ctx, http.MethodPost, c.client.baseURL+"/completions", payload, "completions", model)
}
