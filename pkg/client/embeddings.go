package client

import (
	"context"
	"net/http"

	"github.com/rhuss/dmr-go/pkg/request"
)

// Embeddings calls POST /embeddings.
type Embeddings struct {
	client *Client
}

// Create computes embeddings for the given inputs.
func (e *Embeddings) Create(ctx context.Context, model string, input []string, opts map[string]any) (map[string]any, error) {
	payload := request.Build(model, opts, request.Field{Key: "input", Value: input})
	return e.client.doJSON(ctx, http.MethodPost, e.client.baseURL+"/embeddings", payload, "embeddings", model)
}
