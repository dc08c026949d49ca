package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rhuss/dmr-go/pkg/request"
)

// Models groups the model-management endpoints.
//
// List and Retrieve are engine-level (relative to the base URL); Create and
// Delete are server-level and go to the base URL with the engine path
// segment stripped, since pulling and removing models is a daemon concern
// rather than a per-engine one.
type Models struct {
	client *Client
}

// List returns the models available on the engine (GET /models).
func (m *Models) List(ctx context.Context) (map[string]any, error) {
	return m.client.doJSON(ctx, http.MethodGet, m.client.baseURL+"/models", nil, "models_list", "")
}

// Retrieve returns metadata for one model (GET /models/{id}).
func (m *Models) Retrieve(ctx context.Context, id string) (map[string]any, error) {
	u := m.client.baseURL + "/models/" + url.PathEscape(id)
	return m.client.doJSON(ctx, http.MethodGet, u, nil, "models_retrieve", id)
}

// Create pulls a model onto the server (POST /models/create against the
// engine-stripped base URL) and returns the final response body.
func (m *Models) Create(ctx context.Context, model string, opts map[string]any) (map[string]any, error) {
	payload := request.Build(model, opts)
	u := m.client.serverBaseURL() + "/models/create"
	return m.client.doJSON(ctx, http.MethodPost, u, payload, "models_create", model)
}

// CreateStream pulls a model and returns the server's pull-progress lines
// as a Stream. The caller must Close the stream.
func (m *Models) CreateStream(ctx context.Context, model string, opts map[string]any) (*Stream, error) {
	payload := request.Build(model, opts)
	u := m.client.serverBaseURL() + "/models/create"

	body, err := m.client.startStream(ctx, u, payload, "models_create", model)
	if err != nil {
		return nil, err
	}
	return newStream(m.client, body, "models_create"), nil
}

// Delete removes a model from the server (DELETE /models/{id} against the
// engine-stripped base URL).
func (m *Models) Delete(ctx context.Context, id string) (map[string]any, error) {
	u := m.client.serverBaseURL() + "/models/" + url.PathEscape(id)
	return m.client.doJSON(ctx, http.MethodDelete, u, nil, "models_delete", id)
}
