package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/dmr-go/pkg/api"
)

// recordedRequest captures one request the test server received.
type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	if r.Body == nil {
		return nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("reading request body: %v", err)
	}
	if len(data) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshalling request body: %v", err)
	}
	return m
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	// Trailing slash on purpose: New must strip it.
	opts = append([]Option{WithBaseURL(ts.URL + "/engines/llama.cpp/v1/")}, opts...)
	c := New(opts...)
	t.Cleanup(func() { c.Close() })
	return c, ts
}

func TestChatCreate_ToolChoiceAlways(t *testing.T) {
	var got recordedRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = recordedRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), body: decodeBody(t, r)}
		json.NewEncoder(w).Encode(map[string]any{"id": "chatcmpl-1"})
	}, WithAPIKey("sk-test"))

	resp, err := c.Chat().Completions().Create(context.Background(), "ai/gemma3",
		[]api.Message{{Role: "user", Content: "hi"}},
		map[string]any{
			"tools":       []api.Tool{{Type: "function", Function: &api.ToolFunction{Name: "search"}}},
			"tool_choice": "always",
		},
	)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp["id"] != "chatcmpl-1" {
		t.Errorf("resp = %v", resp)
	}

	if got.method != http.MethodPost || got.path != "/engines/llama.cpp/v1/chat/completions" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.auth != "Bearer sk-test" {
		t.Errorf("auth header = %q", got.auth)
	}
	if _, ok := got.body["tool_choice"]; ok {
		t.Error("tool_choice must not reach the server")
	}
	if _, ok := got.body["tools"]; !ok {
		t.Error("tools must remain in the transmitted payload")
	}
	msgs := got.body["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].(string)
	want := "hi Use tool search to respond strictly use tool."
	if content != want {
		t.Errorf("content = %q, want %q", content, want)
	}
}

func TestChatCreate_ToolChoiceNone(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		json.NewEncoder(w).Encode(map[string]any{"id": "chatcmpl-2"})
	})

	_, err := c.Chat().Completions().Create(context.Background(), "ai/gemma3",
		[]api.Message{{Role: "user", Content: "hi"}},
		map[string]any{
			"tools":       []api.Tool{{Type: "function", Function: &api.ToolFunction{Name: "search"}}},
			"tool_choice": "none",
		},
	)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := body["tools"]; ok {
		t.Error("tools must not reach the server for tool_choice=none")
	}
	if _, ok := body["tool_choice"]; ok {
		t.Error("tool_choice must not reach the server")
	}
}

func TestChatCreate_RejectsStreamOption(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent")
	})

	_, err := c.Chat().Completions().Create(context.Background(), "ai/gemma3",
		[]api.Message{{Role: "user", Content: "hi"}},
		map[string]any{"stream": true},
	)
	if err == nil {
		t.Fatal("want error for stream option on Create")
	}
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("err = %v, want invalid_request APIError", err)
	}
}

func TestChatCreate_HTTPErrorMapping(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		wantType api.ErrorType
		wantMsg  string
	}{
		{400, `{"error":{"message":"bad messages"}}`, api.ErrorTypeInvalidRequest, "bad messages"},
		{404, `{"error":"no such model"}`, api.ErrorTypeNotFound, "no such model"},
		{429, ``, api.ErrorTypeTooManyRequests, "rate limit exceeded"},
		{500, `engine exploded`, api.ErrorTypeServerError, "engine exploded"},
		{418, ``, api.ErrorTypeAPI, "unexpected status (HTTP 418)"},
	}

	for _, tt := range tests {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			io.WriteString(w, tt.body)
		})

		_, err := c.Chat().Completions().Create(context.Background(), "m", []api.Message{{Role: "user", Content: "x"}}, nil)
		apiErr, ok := err.(*api.APIError)
		if !ok {
			t.Fatalf("status %d: err = %v, want APIError", tt.status, err)
		}
		if apiErr.Type != tt.wantType {
			t.Errorf("status %d: type = %s, want %s", tt.status, apiErr.Type, tt.wantType)
		}
		if apiErr.StatusCode != tt.status {
			t.Errorf("status %d: status code = %d", tt.status, apiErr.StatusCode)
		}
		if !strings.Contains(apiErr.Message, tt.wantMsg) {
			t.Errorf("status %d: message = %q, want contains %q", tt.status, apiErr.Message, tt.wantMsg)
		}
	}
}

func TestChatCreate_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close() // connection refused from here on

	c := New(WithBaseURL(url + "/engines/llama.cpp/v1"))
	_, err := c.Chat().Completions().Create(context.Background(), "m", []api.Message{{Role: "user", Content: "x"}}, nil)

	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeTransport {
		t.Errorf("err = %v, want transport_error", err)
	}
}

func TestChatCreateStream(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		io.WriteString(w, "data: {\"id\":1}\ndata: {\"id\":2}\ndata: [DONE]\n")
	})

	s, err := c.Chat().Completions().CreateStream(context.Background(), "ai/gemma3",
		[]api.Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	defer s.Close()

	var ids []float64
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		ids = append(ids, chunk["id"].(float64))
	}

	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("ids = %v, want [1 2]", ids)
	}
	if body["stream"] != true {
		t.Errorf("request stream flag = %v, want true", body["stream"])
	}
}

func TestChatStream_TrailingFullResponse(t *testing.T) {
	var calls int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		body := decodeBody(t, r)
		if body["stream"] == true {
			io.WriteString(w, "data: {\"delta\":\"he\"}\ndata: {\"delta\":\"llo\"}\ndata: [DONE]\n")
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"full": "hello"})
	})

	ch, err := c.Chat().Completions().Stream(context.Background(), "ai/gemma3",
		[]api.Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var elements []StreamElement
	for el := range ch {
		if el.Err != nil {
			t.Fatalf("stream element error: %v", el.Err)
		}
		elements = append(elements, el)
	}

	if len(elements) != 3 {
		t.Fatalf("got %d elements, want 2 chunks + 1 final", len(elements))
	}
	if elements[0].Chunk["delta"] != "he" || elements[1].Chunk["delta"] != "llo" {
		t.Errorf("chunks = %v %v", elements[0].Chunk, elements[1].Chunk)
	}
	if !elements[2].Final || elements[2].Chunk["full"] != "hello" {
		t.Errorf("final element = %+v", elements[2])
	}
	if elements[0].Final || elements[1].Final {
		t.Error("incremental chunks must not be marked final")
	}
	// Two server invocations by design: one streaming, one consolidated.
	if calls != 2 {
		t.Errorf("server calls = %d, want 2", calls)
	}
}

func TestCompletionsCreate(t *testing.T) {
	var got recordedRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = recordedRequest{method: r.Method, path: r.URL.Path, body: decodeBody(t, r)}
		json.NewEncoder(w).Encode(map[string]any{"object": "text_completion"})
	})

	_, err := c.Completions().Create(context.Background(), "ai/gemma3", "Once upon a time",
		map[string]any{"max_tokens": 32})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.path != "/engines/llama.cpp/v1/completions" {
		t.Errorf("path = %q", got.path)
	}
	if got.body["prompt"] != "Once upon a time" || got.body["max_tokens"] != float64(32) {
		t.Errorf("body = %v", got.body)
	}
}

func TestEmbeddingsCreate(t *testing.T) {
	var got recordedRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = recordedRequest{path: r.URL.Path, body: decodeBody(t, r)}
		json.NewEncoder(w).Encode(map[string]any{"object": "list"})
	})

	_, err := c.Embeddings().Create(context.Background(), "ai/embed", []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.path != "/engines/llama.cpp/v1/embeddings" {
		t.Errorf("path = %q", got.path)
	}
	input := got.body["input"].([]any)
	if len(input) != 2 || input[0] != "a" {
		t.Errorf("input = %v", input)
	}
}

func TestModelsEndpoints(t *testing.T) {
	var paths []string
	var methods []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		methods = append(methods, r.Method)
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	ctx := context.Background()
	if _, err := c.Models().List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := c.Models().Retrieve(ctx, "ai/gemma3"); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if _, err := c.Models().Create(ctx, "ai/gemma3", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Models().Delete(ctx, "ai/gemma3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []string{
		// Engine-level endpoints keep the engine prefix.
		"/engines/llama.cpp/v1/models",
		"/engines/llama.cpp/v1/models/ai%2Fgemma3",
		// Server-level endpoints drop it.
		"/models/create",
		"/models/ai%2Fgemma3",
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("call %d path = %q, want %q", i, paths[i], p)
		}
	}
	if methods[2] != http.MethodPost || methods[3] != http.MethodDelete {
		t.Errorf("methods = %v", methods)
	}
}

func TestModelsCreateStream(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/create" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, "{\"status\":\"pulling\"}\n{\"status\":\"done\"}\n")
	})

	s, err := c.Models().CreateStream(context.Background(), "ai/gemma3", nil)
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	defer s.Close()

	var statuses []string
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		statuses = append(statuses, chunk["status"].(string))
	}
	if len(statuses) != 2 || statuses[1] != "done" {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestNoAuthHeaderWithoutAPIKey(t *testing.T) {
	var auth string
	var hasHeader bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth, hasHeader = r.Header.Get("Authorization"), r.Header.Get("Authorization") != ""
		json.NewEncoder(w).Encode(map[string]any{})
	})

	if _, err := c.Models().List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
	if hasHeader {
		t.Errorf("unexpected Authorization header %q", auth)
	}
}

func TestBaseURLNormalization(t *testing.T) {
	c := New(WithBaseURL("http://localhost:12434/engines/llama.cpp/v1///"))
	if c.BaseURL() != "http://localhost:12434/engines/llama.cpp/v1" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
	if got := c.serverBaseURL(); got != "http://localhost:12434" {
		t.Errorf("serverBaseURL = %q", got)
	}

	// No engine segment: server base equals the base URL.
	c2 := New(WithBaseURL("http://localhost:8080/v1"))
	if got := c2.serverBaseURL(); got != "http://localhost:8080/v1" {
		t.Errorf("serverBaseURL without engine segment = %q", got)
	}
}
