package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rhuss/dmr-go/pkg/api"
	"github.com/rhuss/dmr-go/pkg/debug"
)

// mapHTTPError converts a non-2xx HTTP response into an APIError. The
// response body is inspected for an OpenAI-style error envelope to extract
// a descriptive message.
func mapHTTPError(resp *http.Response) *api.APIError {
	message := extractErrorMessage(resp.Body)

	var e *api.APIError
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		if message == "" {
			message = "invalid request"
		}
		e = api.NewInvalidRequestError(message)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "authentication failed"
		}
		e = api.NewAPIError(resp.StatusCode, message)

	case resp.StatusCode == http.StatusNotFound:
		if message == "" {
			message = "resource not found"
		}
		e = api.NewNotFoundError(message)

	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "rate limit exceeded"
		}
		e = api.NewTooManyRequestsError(message)

	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("server error (HTTP %d)", resp.StatusCode)
		}
		e = api.NewServerError(message)

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected status (HTTP %d)", resp.StatusCode)
		}
		e = api.NewAPIError(resp.StatusCode, message)
	}

	e.StatusCode = resp.StatusCode
	return e
}

// extractErrorMessage tries to parse the response body as an error envelope
// ({"error": {"message": ...}} or {"error": "..."}) and falls back to the
// raw body text.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		var s string
		if err := json.Unmarshal(envelope.Error, &s); err == nil && s != "" {
			return s
		}
	}

	return debug.Truncate(strings.TrimSpace(string(data)), 200)
}
