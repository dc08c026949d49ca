package api

import "fmt"

// ErrorType represents the category of a client error.
type ErrorType string

const (
	// ErrorTypeTransport covers network-level failures: DNS resolution,
	// refused connections, timeouts. Never retried by the client.
	ErrorTypeTransport ErrorType = "transport_error"

	// ErrorTypeInvalidRequest covers HTTP 400 responses and locally
	// rejected call parameters.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeServerError     ErrorType = "server_error"

	// ErrorTypeAPI is the catch-all for other non-2xx responses.
	ErrorTypeAPI ErrorType = "api_error"
)

// APIError is the structured error returned by every client operation.
// StatusCode is set when the error originates from an HTTP response.
type APIError struct {
	Type       ErrorType `json:"type"`
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewTransportError creates an APIError for a network-level failure.
func NewTransportError(err error) *APIError {
	return &APIError{
		Type:    ErrorTypeTransport,
		Message: err.Error(),
	}
}

// NewInvalidRequestError creates an APIError for invalid call parameters.
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// NewServerError creates an APIError for 5xx-class server failures.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewAPIError creates a generic APIError for an unexpected HTTP status.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{
		Type:       ErrorTypeAPI,
		StatusCode: statusCode,
		Message:    message,
	}
}
