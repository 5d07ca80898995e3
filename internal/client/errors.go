package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotAuthenticated is returned by bearer-required operations when the
// session holds no token. The request is never issued; log in first.
var ErrNotAuthenticated = errors.New("not authenticated")

// APIError is the single failure type for non-2xx backend responses. Message
// is taken from the JSON error body's "detail" field when the backend sent
// one, otherwise the HTTP status text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("echosys api: %s (status %d)", e.Message, e.Status)
}

// detailBody is the FastAPI-style error envelope the backend emits.
type detailBody struct {
	Detail string `json:"detail"`
}

// newAPIError builds an APIError from a non-2xx response body.
func newAPIError(status int, body []byte) *APIError {
	var d detailBody
	if err := json.Unmarshal(body, &d); err == nil && d.Detail != "" {
		return &APIError{Status: status, Message: d.Detail}
	}
	return &APIError{Status: status, Message: http.StatusText(status)}
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is an APIError with status 401, or the
// local ErrNotAuthenticated guard.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
