package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ht-go/internal/ht"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4096

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Message    string
}

// ErrorBody is the JSON shape of error responses.
type ErrorBody struct {
	Error string `json:"error"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Unwrap maps well-known status codes onto the service sentinels so callers
// can use errors.Is(err, ht.ErrNotFound) and friends.
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ht.ErrNotFound
	case http.StatusConflict:
		return ht.ErrSessionConflict
	case http.StatusUnprocessableEntity:
		return ht.ErrInvalidTransition
	case http.StatusBadRequest:
		return ht.ErrInvalidInput
	default:
		return nil
	}
}

func newError(resp *http.Response) *Error {
	e := &Error{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return e
	}

	var body ErrorBody
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		e.Message = body.Error
		return e
	}
	e.Message = strings.TrimSpace(string(data))
	return e
}
