package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"ht-go/internal/ht"
	"ht-go/internal/odata"
)

// errorBody matches api.ErrorBody.
type errorBody struct {
	Error string `json:"error"`
}

var badRequestErrors = []error{
	ht.ErrInvalidInput,
	odata.ErrSyntax,
	odata.ErrUnknownField,
	odata.ErrUnsupportedOperator,
	odata.ErrUnsupportedConnective,
	odata.ErrUnsupportedValue,
	odata.ErrInvalidDate,
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ht.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ht.ErrSessionConflict):
		return http.StatusConflict
	case errors.Is(err, ht.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
