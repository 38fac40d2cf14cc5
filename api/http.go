package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error { return e.Err }

// WriteError writes err as an ErrorResponse. The status comes from a
// RequestError and defaults to 500.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
		err = reqErr.Err
	}
	WriteJSON(w, log, status, ErrorResponse{Error: err.Error(), Details: ErrorEntries(err)})
}

func WriteJSON(w http.ResponseWriter, log *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
