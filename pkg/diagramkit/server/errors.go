package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/execution"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/format"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/labels"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/repository"
)

// HTTPError carries an explicit status for the error writer.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

var (
	errRouteNotFound    = &HTTPError{Status: http.StatusNotFound, Message: "route not found"}
	errMethodNotAllowed = &HTTPError{Status: http.StatusMethodNotAllowed, Message: "method not allowed"}
	errEmptyBody        = &HTTPError{Status: http.StatusBadRequest, Message: "request body is empty"}
)

func badRequest(msg string, err error) error {
	return &HTTPError{Status: http.StatusBadRequest, Message: msg, Err: err}
}

// statusFor maps an error to the response status. Unknown errors are 500.
func statusFor(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidID),
		errors.Is(err, execution.ErrInvalidUpdate),
		errors.Is(err, execution.ErrInvalidExecutionID),
		errors.Is(err, format.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, execution.ErrAlreadyActive),
		errors.Is(err, diagramkit.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, format.ErrUndetectable),
		errors.Is(err, format.ErrInvalidDocument),
		errors.Is(err, labels.ErrInvalidExport):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrStoreClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// writeError renders every failure of every handler. Server errors are
// logged and their detail is hidden from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err.Error(),
		)
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	writeJSON(w, status, errorBody{OK: false, Error: msg, RequestID: requestID(r)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
