package management

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"keyrelay-hq/keyrelay/pkg/accounts"
	"keyrelay-hq/keyrelay/pkg/backup"
	"keyrelay-hq/keyrelay/pkg/server"
)

// ErrorResponse is the body of every non-2xx management response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Param is the offending field, when there is one.
	Param string `json:"param,omitempty"`
}

// Error type constants.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeNotFound       = "not_found"
	ErrorTypeConflict       = "conflict"
	ErrorTypeServerError    = "server_error"
)

// statusFor maps domain errors to an HTTP status and error type.
func statusFor(err error) (int, string, string) {
	var verr *accounts.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorTypeInvalidRequest, verr.Field
	case errors.Is(err, accounts.ErrNotFound),
		errors.Is(err, backup.ErrBackupNotFound),
		errors.Is(err, backup.ErrSettingsNotFound):
		return http.StatusNotFound, ErrorTypeNotFound, ""
	case errors.Is(err, backup.ErrInvalidFilename):
		return http.StatusBadRequest, ErrorTypeInvalidRequest, "filename"
	case errors.Is(err, server.ErrAlreadyRunning):
		return http.StatusConflict, ErrorTypeConflict, ""
	default:
		return http.StatusInternalServerError, ErrorTypeServerError, ""
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, typ, param := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "management request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, code, ErrorResponse{Error: ErrorDetail{Message: err.Error(), Type: typ, Param: param}})
}

func writeBadRequest(w http.ResponseWriter, message, param string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
		Message: message,
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
	}})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode management response", "error", err)
	}
}
