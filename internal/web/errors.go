package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with full technical detail server-side, then mapped
// through engine.MapError so clients receive a user-friendly message, an
// action suggestion, and a stable support code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sidmazak/bulk-csv-editor/internal/engine"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action)
// fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error with request context and writes the
// mapped user-facing response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := engine.MapError(err)

	// Request ID for correlation
	requestID := chimw.GetReqID(r.Context())

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", requestID,
	)

	if statusCode == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "10")
	}

	respondErrorJSON(w, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg engine.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusForError maps synchronous run-launch failures to HTTP status codes.
func statusForError(err error) int {
	var (
		reqErr *engine.RequestError
		patErr *engine.PatternError
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &patErr):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrTooManyProcesses):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
