package web

// errors.go turns handler errors into responses.
//
// Every error is logged with its technical text and the request ID, then
// mapped through core.MapError to a message, an action and a support code.
// The client gets that mapping as JSON for API calls, as an alert fragment
// for HTMX requests, or as a full error page otherwise.

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvcache/internal/core"
	"github.com/JonMunkholm/csvcache/internal/logging"
	"github.com/JonMunkholm/csvcache/internal/source"
	"github.com/JonMunkholm/csvcache/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errRateLimited = errors.New("rate limit exceeded")
	errBadBody     = errors.New("invalid request body")
)

// statusFor picks the HTTP status for an error returned by the core.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrDatasetNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyLoads):
		return http.StatusServiceUnavailable
	case errors.Is(err, source.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrInvalidName),
		errors.Is(err, core.ErrMissingPath),
		errors.Is(err, errBadParam),
		errors.Is(err, errBadBody),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message in the format
// the client expects. A zero statusCode is derived from err.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	logArgs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", logArgs...)
	} else {
		logger.Warn("request error", logArgs...)
	}

	switch {
	case isHTMX(r):
		renderError(w, r, userMsg, statusCode, false)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, statusCode)
	default:
		renderError(w, r, userMsg, statusCode, true)
	}
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderError writes an alert fragment, or a full page when page is set.
func renderError(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int, page bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)

	component := templates.ErrorAlert(msg.Message, msg.Action, msg.Code)
	if page {
		component = templates.ErrorPage(statusCode, msg.Message, msg.Action, msg.Code)
	}
	if err := component.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error page", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client prefers JSON. API routes always do.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
