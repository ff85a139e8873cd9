// Package errors defines the JSON error body of the report API.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
)

// Code is the machine-readable error class in an error body.
type Code string

const (
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeForbidden      Code = "FORBIDDEN"
	CodeNotFound       Code = "NOT_FOUND"
	CodeUnavailable    Code = "UNAVAILABLE"
	CodeInternal       Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	CodeInvalidRequest: http.StatusBadRequest,
	CodeUnauthorized:   http.StatusUnauthorized,
	CodeForbidden:      http.StatusForbidden,
	CodeNotFound:       http.StatusNotFound,
	CodeUnavailable:    http.StatusServiceUnavailable,
	CodeInternal:       http.StatusInternalServerError,
}

// APIError is the body written for every failed request.
type APIError struct {
	Code      Code           `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status is the HTTP status for the error's code. Unknown codes map to 500.
func (e *APIError) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// With returns a copy carrying one more detail entry.
func (e *APIError) With(key string, value any) *APIError {
	c := *e
	c.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		c.Details[k] = v
	}
	c.Details[key] = value
	return &c
}

// ForRequest returns a copy tagged with the request id.
func (e *APIError) ForRequest(requestID string) *APIError {
	c := *e
	c.RequestID = requestID
	return &c
}

// New builds an error with a formatted message.
func New(code Code, format string, args ...any) *APIError {
	return &APIError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidRequest(format string, args ...any) *APIError {
	return New(CodeInvalidRequest, format, args...)
}

func Unauthorized(format string, args ...any) *APIError {
	return New(CodeUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *APIError {
	return New(CodeForbidden, format, args...)
}

func NotFound(format string, args ...any) *APIError {
	return New(CodeNotFound, format, args...)
}

// Unavailable reports a backend that is not configured or not reachable.
func Unavailable(format string, args ...any) *APIError {
	return New(CodeUnavailable, format, args...)
}

func Internal(format string, args ...any) *APIError {
	return New(CodeInternal, format, args...)
}

// WriteJSON encodes data as the response body.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Write sends err with its status.
func Write(w http.ResponseWriter, err *APIError) {
	WriteJSON(w, err.Status(), err)
}

// PanicReport is what the recovery middleware logs for a recovered panic.
type PanicReport struct {
	RequestID string
	Method    string
	Path      string
	Value     string
	Stack     string
}

// NewPanicReport captures the current goroutine's stack.
func NewPanicReport(r *http.Request, requestID string, value any) *PanicReport {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicReport{
		RequestID: requestID,
		Method:    r.Method,
		Path:      r.URL.Path,
		Value:     fmt.Sprint(value),
		Stack:     string(buf[:n]),
	}
}

// Attrs returns the report as slog key-value pairs.
func (p *PanicReport) Attrs() []any {
	return []any{
		"request_id", p.RequestID,
		"method", p.Method,
		"path", p.Path,
		"panic", p.Value,
		"stack", p.Stack,
	}
}
