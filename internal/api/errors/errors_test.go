package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestWrittenBodyRoundTrips(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genCode := gen.OneConstOf(
		CodeInvalidRequest,
		CodeUnauthorized,
		CodeForbidden,
		CodeNotFound,
		CodeUnavailable,
		CodeInternal,
	)
	genMessage := gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 })
	genRequestID := gen.RegexMatch("[a-f0-9]{8}-[a-f0-9]{4}")

	properties.Property("body carries code, message and request id", prop.ForAll(
		func(code Code, message, requestID string) bool {
			apiErr := New(code, "%s", message).ForRequest(requestID)
			rr := httptest.NewRecorder()
			Write(rr, apiErr)

			if rr.Header().Get("Content-Type") != "application/json" || rr.Code != apiErr.Status() {
				return false
			}
			var body APIError
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				return false
			}
			return body.Code == code && body.Message == message && body.RequestID == requestID
		},
		genCode,
		genMessage,
		genRequestID,
	))

	properties.TestingRun(t)
}

func TestStatus(t *testing.T) {
	tests := map[Code]int{
		CodeInvalidRequest: http.StatusBadRequest,
		CodeUnauthorized:   http.StatusUnauthorized,
		CodeForbidden:      http.StatusForbidden,
		CodeNotFound:       http.StatusNotFound,
		CodeUnavailable:    http.StatusServiceUnavailable,
		CodeInternal:       http.StatusInternalServerError,
		"SOMETHING_ELSE":   http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := New(code, "x").Status(); got != want {
			t.Errorf("Status(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestWithCopies(t *testing.T) {
	base := InvalidRequest("bad limit %d", 0)
	detailed := base.With("field", "limit").With("max", 500)

	if base.Details != nil {
		t.Error("With() modified the receiver")
	}
	if detailed.Details["field"] != "limit" || detailed.Details["max"] != 500 || detailed.Message != "bad limit 0" {
		t.Errorf("detailed = %+v", detailed)
	}
}

func TestPanicReport(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/reports", nil)
	rep := NewPanicReport(req, "req-1", "boom")
	if !strings.Contains(rep.Stack, "goroutine") {
		t.Errorf("Stack = %q", rep.Stack)
	}
	attrs := rep.Attrs()
	if len(attrs) != 10 || attrs[1] != "req-1" || attrs[5] != "/v1/reports" || attrs[7] != "boom" {
		t.Errorf("Attrs() = %v", attrs)
	}
}
