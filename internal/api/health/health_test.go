package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type mockPinger struct {
	err   error
	delay time.Duration
}

func (m *mockPinger) Ping(ctx context.Context) error {
	select {
	case <-time.After(m.delay):
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCheckAggregatesComponents(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("overall status follows component failures", prop.ForAll(
		func(dbUp, cacheUp bool) bool {
			c := NewChecker("v1.0.0")
			c.Register("database", pingerFor(dbUp))
			c.Register("cache", pingerFor(cacheUp))

			resp := c.Check(context.Background())
			if len(resp.Components) != 2 || resp.Version != "v1.0.0" {
				return false
			}
			switch {
			case dbUp && cacheUp:
				return resp.Status == StatusHealthy
			case !dbUp && !cacheUp:
				return resp.Status == StatusUnhealthy
			default:
				return resp.Status == StatusDegraded
			}
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func pingerFor(up bool) Pinger {
	if up {
		return &mockPinger{}
	}
	return &mockPinger{err: errors.New("connection refused")}
}

func TestCheckTimesOut(t *testing.T) {
	c := NewChecker("dev")
	c.Register("database", &mockPinger{delay: time.Minute})
	c.SetTimeout(20 * time.Millisecond)

	start := time.Now()
	resp := c.Check(context.Background())
	if time.Since(start) > 5*time.Second {
		t.Fatalf("Check() took %v", time.Since(start))
	}
	if resp.Components["database"].Status != StatusUnhealthy {
		t.Errorf("database = %+v", resp.Components["database"])
	}
}

func TestRegisterIgnoresNil(t *testing.T) {
	c := NewChecker("dev")
	c.Register("database", nil)
	if resp := c.Check(context.Background()); resp.Status != StatusHealthy || len(resp.Components) != 0 {
		t.Errorf("Check() = %+v", resp)
	}
}

func TestHandlerStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		up   []bool
		want int
	}{
		{"healthy", []bool{true}, http.StatusOK},
		{"degraded", []bool{true, false}, http.StatusOK},
		{"unhealthy", []bool{false}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("dev")
			for i, up := range tt.up {
				c.Register(string(rune('a'+i)), pingerFor(up))
			}
			rr := httptest.NewRecorder()
			c.Handler()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			var resp Response
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
		})
	}
}
