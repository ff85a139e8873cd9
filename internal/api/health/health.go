// Package health provides health check functionality for API components.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates some report backends are unreachable.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus represents the health status of a single component.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response represents the health check response.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// Pinger is an interface for components that can be pinged.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker pings the registered report backends.
type Checker struct {
	mu         sync.RWMutex
	components map[string]Pinger
	startTime  time.Time
	version    string
	timeout    time.Duration
}

// NewChecker creates a new health checker.
func NewChecker(version string) *Checker {
	return &Checker{
		components: make(map[string]Pinger),
		startTime:  time.Now(),
		version:    version,
		timeout:    5 * time.Second,
	}
}

// Register adds a named component. A nil pinger is ignored.
func (c *Checker) Register(name string, p Pinger) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = p
}

// SetTimeout sets the timeout for health checks.
func (c *Checker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// Check pings every component. The result is unhealthy when all fail and
// degraded when only some do.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	timeout := c.timeout
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	pingers := make(map[string]Pinger, len(c.components))
	for k, v := range c.components {
		pingers[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := make(map[string]ComponentStatus, len(names))
	failed := 0
	for _, name := range names {
		if err := pingers[name].Ping(checkCtx); err != nil {
			failed++
			components[name] = ComponentStatus{
				Status:  StatusUnhealthy,
				Message: name + " ping failed: " + err.Error(),
			}
			continue
		}
		components[name] = ComponentStatus{Status: StatusHealthy, Message: "connected"}
	}

	overall := StatusHealthy
	switch {
	case failed > 0 && failed == len(names):
		overall = StatusUnhealthy
	case failed > 0:
		overall = StatusDegraded
	}

	return &Response{
		Status:     overall,
		Components: components,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
	}
}

// Handler returns an HTTP handler for health checks.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if response.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(response)
	}
}
