package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

const (
	serviceName    = "live-interpreter"
	serviceVersion = "1.0.0"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// HealthCheckFunc reports whether a dependency is usable.
type HealthCheckFunc func(ctx context.Context) (bool, error)

// HealthCheck is a named dependency check.
type HealthCheck struct {
	Name  string
	Check HealthCheckFunc
}

// HealthCheckHandler handles liveness requests
func HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, HealthStatus{
			Status:    "healthy",
			Service:   serviceName,
			Version:   serviceVersion,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// CheckDependencies runs every check with a shared deadline.
func CheckDependencies(ctx context.Context, checks []HealthCheck) (map[string]DependencyStatus, bool) {
	dependencies := make(map[string]DependencyStatus, len(checks))
	allHealthy := true

	for _, c := range checks {
		start := time.Now()
		healthy, err := c.Check(ctx)

		status := DependencyStatus{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
		if err != nil || !healthy {
			status.Status = "unhealthy"
			allHealthy = false
			if err != nil {
				status.Message = err.Error()
			}
		}
		dependencies[c.Name] = status
	}

	return dependencies, allHealthy
}

// ReadinessHandler handles readiness requests by running every dependency check
func ReadinessHandler(checks ...HealthCheck) http.HandlerFunc {
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		dependencies, ok := CheckDependencies(ctx, checks)
		status := HealthStatus{
			Status:       "ready",
			Service:      serviceName,
			Version:      serviceVersion,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Dependencies: dependencies,
		}

		code := http.StatusOK
		if !ok {
			status.Status = "not_ready"
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, status)
	}
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
