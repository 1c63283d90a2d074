package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func okCheck(name string) HealthCheck {
	return HealthCheck{Name: name, Check: func(context.Context) (bool, error) { return true, nil }}
}

func failingCheck(name string) HealthCheck {
	return HealthCheck{Name: name, Check: func(context.Context) (bool, error) { return false, errors.New("connection refused") }}
}

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("status = %q, want healthy", status.Status)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantCode   int
		wantStatus string
	}{
		{"no checks", nil, http.StatusOK, "ready"},
		{"all healthy", []HealthCheck{okCheck("translator"), okCheck("postgres")}, http.StatusOK, "ready"},
		{"one failing", []HealthCheck{okCheck("translator"), failingCheck("postgres")}, http.StatusServiceUnavailable, "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessHandler(tt.checks...)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Dependencies) != len(tt.checks) {
				t.Errorf("dependencies = %d, want %d", len(status.Dependencies), len(tt.checks))
			}
		})
	}
}

func TestCheckDependenciesReportsMessage(t *testing.T) {
	deps, ok := CheckDependencies(context.Background(), []HealthCheck{failingCheck("postgres")})
	if ok {
		t.Fatal("expected unhealthy result")
	}
	if deps["postgres"].Message != "connection refused" {
		t.Errorf("message = %q", deps["postgres"].Message)
	}
}

func TestHealthServerRefresh(t *testing.T) {
	hs := NewHealthServer(okCheck("translator"), failingCheck("postgres"))
	hs.Refresh(context.Background())

	tests := []struct {
		service string
		want    healthpb.HealthCheckResponse_ServingStatus
	}{
		{"", healthpb.HealthCheckResponse_NOT_SERVING},
		{"translator", healthpb.HealthCheckResponse_SERVING},
		{"postgres", healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		resp, err := hs.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: tt.service})
		if err != nil {
			t.Fatalf("Check(%q): %v", tt.service, err)
		}
		if resp.Status != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.service, resp.Status, tt.want)
		}
	}
}
