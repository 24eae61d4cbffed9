package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{name: "default timeout", timeout: 0, expectedTimeout: 5 * time.Second},
		{name: "custom timeout", timeout: 10 * time.Second, expectedTimeout: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Errorf("expected no checks, got %v", checker.ListChecks())
			}
		})
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name           string
		checks         map[string]CheckFunc
		expectedStatus string
		unhealthy      []string
	}{
		{
			name:           "no checks",
			checks:         nil,
			expectedStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"storage":  func(ctx context.Context) error { return nil },
				"rotation": func(ctx context.Context) error { return nil },
			},
			expectedStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"storage":  func(ctx context.Context) error { return errors.New("connection refused") },
				"rotation": func(ctx context.Context) error { return nil },
			},
			expectedStatus: StatusDegraded,
			unhealthy:      []string{"storage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.expectedStatus {
				t.Errorf("expected status %q, got %q", tt.expectedStatus, status.Status)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("expected %d results, got %d", len(tt.checks), len(status.Checks))
			}
			for _, name := range tt.unhealthy {
				if status.Checks[name].Status != StatusUnhealthy {
					t.Errorf("expected %s to be unhealthy, got %+v", name, status.Checks[name])
				}
			}
		})
	}
}

func TestCheckTimeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("storage", func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	result := status.Checks["storage"]
	if result.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %+v", result)
	}
	if result.Message != ErrCheckTimeout.Error() {
		t.Errorf("expected timeout message, got %q", result.Message)
	}
}

func TestRotationCheck(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "storage-migration.json")
	check := RotationCheck(journal)

	if err := check(context.Background()); err != nil {
		t.Errorf("expected healthy without journal, got %v", err)
	}

	if err := os.WriteFile(journal, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "rotation incomplete") {
		t.Errorf("expected rotation error, got %v", err)
	}
}

func TestBacklogCheck(t *testing.T) {
	dirty := 5
	cells := func() int { return dirty }

	if err := BacklogCheck(cells, 10)(context.Background()); err != nil {
		t.Errorf("expected healthy below limit, got %v", err)
	}

	dirty = 11
	if err := BacklogCheck(cells, 10)(context.Background()); err == nil {
		t.Error("expected error above limit")
	}

	if err := BacklogCheck(cells, 0)(context.Background()); err != nil {
		t.Errorf("expected disabled check to pass, got %v", err)
	}
}

func TestReadinessHandler(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("storage", func(ctx context.Context) error { return errors.New("database is locked") })

	rec := httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.Checks["storage"].Message != "database is locked" {
		t.Errorf("unexpected check result %+v", status.Checks["storage"])
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, New(time.Second), "1.2.3", "abc123", "2026-10-19")

	tests := []struct {
		method       string
		path         string
		expectedCode int
		contains     string
	}{
		{http.MethodGet, "/health", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/ready", http.StatusOK, `"status":"ready"`},
		{http.MethodGet, "/version", http.StatusOK, `"version":"1.2.3"`},
		{http.MethodHead, "/health", http.StatusOK, ""},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.expectedCode {
				t.Errorf("expected %d, got %d", tt.expectedCode, rec.Code)
			}
			if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("expected body to contain %s, got %s", tt.contains, rec.Body.String())
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Errorf("expected empty body for HEAD, got %q", rec.Body.String())
			}
		})
	}
}
