package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewJSONAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentForecast, Output: &buf})

	logger.Info("Projection computed", FieldDays, 61)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry[FieldComponent] != ComponentForecast {
		t.Errorf("component = %v, want %s", entry[FieldComponent], ComponentForecast)
	}
	if entry[FieldDays] != float64(61) {
		t.Errorf("days = %v, want 61", entry[FieldDays])
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf, Component: ComponentApp})

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message should be logged")
	}
}

func TestWithComponentDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Component: ComponentApp, Output: &buf}).WithComponent(ComponentHTTP)

	logger.Info("x")

	if n := strings.Count(buf.String(), `"component"`); n != 1 {
		t.Errorf("component field appears %d times: %s", n, buf.String())
	}
	if logger.Component() != ComponentHTTP {
		t.Errorf("Component() = %s", logger.Component())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Logger == nil {
		t.Fatal("FromContext() should never return nil")
	}
	if logger.Component() != "unknown" {
		t.Errorf("Component() = %s, want unknown", logger.Component())
	}
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Component: ComponentHTTP, Output: &buf})

	handler := Middleware(base)(
		RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
			AccessLog(func(*http.Request) string { return "10.0.0.1" })(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusNotFound)
				}),
			),
		),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions/x", nil))

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"status_code":404`, `"level":"WARN"`, `"client_ip":"10.0.0.1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("access log missing %s: %s", want, out)
		}
	}
}

func TestStructuredLoggerLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))

	sl.LogError(context.Background(), "Failed to save", errors.New("disk full"), ComponentStorage, OpCreate, nil)

	out := buf.String()
	if !strings.Contains(out, `"error":"disk full"`) || !strings.Contains(out, `"operation":"create"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestLogFieldsToSlice(t *testing.T) {
	fields := NewFields().WithOperation(OpList).WithError(nil)
	slice := fields.ToSlice()
	if len(slice) != 2 || slice[0] != FieldOperation || slice[1] != OpList {
		t.Errorf("ToSlice() = %v", slice)
	}
}
