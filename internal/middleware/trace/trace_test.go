package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budgetwatch/internal/log"
)

func TestMiddleware_LogsCompletion(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Format: "json", Component: log.ComponentHTTP, Output: &buf})

	m := NewMiddleware(log.NewStructuredLogger(logger), func(*http.Request) string { return "9.9.9.9" })
	h := log.Middleware(logger)(m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	for _, path := range []string{"/", "/boom"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	total, serverErrors := m.Snapshot()
	if total != 2 || serverErrors != 1 {
		t.Fatalf("Snapshot() = %d, %d", total, serverErrors)
	}

	var completed []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if entry["msg"] == "HTTP request completed" {
			completed = append(completed, entry)
		}
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completion entries, got %d", len(completed))
	}
	if completed[0]["level"] != "INFO" || completed[1]["level"] != "ERROR" {
		t.Errorf("levels = %v, %v", completed[0]["level"], completed[1]["level"])
	}
	if completed[0][log.FieldClientIP] != "9.9.9.9" {
		t.Errorf("client ip = %v", completed[0][log.FieldClientIP])
	}
}
