package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	if rw.statusCode != http.StatusOK || rw.wroteHeader {
		t.Fatalf("new writer = %+v", rw)
	}

	rw.WriteHeader(http.StatusConflict)
	rw.WriteHeader(http.StatusInternalServerError)
	if _, err := rw.Write([]byte("busy")); err != nil {
		t.Fatal(err)
	}

	if rw.statusCode != http.StatusConflict || rec.Code != http.StatusConflict {
		t.Errorf("status = %d/%d, want 409", rw.statusCode, rec.Code)
	}
	if rw.bytesWritten != 4 {
		t.Errorf("bytesWritten = %d, want 4", rw.bytesWritten)
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap() did not return the underlying writer")
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\nb\rc", "a b c"},
		{"esc\x1b[31mred", "esc[31mred"},
		{"nul\x00byte", "nulbyte"},
		{"tab\tkept", "tab\tkept"},
		{"del\x7f", "del"},
	}

	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"remote addr", "192.168.1.5:5123", "", "192.168.1.5"},
		{"forwarded", "10.0.0.1:80", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatW3C(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/build/pause?x=1", nil)
	r.RemoteAddr = "127.0.0.1:4000"
	r.Header.Set("User-Agent", `curl "test"`)

	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusConflict)
	_, _ = rw.Write([]byte("{}"))

	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	got := formatW3C(r, rw, 12*time.Millisecond, now)
	want := `2024-03-09 14:05:06 127.0.0.1 POST /api/build/pause x=1 409 2 12 "curl ""test"""`
	if got != want {
		t.Errorf("formatW3C() =\n%s\nwant\n%s", got, want)
	}
}

func TestLoggerSkipsConfiguredPaths(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, path := range []string{"/metrics", "/healthz", "/api/build/status"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := buf.String()
	if strings.Contains(out, "/metrics") || strings.Contains(out, "/healthz") {
		t.Errorf("skipped paths were logged:\n%s", out)
	}
	if !strings.Contains(out, "GET /api/build/status - 202") {
		t.Errorf("request not logged:\n%s", out)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics)
	router.HandleFunc("/api/build/{action}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}).Methods(http.MethodPost)

	before := requestCount(t, "/api/build/{action}", "409")
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/build/pause", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/build/resume", nil))

	if got := requestCount(t, "/api/build/{action}", "409") - before; got != 2 {
		t.Errorf("requests counted = %v, want 2 under one template label", got)
	}
}

func requestCount(t *testing.T, path, status string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != "media_indexer_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["path"] == path && labels["status"] == status && labels["method"] == http.MethodPost {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
