package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-shelf/internal/logging"
	"media-shelf/internal/metrics"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(nil) })
	return &buf
}

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newStatusRecorder(w)

	if rw.statusCode != http.StatusOK || rw.wroteHeader {
		t.Fatalf("unexpected initial state: %+v", rw)
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (second WriteHeader must be ignored)", rw.statusCode)
	}

	data := []byte("test data")
	n, err := rw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) || rw.bytesWritten != int64(len(data)) {
		t.Errorf("wrote %d, recorded %d, want %d", n, rw.bytesWritten, len(data))
	}
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		config        LoggingConfig
		expectLogging bool
	}{
		{"Logs regular requests", "/api/users", DefaultLoggingConfig(), true},
		{"Skips static files when configured", "/styles.css", LoggingConfig{SkipExtensions: []string{".css"}}, false},
		{"Logs static files when enabled", "/styles.css", LoggingConfig{LogStaticFiles: true, SkipExtensions: []string{".css"}}, true},
		{"Logs health checks when enabled", "/healthz", LoggingConfig{LogHealthChecks: true}, true},
		{"Skips health checks when disabled", "/healthz", LoggingConfig{LogHealthChecks: false}, false},
		{"Skips configured prefixes", "/internal/debug", LoggingConfig{SkipPaths: []string{"/internal"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)

			handler := Logger(tt.config)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte("ok"))
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			if w.Code != http.StatusTeapot {
				t.Errorf("status = %d, want 418", w.Code)
			}
			logged := strings.Contains(buf.String(), tt.path)
			if logged != tt.expectLogging {
				t.Errorf("logged = %v, want %v (output %q)", logged, tt.expectLogging, buf.String())
			}
		})
	}
}

func TestLoggerRecordsUsername(t *testing.T) {
	buf := captureLog(t)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetUsername(r.Context(), "alice")
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/users/bob?x=1", http.NoBody)
	req.RemoteAddr = "10.0.0.7:4242"
	req.Header.Set("User-Agent", "shelf test")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{"10.0.0.7 alice DELETE /api/users/bob x=1 204 0", `"shelf test"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
}

func TestSetUsernameWithoutLogger(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	SetUsername(req.Context(), "nobody")
}

func TestSanitizeLogField(t *testing.T) {
	tests := map[string]string{
		"plain":             "plain",
		"line\nbreak":       "line break",
		"cr\rlf":            "cr lf",
		"nul\x00byte":       "nulbyte",
		"esc\x1b[31mred":    "esc[31mred",
		"bell\x07":          "bell",
		"tab\tstays":        "tab\tstays",
		"fake\n1.2.3.4 GET": "fake 1.2.3.4 GET",
	}
	for in, want := range tests {
		if got := sanitizeLogField(in); got != want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "9.9.9.9:1", "1.1.1.1"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 3.3.3.3 "}, "9.9.9.9:1", "3.3.3.3"},
		{"real ip", map[string]string{"X-Real-IP": "4.4.4.4"}, "9.9.9.9:1", "4.4.4.4"},
		{"remote addr", nil, "5.5.5.5:8080", "5.5.5.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapeW3CField(t *testing.T) {
	if got := escapeW3CField("curl/8.0"); got != "curl/8.0" {
		t.Errorf("escapeW3CField(curl/8.0) = %q", got)
	}
	if got := escapeW3CField(`a "b" c`); got != `"a ""b"" c"` {
		t.Errorf("escapeW3CField = %q", got)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/healthz":                 "/healthz",
		"/api/users":               "/api/users",
		"/api/thumbnail/abc":       "/api/thumbnail/abc",
		"/api/thumbnail/abc/extra": "/api/thumbnail/abc/{path}",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.HandleFunc("/api/thumbnail/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/thumbnail/{id}", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/thumbnail/"+id, http.NoBody))
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("recorded %v requests under the route template, want 3", got)
	}
}

func TestMetricsSkipsConfiguredPaths(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	if got := testutil.ToFloat64(counter); got != before {
		t.Errorf("health check was recorded: %v -> %v", before, got)
	}
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	logging.SetOutput(&bytes.Buffer{})
	defer logging.SetOutput(nil)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/users", http.NoBody)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
