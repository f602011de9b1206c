package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	handler := LoggerWith(base, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/stories", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", rr.Code)
	}
	if got := rr.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("Expected request id to be echoed, got %q", got)
	}
	out := buf.String()
	for _, want := range []string{"request_id=req-42", "status=418", "path=/v1/stories", "bytes=15"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log to contain %q, got %s", want, out)
		}
	}
}

func TestLoggerWith_GeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := LoggerWith(slog.New(slog.NewTextHandler(&buf, nil)), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request id")
	}
	if !strings.Contains(buf.String(), "status=200") {
		t.Errorf("Expected implicit 200 to be logged, got %s", buf.String())
	}
}

func TestStatusRecorder_Flush(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr}
	var w http.ResponseWriter = rec
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("Expected recorder to implement http.Flusher")
	}
	f.Flush()
	if !rr.Flushed {
		t.Error("Expected flush to reach the underlying writer")
	}
}
