package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

type hijackableWriter struct {
	*httptest.ResponseRecorder
	hijacked bool
	flushed  bool
}

func (w *hijackableWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.hijacked = true
	return nil, nil, nil
}

func (w *hijackableWriter) Flush() {
	w.flushed = true
}

func TestTelemetryWriterSupportsHijack(t *testing.T) {
	inner := &hijackableWriter{ResponseRecorder: httptest.NewRecorder()}

	handler := Telemetry(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("wrapped writer does not implement http.Hijacker")
		}
		if _, _, err := hj.Hijack(); err != nil {
			t.Fatalf("Hijack() error = %v", err)
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		} else {
			t.Fatal("wrapped writer does not implement http.Flusher")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/kitchen", nil)
	handler.ServeHTTP(inner, req)

	if !inner.hijacked {
		t.Fatal("Hijack was not forwarded to the underlying writer")
	}
	if !inner.flushed {
		t.Fatal("Flush was not forwarded to the underlying writer")
	}
}

func TestTelemetryHijackWithoutSupport(t *testing.T) {
	handler := Telemetry(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("wrapped writer does not implement http.Hijacker")
		}
		if _, _, err := hj.Hijack(); err == nil {
			t.Fatal("expected an error when the underlying writer cannot hijack")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
