package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestLogging_PassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	})

	handler := Logging(next)

	req := httptest.NewRequest(http.MethodPost, "/api/connections", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusCreated)
	}
	if rr.Body.String() != "created" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "created")
	}
}

func TestResponseWriter_DefaultsTo200(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) // implicit 200
	})

	handler := Logging(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestLogging_OmitsQueryString(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/connections?token=SFIN-secret-value", nil)
	rr := httptest.NewRecorder()
	Logging(next).ServeHTTP(rr, req)

	if strings.Contains(buf.String(), "SFIN-secret-value") {
		t.Errorf("log line leaks the query string: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "/api/connections") {
		t.Errorf("log line missing the path: %q", buf.String())
	}
}

func TestResponseWriter_IgnoresDoubleWriteHeader(t *testing.T) {
	rw := wrapResponseWriter(httptest.NewRecorder())

	rw.WriteHeader(http.StatusBadRequest)
	rw.WriteHeader(http.StatusOK)

	if rw.Status() != http.StatusBadRequest {
		t.Errorf("Status() = %d, want %d", rw.Status(), http.StatusBadRequest)
	}
}
