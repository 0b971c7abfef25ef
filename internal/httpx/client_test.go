package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/gustavo/comet-kit/internal/errors"
)

func TestDoBodyJSONDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing accept header")
		}
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer server.Close()

	client := New(2*time.Second, 0)
	var out struct {
		Value string `json:"value"`
	}
	if err := DoBodyJSON(context.Background(), client, http.MethodGet, server.URL, nil, &out); err != nil {
		t.Fatalf("DoBodyJSON failed: %v", err)
	}
	if out.Value != "ok" {
		t.Fatalf("unexpected value %q", out.Value)
	}
}

func TestDoBodyJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"value":"recovered"}`))
	}))
	defer server.Close()

	client := New(2*time.Second, 1)
	var out struct {
		Value string `json:"value"`
	}
	if err := DoBodyJSON(context.Background(), client, http.MethodPost, server.URL, []byte(`{}`), &out); err != nil {
		t.Fatalf("DoBodyJSON failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
	if out.Value != "recovered" {
		t.Fatalf("unexpected value %q", out.Value)
	}
}

func TestDoBodyJSONExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(2*time.Second, 1)
	err := DoBodyJSON(context.Background(), client, http.MethodGet, server.URL, nil, nil)
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeUnavailable {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestDoBodyJSONPassesThroughClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"400.5","message":"leverage token is not collateral"}`))
	}))
	defer server.Close()

	client := New(2*time.Second, 2)
	err := DoBodyJSON(context.Background(), client, http.MethodPost, server.URL, []byte(`{}`), nil)
	typed, ok := clierr.As(err)
	if !ok {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code != clierr.CodeBadRequest || typed.Reason != "400.5" {
		t.Fatalf("unexpected error %+v", typed)
	}
	if typed.Message != "leverage token is not collateral" {
		t.Fatalf("unexpected message %q", typed.Message)
	}
	if calls.Load() != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", calls.Load())
	}
}

func TestDoBodyJSONEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(2*time.Second, 0)
	var out map[string]any
	err := DoBodyJSON(context.Background(), client, http.MethodGet, server.URL, nil, &out)
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeUnavailable {
		t.Fatalf("expected unavailable for empty body, got %v", err)
	}
}
