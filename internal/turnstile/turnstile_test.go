package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func siteverify(t *testing.T, fn func(req verifyRequest) (int, verifyResponse)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status, resp := fn(req)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifySuccess(t *testing.T) {
	srv := siteverify(t, func(req verifyRequest) (int, verifyResponse) {
		if req.Secret != "s3cret" || req.Response != "tok" || req.RemoteIP != "203.0.113.7" {
			t.Errorf("unexpected request %+v", req)
		}
		return http.StatusOK, verifyResponse{Success: true}
	})

	c := NewClient("s3cret", srv.URL, time.Second, zerolog.Nop())
	ok, err := c.Verify(context.Background(), "tok", "203.0.113.7")
	if err != nil || !ok {
		t.Fatalf("expected success, got %v %v", ok, err)
	}
}

func TestVerifyRejected(t *testing.T) {
	srv := siteverify(t, func(verifyRequest) (int, verifyResponse) {
		return http.StatusOK, verifyResponse{Success: false, ErrorCodes: []string{"invalid-input-response"}}
	})

	c := NewClient("s3cret", srv.URL, time.Second, zerolog.Nop())
	ok, err := c.Verify(context.Background(), "bad", "")
	if err != nil || ok {
		t.Fatalf("expected rejection without error, got %v %v", ok, err)
	}
}

func TestVerifyServerError(t *testing.T) {
	srv := siteverify(t, func(verifyRequest) (int, verifyResponse) {
		return http.StatusInternalServerError, verifyResponse{}
	})

	c := NewClient("s3cret", srv.URL, time.Second, zerolog.Nop())
	if ok, err := c.Verify(context.Background(), "tok", ""); ok || err == nil {
		t.Fatalf("expected an error, got %v %v", ok, err)
	}
}

func TestVerifyTimeoutIsFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient("s3cret", srv.URL, 50*time.Millisecond, zerolog.Nop())
	start := time.Now()
	ok, err := c.Verify(context.Background(), "tok", "")
	if ok || err == nil {
		t.Fatalf("expected timeout failure, got %v %v", ok, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("verification was not bounded by the timeout")
	}
}

func TestVerifyFailsClosedWithoutSecret(t *testing.T) {
	c := NewClient("", "http://127.0.0.1:1", time.Second, zerolog.Nop())
	if ok, err := c.Verify(context.Background(), "tok", ""); ok || !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v %v", ok, err)
	}
}
