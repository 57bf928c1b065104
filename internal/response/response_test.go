package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/examdrill/internal/i18n"
)

func TestFailUsesLocalizedMessage(t *testing.T) {
	if err := i18n.Init("en"); err != nil {
		t.Fatal(err)
	}
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware(), i18n.Middleware())
	r.GET("/", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrSessionNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "zh")
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == nil || body.Error.Code != ErrSessionNotFound {
		t.Fatalf("unexpected error body %+v", body.Error)
	}
	if body.Error.Message != "会话ID不存在" {
		t.Fatalf("expected localized message, got %q", body.Error.Message)
	}
	if body.Metadata.RequestID != "req-1" {
		t.Fatalf("request id not propagated: %q", body.Metadata.RequestID)
	}
}

func TestMessageFallsBackWithoutLocalizer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if got := Message(c, ErrInternal); got != GetMessage(ErrInternal) {
		t.Fatalf("got %q", got)
	}
}

func TestRequestIDSources(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name      string
		requestID string
		cfRay     string
		want      string
	}{
		{name: "client id", requestID: "abc-123", cfRay: "8f1e2d3c4b5a6978-TPE", want: "abc-123"},
		{name: "cf-ray fallback", requestID: "bad id\r\nx", cfRay: "8f1e2d3c4b5a6978-TPE", want: "8f1e2d3c4b5a6978-TPE"},
		{name: "oversized id", requestID: strings.Repeat("a", maxRequestIDLength+1), want: ""},
		{name: "generated", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.requestID != "" {
				req.Header.Set("X-Request-ID", tt.requestID)
			}
			if tt.cfRay != "" {
				req.Header.Set("CF-Ray", tt.cfRay)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if tt.want != "" {
				if got != tt.want {
					t.Fatalf("expected %q, got %q", tt.want, got)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected a generated UUID, got %q", got)
			}
		})
	}
}
