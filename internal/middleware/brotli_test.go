package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

func brotliRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) {
		c.String(http.StatusOK, strings.Repeat("[I]1\n[Q]question\n", 200))
	})
	r.GET("/small", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/binary", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", make([]byte, 4096))
	})
	return r
}

func get(r http.Handler, path, acceptEncoding string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBrotliCompressesLargeText(t *testing.T) {
	w := get(brotliRouter(), "/big", "gzip, br;q=0.9")

	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("expected br encoding, headers %v", w.Header())
	}
	plain, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(string(plain), "[I]1\n[Q]question\n") || len(plain) != 200*len("[I]1\n[Q]question\n") {
		t.Fatalf("unexpected body of %d bytes", len(plain))
	}
}

func TestBrotliLeavesSmallAndBinaryBodies(t *testing.T) {
	r := brotliRouter()

	if w := get(r, "/small", "br"); w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Fatalf("small body should pass through, got %q %v", w.Body.String(), w.Header())
	}
	if w := get(r, "/binary", "br"); w.Header().Get("Content-Encoding") != "" || w.Body.Len() != 4096 {
		t.Fatalf("binary body should pass through, got %d bytes", w.Body.Len())
	}
	if w := get(r, "/big", ""); w.Header().Get("Content-Encoding") != "" {
		t.Fatal("clients without br support must get plain bodies")
	}
}
