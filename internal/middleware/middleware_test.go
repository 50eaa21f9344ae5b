package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(3)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := range 3 {
		if code := hit("10.0.0.1"); code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d, want 204", i, code)
		}
	}
	if code := hit("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("over burst: status = %d, want 429", code)
	}
	if code := hit("10.0.0.2"); code != http.StatusNoContent {
		t.Errorf("other client: status = %d, want 204", code)
	}
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat(`{"question":"x"}`, 200)

	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 256, SkipPaths: []string{"/metrics"}}))
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, large) })

	get := func(path, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", accept)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/large", "gzip, br;q=0.9")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("large body not compressed")
	}
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(body) != large {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(body), len(large))
	}

	tests := []struct {
		path, accept, want string
	}{
		{"/small", "br", "ok"},
		{"/large", "gzip", large},
		{"/metrics", "br", large},
	}
	for _, tt := range tests {
		w := get(tt.path, tt.accept)
		if enc := w.Header().Get("Content-Encoding"); enc != "" {
			t.Errorf("%s (%s): Content-Encoding = %q, want none", tt.path, tt.accept, enc)
		}
		if w.Body.String() != tt.want {
			t.Errorf("%s (%s): body mismatch", tt.path, tt.accept)
		}
	}
}
