package middlewares

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		body           string
		contentType    string
		wantStatusCode int
	}{
		{name: "json", method: http.MethodPost, body: `{}`, contentType: "application/json", wantStatusCode: http.StatusOK},
		{name: "json_with_charset", method: http.MethodPut, body: `{}`, contentType: "application/json; charset=utf-8", wantStatusCode: http.StatusOK},
		{name: "form", method: http.MethodPost, body: `a=b`, contentType: "application/x-www-form-urlencoded", wantStatusCode: http.StatusUnsupportedMediaType},
		{name: "missing_type", method: http.MethodPost, body: `{}`, wantStatusCode: http.StatusUnsupportedMediaType},
		{name: "no_body", method: http.MethodPost, wantStatusCode: http.StatusOK},
		{name: "get_ignored", method: http.MethodGet, contentType: "text/plain", wantStatusCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequireJSON())
			r.Handle(tt.method, "/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/x", bytes.NewBufferString(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatusCode)
			}
		})
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxRequestID))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get(RequestIDHeader) != "abc-123" || w.Body.String() != "abc-123" {
		t.Fatalf("request id not propagated: header=%q body=%q", w.Header().Get(RequestIDHeader), w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected a generated request id")
	}
}
