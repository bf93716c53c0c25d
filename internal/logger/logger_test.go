package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	incoming := uuid.New().String()
	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{"generates when missing", "", false},
		{"reuses valid id", incoming, true},
		{"replaces invalid id", "not-a-uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestIDMiddleware())
			var seen string
			r.GET("/", func(c *gin.Context) {
				seen = c.GetString("request_id")
				if FromGin(c) == nil {
					t.Error("FromGin returned nil")
				}
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			r.ServeHTTP(w, req)

			if _, err := uuid.Parse(seen); err != nil {
				t.Fatalf("request_id = %q, want a uuid", seen)
			}
			if got := w.Header().Get("X-Request-ID"); got != seen {
				t.Errorf("X-Request-ID = %q, want %q", got, seen)
			}
			if tt.reuse && seen != incoming {
				t.Errorf("request_id = %q, want %q", seen, incoming)
			}
		})
	}
}
