package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	tests := []struct {
		path      string
		requestID string
		wantLevel string
	}{
		{"/ok", "", "info"},
		{"/missing?q=1", "req-42", "warning"},
		{"/broken", "", "error"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf.Reset()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.requestID != "" {
				req.Header.Set(RequestIDHeader, tt.requestID)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log output is not one json entry: %v\n%s", err, buf.String())
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if entry["uri"] != tt.path {
				t.Errorf("uri = %v, want %s", entry["uri"], tt.path)
			}
			id, _ := entry["request_id"].(string)
			if id == "" || w.Header().Get(RequestIDHeader) != id {
				t.Errorf("request id %q not echoed, header %q", id, w.Header().Get(RequestIDHeader))
			}
			if tt.requestID != "" && id != tt.requestID {
				t.Errorf("request id = %q, want %q", id, tt.requestID)
			}
		})
	}
}
