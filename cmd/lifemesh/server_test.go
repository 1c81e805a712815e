package main

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/lifemesh/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// httptestServer serves s and returns its base URL.
func httptestServer(t *testing.T, s *server.Server) string {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}
