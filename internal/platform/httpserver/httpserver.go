// Package httpserver builds the brokerage API server.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. The write timeout sits above the 30s handler
// timeout middleware so slow mediation or matching queries surface as a
// 503 from the middleware instead of a dropped connection.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
