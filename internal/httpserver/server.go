// Package httpserver builds the *http.Server each binary runs, adapted
// directly from the teacher's internal/api/server/server.go.
package httpserver

import "net/http"

// New builds an *http.Server bound to addr serving handler.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}
}
