// Package site serves the embedded web front end.
package site

import (
	"context"
	"net/http"
)

// Register attaches the web front end to mux. It claims every GET path
// not taken by a more specific API route.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /", http.FileServer(FS()))
}
