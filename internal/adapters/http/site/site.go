// Package site serves the embedded live viewer and the API description.
package site

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
)

// Error constants.
var (
	ErrNilMux = errors.New("site: nil mux")
)

//go:embed static/*
var staticFS embed.FS

// FS returns the embedded site files.
func FS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return http.FS(staticFS)
	}
	return http.FS(sub)
}

// Register attaches the site routes to mux.
//
//	GET /              -> live viewer (connects to /ws)
//	GET /openapi.yaml  -> OpenAPI description of the HTTP API
func Register(mux *http.ServeMux) error {
	if mux == nil {
		return ErrNilMux
	}
	files := http.FileServer(FS())
	mux.Handle("GET /{$}", files)
	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		http.ServeFileFS(w, r, staticFS, "static/openapi.yaml")
	})
	return nil
}
