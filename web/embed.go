// Package web embeds the participant front-end (dist/) and serves it.
//
// The pages hold no study logic: app.js connects to /ws/session and renders
// whatever state the server pushes.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// Assets returns the embedded front-end rooted at dist/.
func Assets() fs.FS {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return sub
}

// Handler serves the embedded front-end. Unknown paths get index.html so
// study links with arbitrary paths still open the intro screen.
func Handler() http.Handler {
	assets := Assets()
	fileServer := http.FileServer(http.FS(assets))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		if f, err := assets.Open(name); err == nil {
			if closeErr := f.Close(); closeErr != nil {
				slog.Debug("web: failed to close embedded file", "path", name, "error", closeErr)
			}
		} else {
			// Keep the query string: participant parameters travel in it.
			r.URL.Path = "/"
			name = "index.html"
		}

		if name == "index.html" {
			w.Header().Set("Cache-Control", "no-cache")
		}
		fileServer.ServeHTTP(w, r)
	})
}

// ImagesHandler serves study images from dir under /static/images/.
func ImagesHandler(dir string) http.Handler {
	return http.StripPrefix("/static/images/", http.FileServer(http.Dir(dir)))
}
