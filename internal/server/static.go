package server

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web
var placeholder embed.FS

// StaticHandler serves the front-end build in dir. Paths that do not name a
// file fall back to index.html so client-side routes resolve. When dir does
// not exist an embedded placeholder page is served instead.
func StaticHandler(dir string, logger *slog.Logger) http.Handler {
	fsys := assets(dir, logger)
	files := http.FileServerFS(fsys)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "."
		}
		if _, err := fs.Stat(fsys, name); err != nil {
			http.ServeFileFS(w, r, fsys, "index.html")
			return
		}
		files.ServeHTTP(w, r)
	})
}

func assets(dir string, logger *slog.Logger) fs.FS {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		logger.Info("serving static assets", "dir", dir)
		return os.DirFS(dir)
	}

	logger.Warn("static directory not found, serving placeholder", "dir", dir)
	sub, err := fs.Sub(placeholder, "web")
	if err != nil {
		panic(err)
	}
	return sub
}
