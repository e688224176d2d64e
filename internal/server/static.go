package server

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/tikgrab/tikgrab/internal/httputil"
)

// staticFileServer serves the embedded front-end. Unknown paths are a plain
// 404; there is no client-side routing to fall back to.
type staticFileServer struct {
	fileServer http.Handler
	fileSystem fs.FS
}

func newStaticFileServer(fsys fs.FS) *staticFileServer {
	return &staticFileServer{
		fileServer: http.FileServer(http.FS(fsys)),
		fileSystem: fsys,
	}
}

func (s *staticFileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.WriteError(w, http.StatusNotFound, "not found")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	info, err := fs.Stat(s.fileSystem, path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	s.fileServer.ServeHTTP(w, r)
}
