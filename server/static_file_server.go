package server

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed static/*
var staticFiles embed.FS

func StaticFilesFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to create sub filesystem: " + err.Error())
	}
	return subFS
}

// StaticHandler serves the installable app assets under /static/.
func (s *Server) StaticHandler() http.Handler {
	files := http.StripPrefix(RouteStatic, http.FileServer(http.FS(StaticFilesFS())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.PWAEnabled() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// ManifestHandler serves the web app manifest when the console is installable.
func (s *Server) ManifestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.config.PWAEnabled() {
			http.NotFound(w, r)
			return
		}
		if err := StreamFile(w, "manifest.webmanifest"); err != nil {
			log.Error().Err(err).Msg("failed to serve manifest")
			http.Error(w, "manifest unavailable", http.StatusInternalServerError)
		}
	}
}

func StreamFile(w http.ResponseWriter, fileName string) error {
	data, err := fs.ReadFile(StaticFilesFS(), fileName)
	if err != nil {
		return errors.Wrapf(err, "[StreamFile] reading %s", fileName)
	}

	ctype := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	switch {
	case strings.HasSuffix(fileName, ".webmanifest"):
		ctype = "application/manifest+json"
	case ctype == "":
		ctype = http.DetectContentType(data)
	}
	if strings.HasPrefix(ctype, "text/") && !strings.Contains(strings.ToLower(ctype), "charset=") {
		ctype += "; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "[StreamFile] writing %s", fileName)
	}
	return nil
}
