package server

import (
	"embed"
	"html/template"

	"github.com/pkg/errors"
)

//go:embed templates/*
var templateFiles embed.FS

const loginTemplate = "login.html"

// parseTemplates loads every page the console renders from the embedded
// templates folder.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "[parseTemplates] parsing embedded templates")
	}
	return tmpl, nil
}
