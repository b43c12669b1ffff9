package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"libadmin/pkg/grid"
	"libadmin/pkg/models"
)

//go:embed templates/*
var templatesFS embed.FS

type renderer struct {
	baseTemplate *template.Template
	templatesFS  fs.FS
}

func newRenderer() (*renderer, error) {
	base, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/base.html", "templates/table.html")
	if err != nil {
		return nil, fmt.Errorf("parse base templates: %w", err)
	}
	return &renderer{baseTemplate: base, templatesFS: templatesFS}, nil
}

// PageData is handed to every page.
type PageData struct {
	Title       string
	CurrentPath string
	Session     *UserSession
	Flash       *FlashMessage
	Data        any
}

// render clones the base template and parses the page template into the
// clone so the "content" blocks of different pages never collide.
func (r *renderer) render(w http.ResponseWriter, status int, name string, page PageData) error {
	tmpl, err := r.baseTemplate.Clone()
	if err != nil {
		return fmt.Errorf("clone template: %w", err)
	}
	path := "templates/" + name
	if _, err := tmpl.ParseFS(r.templatesFS, path); err != nil {
		return fmt.Errorf("parse page template %s: %w", path, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tmpl.ExecuteTemplate(w, "base", page)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": models.FormatDate,
		"roleLabel":  func(r models.Role) string { return r.Label() },
		"editable":   func(c grid.Cell) bool { return c.Editable() },
		"isAction":   func(c grid.Cell) bool { return c.Kind == grid.KindAction },
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
	}
}
