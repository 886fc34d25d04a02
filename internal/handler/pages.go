package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
)

// PageHandler renders the dashboard shell. Templates are parsed once at
// startup; everything dynamic happens client-side against the JSON API.
type PageHandler struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewPageHandler parses the HTML templates. base.html holds the page frame
// and pulls in the {{define "content"}} block from dashboard.html.
func NewPageHandler(templateDir string, logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFiles(
		filepath.Join(templateDir, "base.html"),
		filepath.Join(templateDir, "dashboard.html"),
	)
	if err != nil {
		return nil, err
	}
	return &PageHandler{templates: tmpl, logger: logger}, nil
}

// HandleIndex serves the dashboard page.
//
// HTTP: GET /
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title": "LearnPath — Personalized Learning Paths",
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
