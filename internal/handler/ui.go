package handler

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
)

// UIHandler serves the single-page dashboard shell. All data comes through
// the JSON API; the shell is static.
type UIHandler struct {
	tmpl   *template.Template
	logger *slog.Logger
}

// NewUIHandler parses the shell template from templateDir.
func NewUIHandler(templateDir string, logger *slog.Logger) (*UIHandler, error) {
	tmpl, err := template.ParseFiles(filepath.Join(templateDir, "index.html"))
	if err != nil {
		return nil, fmt.Errorf("handler: parsing index template: %w", err)
	}
	return &UIHandler{tmpl: tmpl, logger: logger}, nil
}

// HandleIndex serves GET /.
func (h *UIHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, nil); err != nil {
		h.logger.Error("rendering index", slog.String("error", err.Error()))
	}
}
