// Package assets serves the provider configuration page and its static files,
// embedded via go:embed. The page reads and replaces settings through
// /api/settings, so it carries no secrets itself.
package assets

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

var pageTemplate = template.Must(template.ParseFS(staticFS, "static/config.html"))

// ProviderDefaults is what the page pre-fills when a provider is selected.
type ProviderDefaults struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	WebSearch bool   `json:"web_search"`
}

// PageData parameterizes the configuration page.
type PageData struct {
	Providers       []ProviderDefaults
	DefaultProvider string
	SystemMessage   string
}

// mimeFromExt pins the types of the page's own assets so they do not depend
// on the host's MIME database.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// ConfigPage renders the configuration page once and serves it.
func ConfigPage(data PageData) (http.Handler, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	page := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(page)
	}), nil
}

// FileServer returns an http.Handler that serves embedded files from static/.
// The handler expects paths relative to static/ (strip /static/ before calling).
func FileServer() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ext := strings.ToLower(path.Ext(r.URL.Path))
		// The page template is only served rendered, and directories are not listed.
		if ext == ".html" || r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		if ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}
		w.Header().Set("Cache-Control", "no-cache")

		fileServer.ServeHTTP(w, r)
	})
}
