package assets

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMimeFromExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".js", "application/javascript"},
		{".css", "text/css; charset=utf-8"},
		{".html", "text/html; charset=utf-8"},
		{".qqqqqq", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := mimeFromExt(tt.ext); got != tt.want {
			t.Errorf("mimeFromExt(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestConfigPage(t *testing.T) {
	h, err := ConfigPage(PageData{
		Providers: []ProviderDefaults{
			{Kind: "claude", Name: "Claude", BaseURL: "https://api.anthropic.com/v1/messages", Model: "claude-haiku-4-5", WebSearch: true},
			{Kind: "custom"},
		},
		DefaultProvider: "claude",
		SystemMessage:   `Keep it short, "please" </script>`,
	})
	if err != nil {
		t.Fatalf("ConfigPage: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `<option value="claude">Claude</option>`) {
		t.Error("missing claude option")
	}
	if !strings.Contains(body, `<option value="custom">Custom</option>`) {
		t.Error("custom option should fall back to a generic label")
	}
	if !strings.Contains(body, "claude-haiku-4-5") {
		t.Error("provider defaults not embedded")
	}
	// The system message must be escaped inside the script block.
	if strings.Contains(body, `"please" </script>`) {
		t.Error("system message was not escaped")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/config", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestFileServer(t *testing.T) {
	h := http.StripPrefix("/static/", FileServer())

	tests := []struct {
		path string
		code int
		ct   string
	}{
		{"/static/config.js", http.StatusOK, "application/javascript"},
		{"/static/config.css", http.StatusOK, "text/css; charset=utf-8"},
		{"/static/config.html", http.StatusNotFound, ""},
		{"/static/", http.StatusNotFound, ""},
		{"/static/missing.js", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.code {
			t.Errorf("GET %s: status = %d, want %d", tt.path, rec.Code, tt.code)
		}
		if tt.ct != "" && rec.Header().Get("Content-Type") != tt.ct {
			t.Errorf("GET %s: Content-Type = %q, want %q", tt.path, rec.Header().Get("Content-Type"), tt.ct)
		}
	}
}
