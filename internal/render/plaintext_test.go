// ABOUTME: Tests for Markdown to plain text flattening
// ABOUTME: Covers emphasis, headings, lists, links, and code

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain passes through", "It is sunny today.", "It is sunny today."},
		{"emphasis", "It is **very** _sunny_.", "It is very sunny."},
		{"heading and paragraph", "# Weather\n\nSunny and warm.", "Weather\n\nSunny and warm."},
		{"tight list", "- one\n- two\n- three", "- one\n- two\n- three"},
		{"link keeps label", "See [the forecast](https://example.com).", "See the forecast."},
		{"inline code", "Run `ls -la` now.", "Run ls -la now."},
		{"fenced code", "```\nfmt.Println(1)\n```", "fmt.Println(1)"},
		{"autolink", "Visit <https://example.com>", "Visit https://example.com"},
		{"thematic break dropped", "a\n\n---\n\nb", "a\n\nb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}
