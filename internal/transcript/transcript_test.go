// ABOUTME: Tests for transcript decoding and encoding
// ABOUTME: Covers marker handling, dropped segments, round trips, and history windowing

package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		want    []Message
	}{
		{
			name:    "single user turn",
			encoded: "[U]Hello",
			want:    []Message{{Role: RoleUser, Content: "Hello"}},
		},
		{
			name:    "alternating turns",
			encoded: "[U]Hi[A]Hello there[U]How are you?",
			want: []Message{
				{Role: RoleUser, Content: "Hi"},
				{Role: RoleAssistant, Content: "Hello there"},
				{Role: RoleUser, Content: "How are you?"},
			},
		},
		{
			name:    "text before first marker is dropped",
			encoded: "garbage[U]Hi",
			want:    []Message{{Role: RoleUser, Content: "Hi"}},
		},
		{
			name:    "consecutive markers keep the last role",
			encoded: "[U][A]Hi",
			want:    []Message{{Role: RoleAssistant, Content: "Hi"}},
		},
		{
			name:    "trailing marker without text",
			encoded: "[U]Hi[A]",
			want:    []Message{{Role: RoleUser, Content: "Hi"}},
		},
		{
			name:    "whitespace content is preserved",
			encoded: "[U] spaced out ",
			want:    []Message{{Role: RoleUser, Content: " spaced out "}},
		},
		{
			name:    "partial markers are plain text",
			encoded: "[U]use [X] and [u] freely",
			want:    []Message{{Role: RoleUser, Content: "use [X] and [u] freely"}},
		},
		{
			name:    "empty input",
			encoded: "",
			want:    []Message{},
		},
		{
			name:    "no markers at all",
			encoded: "just text",
			want:    []Message{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.encoded)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_NeverProducesEmptyOrSystem(t *testing.T) {
	inputs := []string{"[U]", "[A][A][U]", "[U]a[A]b[U]", "x[A]y", "[U][U][U]z"}
	for _, in := range inputs {
		for _, m := range Decode(in) {
			assert.NotEmpty(t, m.Content, "input %q", in)
			assert.NotEqual(t, RoleSystem, m.Role, "input %q", in)
		}
	}
}

func TestDecode_NotNil(t *testing.T) {
	got := Decode("[A]")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEncode_RoundTrip(t *testing.T) {
	inputs := []string{
		"[U]Hi[A]Hello there[U]How are you?",
		"noise[U][A]answer[U]",
		"[A]only assistant",
		"",
	}
	for _, in := range inputs {
		decoded := Decode(in)
		assert.Equal(t, decoded, Decode(Encode(decoded)), "input %q", in)
	}
}

func TestEncode_SkipsSystem(t *testing.T) {
	got := Encode([]Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello"},
	})
	assert.Equal(t, "[U]Hi[A]Hello", got)
}

func TestWindow(t *testing.T) {
	msgs := make([]Message, 0, 12)
	for i := 0; i < 12; i++ {
		msgs = append(msgs, Message{Role: RoleUser, Content: string(rune('a' + i))})
	}

	got := Window(msgs, MaxTurns)
	require.Len(t, got, MaxTurns)
	assert.Equal(t, "c", got[0].Content)
	assert.Equal(t, "l", got[len(got)-1].Content)

	assert.Len(t, Window(msgs[:3], MaxTurns), 3)
	assert.Len(t, Window(msgs, 0), 12)
}
