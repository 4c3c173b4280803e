// ABOUTME: Codec for the compact role-tagged transcript the watch sends in REQUEST_CHAT
// ABOUTME: Decodes "[U]hi[A]hello" style strings into ordered messages and encodes them back

package transcript

import (
	"regexp"
	"strings"
)

// Role identifies the speaker of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Role markers used on the wire.
const (
	MarkerUser      = "[U]"
	MarkerAssistant = "[A]"
)

// MaxTurns is the number of messages the watch keeps in its rolling history.
const MaxTurns = 10

// Message is one turn of the conversation. The JSON tags match the shape
// both provider dialects expect inside their "messages" arrays.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var markerPattern = regexp.MustCompile(`\[U\]|\[A\]`)

// Decode parses an encoded transcript into ordered messages.
//
// A marker sets the pending role, and the next non-empty segment becomes a
// message with that role. Text before the first marker, empty segments, and
// a marker without following text are dropped. Decode never fails.
func Decode(encoded string) []Message {
	messages := []Message{}
	var pending Role

	for _, segment := range split(encoded) {
		switch segment {
		case MarkerUser:
			pending = RoleUser
			continue
		case MarkerAssistant:
			pending = RoleAssistant
			continue
		}
		if segment == "" || pending == "" {
			continue
		}
		messages = append(messages, Message{Role: pending, Content: segment})
		pending = ""
	}

	return messages
}

// split cuts encoded at every marker, keeping the markers as their own segments.
func split(encoded string) []string {
	bounds := markerPattern.FindAllStringIndex(encoded, -1)
	segments := make([]string, 0, len(bounds)*2+1)

	last := 0
	for _, b := range bounds {
		segments = append(segments, encoded[last:b[0]], encoded[b[0]:b[1]])
		last = b[1]
	}
	return append(segments, encoded[last:])
}

// Encode renders messages in the wire format. System messages are skipped
// since the watch never carries them. Encode(Decode(s)) decodes to the same
// messages as s.
func Encode(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			b.WriteString(MarkerUser)
		case RoleAssistant:
			b.WriteString(MarkerAssistant)
		default:
			continue
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// Window returns the last n messages, mirroring the watch dropping its oldest
// turn once the history is full. A non-positive n returns all messages.
func Window(messages []Message, n int) []Message {
	if n <= 0 || len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
