// ABOUTME: Message keys and typed events exchanged with the watch app
// ABOUTME: A Reply always expands to exactly one text event followed by one end event

package watch

import (
	"context"
	"errors"
	"fmt"
)

// Message keys used in the key-value messages sent over the watch link.
const (
	KeyRequestChat  = "REQUEST_CHAT"
	KeyResponseText = "RESPONSE_TEXT"
	KeyResponseEnd  = "RESPONSE_END"
	KeyReadyStatus  = "READY_STATUS"
	KeyProviderName = "PROVIDER_NAME"
)

// Message is one key-value message on the watch link.
type Message map[string]any

// EventKind distinguishes reply events.
type EventKind int

const (
	EventText EventKind = iota
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return KeyResponseText
	case EventEnd:
		return KeyResponseEnd
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single reply event. Text is only meaningful for EventText.
type Event struct {
	Kind EventKind
	Text string
}

// Message renders the event in its wire form.
func (e Event) Message() Message {
	if e.Kind == EventEnd {
		return Message{KeyResponseEnd: 1}
	}
	return Message{KeyResponseText: e.Text}
}

// Reply is the complete answer to one chat request.
type Reply struct {
	Text string
}

// Events returns the reply as its text event followed by the end event.
func (r Reply) Events() [2]Event {
	return [2]Event{
		{Kind: EventText, Text: r.Text},
		{Kind: EventEnd},
	}
}

// Sender delivers events to the watch.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, ev Event) error

func (f SenderFunc) Send(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Deliver sends both events of r in order. The end event is attempted even
// when the text event fails so the watch is never left waiting.
func Deliver(ctx context.Context, s Sender, r Reply) error {
	var errs []error
	for _, ev := range r.Events() {
		if err := s.Send(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("sending %s: %w", ev.Kind, err))
		}
	}
	return errors.Join(errs...)
}

// Status tells the watch whether the gateway can answer and under which name.
type Status struct {
	Ready        bool   `json:"ready"`
	ProviderName string `json:"provider_name"`
}

// Message renders the status in its wire form.
func (s Status) Message() Message {
	ready := 0
	if s.Ready {
		ready = 1
	}
	return Message{KeyReadyStatus: ready, KeyProviderName: s.ProviderName}
}
