// Package event turns the validated blocks of one panel session into alarm
// events: grouping blocks into per-event chunks and decoding the account,
// data and text payloads.
package event

import (
	"log/slog"

	"github.com/alxayo/go-galaxy-sia/internal/sia/frame"
)

// Block is one validated wire block stripped of its framing.
type Block struct {
	Cmd     frame.Command
	Payload []byte
}

// Event is a fully parsed alarm event. Account is the only field guaranteed
// to be set; everything else depends on which blocks the panel sent. Events
// are immutable once handed to the dispatcher.
type Event struct {
	Account  string
	SiteName string // filled from the routing table, falls back to Account

	// From the NEW_EVENT block.
	Time       string // HH:MM
	UserID     string
	Partition  string
	Group      string
	Value      string
	EventCode  string // two uppercase letters, empty when absent or malformed
	Zone       string // 3-4 digits, optional
	EventDescr string // static lookup for EventCode, "Unknown" for unlisted codes

	// From the ASCII block, decoded to Unicode.
	ActionText string

	// Raw payloads in arrival order, kept for diagnostics logging.
	Raw [][]byte
}

// HasCode reports whether the event carries a usable event code. Events
// without one are parsed and logged but never dispatched.
func (e *Event) HasCode() bool { return e.EventCode != "" }

// LogAttrs returns the event's populated fields as slog attributes.
func (e *Event) LogAttrs() []any {
	attrs := []any{slog.String("account", e.Account), slog.String("site", e.SiteName)}
	if e.Time != "" {
		attrs = append(attrs, slog.String("time", e.Time))
	}
	if e.EventCode != "" {
		attrs = append(attrs, slog.String("event_code", e.EventCode), slog.String("event", e.EventDescr))
	}
	if e.UserID != "" {
		attrs = append(attrs, slog.String("user_id", e.UserID))
	}
	if e.Partition != "" {
		attrs = append(attrs, slog.String("partition", e.Partition))
	}
	if e.Zone != "" {
		attrs = append(attrs, slog.String("zone", e.Zone))
	}
	if e.ActionText != "" {
		attrs = append(attrs, slog.String("action", e.ActionText))
	}
	return attrs
}

// Assemble groups a session's blocks into per-event chunks. Each ACCOUNT_ID
// opens a new chunk; every other block joins the current one. Blocks arriving
// before the first ACCOUNT_ID cannot be routed to a site and are dropped.
// END_OF_DATA never reaches this function; the connection handler consumes it.
func Assemble(blocks []Block) [][]Block {
	var chunks [][]Block
	var current []Block
	for _, b := range blocks {
		if b.Cmd == frame.AccountID {
			if current != nil {
				chunks = append(chunks, current)
			}
			current = []Block{b}
			continue
		}
		if current == nil {
			continue
		}
		current = append(current, b)
	}
	if current != nil {
		chunks = append(chunks, current)
	}
	return chunks
}
