// Package notify formats alarm events into push notifications and delivers
// them through a bounded retry queue to an ntfy compatible endpoint.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/alxayo/go-galaxy-sia/internal/config"
	"github.com/alxayo/go-galaxy-sia/internal/sia/event"
)

// Notification is one formatted message ready for delivery.
type Notification struct {
	Title    string
	Body     string
	Priority int // ntfy priority 1..5
	TopicURL string
	Auth     *config.AuthConfig
}

// Format builds the notification for an event, or reports false when nothing
// should be sent: the event carries no code, or no enabled topic routes the
// account.
func Format(ev *event.Event, cfg *config.Config, log *slog.Logger) (*Notification, bool) {
	if !ev.HasCode() {
		log.Debug("event has no event code, nothing to notify", "account", ev.Account)
		return nil, false
	}
	topic, ok := cfg.Topic(ev.Account)
	if !ok {
		log.Debug("no enabled topic for account, skipping notification", "account", ev.Account)
		return nil, false
	}

	title := topic.Title
	if title == "" {
		title = "Galaxy Alarm"
	}
	site := ev.SiteName
	if site == "" {
		site = ev.Account
	}

	return &Notification{
		Title:    fmt.Sprintf("%s: %s", title, site),
		Body:     body(ev),
		Priority: cfg.Priority(ev.EventCode),
		TopicURL: topic.TopicURL,
		Auth:     topic.Auth,
	}, true
}

// body renders the notification text. The rich ASCII block text wins when
// present; otherwise the message is built from the data block fields. The
// site name lives in the title and is left out of the body.
func body(ev *event.Event) string {
	t := ev.Time
	if t == "" {
		t = "??"
	}

	if ev.ActionText != "" {
		msg := t + " " + ev.ActionText
		if ev.Zone != "" && !strings.Contains(ev.ActionText, ev.Zone) {
			msg += fmt.Sprintf(" (Zone %s)", ev.Zone)
		}
		return strings.TrimSpace(msg)
	}

	msg := t
	if ev.EventCode != "" {
		msg += fmt.Sprintf(" Event: %s (%s)", ev.EventCode, ev.EventDescr)
	}
	if ev.UserID != "" {
		msg += " User: " + ev.UserID
	}
	if ev.Zone != "" {
		msg += " Zone: " + ev.Zone
	}
	if ev.Partition != "" {
		msg += " Partition: " + ev.Partition
	}
	return strings.TrimSpace(msg)
}
