package event

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/alxayo/go-galaxy-sia/internal/sia/frame"
	"github.com/alxayo/go-galaxy-sia/internal/sia/text"
)

// lastSection matches the closing section of a NEW_EVENT payload: a two
// letter event code with an optional 3-4 digit zone.
var lastSection = regexp.MustCompile(`^([A-Z]{2})(\d{3,4})?`)

// sectionIDs are the known two letter identifiers prefixing every section
// except the last. Unknown identifiers are logged at debug and skipped; the
// event still parses.
var sectionIDs = map[string]func(*Event, string){
	"ti": func(e *Event, v string) { e.Time = v },
	"id": func(e *Event, v string) { e.UserID = v },
	"pi": func(e *Event, v string) { e.Partition = v },
	"ri": func(e *Event, v string) { e.Group = v },
	"va": func(e *Event, v string) { e.Value = v },
}

// Parse decodes one event chunk. The chunk's first block is the ACCOUNT_ID
// that opened it; NEW_EVENT and ASCII blocks fill in the rest. Blocks of any
// other kind are informational and contribute nothing.
func Parse(chunk []Block, dec *text.Decoder, log *slog.Logger) *Event {
	ev := &Event{}
	for _, b := range chunk {
		ev.Raw = append(ev.Raw, b.Payload)
		switch b.Cmd {
		case frame.AccountID:
			ev.Account = string(b.Payload)
		case frame.NewEvent:
			parseNewEvent(ev, string(b.Payload), log)
		case frame.ASCIIText:
			ev.ActionText = dec.Decode(b.Payload)
		}
	}
	return ev
}

// parseNewEvent splits the `/`-delimited payload. All sections before the
// last carry an identifier prefix; the last is always the event code.
func parseNewEvent(ev *Event, payload string, log *slog.Logger) {
	payload = stripFunctionLetter(payload)
	sections := strings.Split(payload, "/")

	for _, s := range sections[:len(sections)-1] {
		if len(s) < 2 {
			log.Debug("skipping malformed event section", "section", s)
			continue
		}
		set, ok := sectionIDs[s[:2]]
		if !ok {
			log.Debug("unknown event section identifier", "section", s)
			continue
		}
		set(ev, s[2:])
	}

	last := sections[len(sections)-1]
	m := lastSection.FindStringSubmatch(last)
	if m == nil {
		log.Warn("no event code in final section", "section", last)
		return
	}
	ev.EventCode = m[1]
	ev.Zone = m[2]
	ev.EventDescr = Describe(ev.EventCode)
}

// stripFunctionLetter drops a repeated `N` function letter some panels prefix
// to the payload (`Nti16:38/...`). A bare code such as `NA` stays intact:
// the letter is only stripped when followed by a known section identifier or
// when the payload has multiple sections.
func stripFunctionLetter(payload string) string {
	if len(payload) < 2 || payload[0] != 'N' {
		return payload
	}
	rest := payload[1:]
	if len(rest) >= 2 {
		if _, ok := sectionIDs[rest[:2]]; ok {
			return rest
		}
	}
	if strings.Contains(rest, "/") {
		return rest
	}
	return payload
}
