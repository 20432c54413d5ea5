// Package text decodes the Galaxy panel's proprietary 8-bit text. Payload
// bytes are first widened through ISO-8859-1 so every byte survives as a
// codepoint, then the configured character map rewrites the handful of
// codepoints the panel uses for national characters.
package text

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// DefaultMap holds the byte substitutions confirmed from panel captures.
// Additional entries come from configuration.
func DefaultMap() map[byte]rune {
	return map[byte]rune{
		0x84: 'ä',
		0x86: 'å',
		0x8E: 'Ä',
		0x8F: 'Å',
		0x94: 'ö',
		0x99: 'Ö',
	}
}

// Decoder maps raw ASCII-block payloads to Unicode strings.
type Decoder struct {
	replacer *strings.Replacer
}

// NewDecoder builds a decoder for the given character map. A nil map yields a
// pass-through ISO-8859-1 decoder.
func NewDecoder(m map[byte]rune) *Decoder {
	pairs := make([]string, 0, len(m)*2)
	for b, r := range m {
		// The ISO-8859-1 codepoint of a byte is the byte value itself.
		pairs = append(pairs, string(rune(b)), string(r))
	}
	return &Decoder{replacer: strings.NewReplacer(pairs...)}
}

// Decode converts payload bytes to a trimmed Unicode string. Bytes outside
// the character map keep their ISO-8859-1 interpretation, so pure ASCII text
// passes through untouched regardless of the map contents.
func (d *Decoder) Decode(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().String(string(b))
	if err != nil {
		// ISO-8859-1 maps every byte; decoding cannot fail in practice.
		s = string(b)
	}
	return strings.TrimSpace(d.replacer.Replace(s))
}
