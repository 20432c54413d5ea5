// Package frame implements the wire framing used by Honeywell Galaxy panels:
// a one byte biased length, a command byte, the payload and a trailing XOR
// checksum. Every block on the wire, in either direction, uses this layout.
package frame

import (
	"fmt"

	protoerr "github.com/alxayo/go-galaxy-sia/internal/errors"
)

// Command identifies the semantic block kind carried by the command byte.
type Command byte

// Command byte table. The receiver only assembles events from the
// client-to-server data commands; the remaining codes are acknowledged so the
// panel progresses, but carry no event data.
const (
	AccountID Command = 0x23 // '#' account number block, opens an event
	EndOfData Command = 0x30 // '0' end of transmission for this session
	Wait      Command = 0x31 // '1'
	Abort     Command = 0x32 // '2'

	AckAndDisconnect Command = 0x37 // '7'
	Acknowledge      Command = 0x38 // '8' server reply: block accepted
	Reject           Command = 0x39 // '9' server reply: block failed validation

	RemoteLogin   Command = 0x3F // '?'
	Configuration Command = 0x40 // '@'
	ASCIIText     Command = 0x41 // 'A' human readable event text
	NewEvent      Command = 0x4E // 'N' event data sections
)

// commandNames covers every code the receiver recognizes by name.
var commandNames = map[Command]string{
	AccountID:        "ACCOUNT_ID",
	EndOfData:        "END_OF_DATA",
	Wait:             "WAIT",
	Abort:            "ABORT",
	AckAndDisconnect: "ACK_AND_DISCONNECT",
	Acknowledge:      "ACKNOWLEDGE",
	Reject:           "REJECT",
	RemoteLogin:      "REMOTE_LOGIN",
	Configuration:    "CONFIGURATION",
	ASCIIText:        "ASCII",
	NewEvent:         "NEW_EVENT",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(c))
}

// Known reports whether the command byte is in the recognized table.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

const (
	// lengthBias is added to the payload length to form the length byte.
	lengthBias = 0x40
	// MaxPayload is the largest payload encodable in a biased length byte.
	MaxPayload = 0xFF - lengthBias
	// minFrame is length byte + command byte + checksum byte.
	minFrame = 3
)

// encryptedMarker prefixes the proprietary encrypted handshake. Sessions that
// open with it are closed without any reply; answering makes the panel retry
// the handshake on the same socket.
var encryptedMarker = [2]byte{0x05, 0x01}

// Checksum returns the running XOR of b seeded with 0xFF. A well formed frame
// satisfies Checksum(frame[:len-1]) == frame[len-1].
func Checksum(b []byte) byte {
	sum := byte(0xFF)
	for _, v := range b {
		sum ^= v
	}
	return sum
}

// Encode builds a wire block for the given command and payload. Payloads over
// MaxPayload bytes are a programmer error, not network input, and are refused.
func Encode(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("frame.encode: payload %d bytes exceeds maximum %d", len(payload), MaxPayload)
	}
	out := make([]byte, 0, len(payload)+minFrame)
	out = append(out, byte(len(payload)+lengthBias), byte(cmd))
	out = append(out, payload...)
	out = append(out, Checksum(out))
	return out, nil
}

// Decode validates a single wire block and returns its command and payload.
// Length is checked before the checksum so a truncated frame reports the more
// useful failure. The returned payload aliases b.
func Decode(b []byte) (Command, []byte, error) {
	if len(b) < minFrame {
		return 0, nil, protoerr.NewFrameError(protoerr.TooShort, "frame.decode",
			fmt.Errorf("%d bytes, need at least %d", len(b), minFrame))
	}
	declared := int(b[0]) - lengthBias
	if declared < 0 || declared != len(b)-minFrame {
		return 0, nil, protoerr.NewFrameError(protoerr.LengthMismatch, "frame.decode",
			fmt.Errorf("declared payload %d, actual %d", declared, len(b)-minFrame))
	}
	if sum := Checksum(b[:len(b)-1]); sum != b[len(b)-1] {
		return 0, nil, protoerr.NewFrameError(protoerr.BadChecksum, "frame.decode",
			fmt.Errorf("computed 0x%02X, trailer 0x%02X", sum, b[len(b)-1]))
	}
	return Command(b[1]), b[2 : len(b)-1], nil
}

// Ack returns the empty ACKNOWLEDGE block sent for every accepted frame.
func Ack() []byte {
	out, _ := Encode(Acknowledge, nil)
	return out
}

// RejectFrame returns the empty REJECT block sent for failed validation.
func RejectFrame() []byte {
	out, _ := Encode(Reject, nil)
	return out
}

// IsEncryptedHandshake reports whether b opens with the encrypted handshake
// marker. Only the exact two byte prefix is treated as such; any other corrupt
// frame is rejected normally.
func IsEncryptedHandshake(b []byte) bool {
	return len(b) >= 2 && b[0] == encryptedMarker[0] && b[1] == encryptedMarker[1]
}

// Split slices a read buffer into individual frames using the length prefix.
// Panels write one block per segment so a read is almost always exactly one
// frame, but coalesced writes are split here so behavior is unchanged. A
// leading byte below the length bias, or a trailing partial frame, cannot be
// framed and is returned as a single (invalid) slice for the caller to reject.
func Split(buf []byte) [][]byte {
	var frames [][]byte
	for len(buf) > 0 {
		if int(buf[0]) < lengthBias {
			frames = append(frames, buf)
			return frames
		}
		n := int(buf[0]) - lengthBias + minFrame
		if n > len(buf) {
			frames = append(frames, buf)
			return frames
		}
		frames = append(frames, buf[:n])
		buf = buf[n:]
	}
	return frames
}
