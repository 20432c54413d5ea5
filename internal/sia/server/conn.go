package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/alxayo/go-galaxy-sia/internal/bufpool"
	"github.com/alxayo/go-galaxy-sia/internal/config"
	"github.com/alxayo/go-galaxy-sia/internal/logger"
	"github.com/alxayo/go-galaxy-sia/internal/notify"
	"github.com/alxayo/go-galaxy-sia/internal/sia/event"
	"github.com/alxayo/go-galaxy-sia/internal/sia/frame"
	"github.com/alxayo/go-galaxy-sia/internal/sia/text"
)

const (
	// readBufSize is ample: frames max out at 194 bytes and panels send one
	// block per segment.
	readBufSize = 1024
	// readTimeout bounds how long a silent panel may hold the session open.
	readTimeout = 30 * time.Second
	// writeTimeout bounds one ACK/REJECT write.
	writeTimeout = 5 * time.Second
)

// Dispatcher receives formatted notifications for delivery. Satisfied by
// notify.Dispatcher.
type Dispatcher interface {
	Enqueue(n *notify.Notification)
}

// Handler drives one panel session: validate each frame, acknowledge or
// reject it, collect the data blocks and turn them into events when the
// session ends. One Handler is shared by all connections; it holds no
// per-session state.
type Handler struct {
	cfg      *config.Config
	dec      *text.Decoder
	dispatch Dispatcher
	log      *slog.Logger
}

// NewHandler builds the shared session handler.
func NewHandler(cfg *config.Config, dispatch Dispatcher, log *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		dec:      text.NewDecoder(cfg.CharacterMap()),
		dispatch: dispatch,
		log:      log,
	}
}

// Handle runs the session until the panel ends its transmission, disconnects,
// goes silent or opens an encrypted handshake. Whatever blocks have been
// collected when the session ends are still assembled into events: panels
// drop the line without END_OF_DATA often enough that losing those events is
// not acceptable.
func (h *Handler) Handle(c net.Conn, connID string) {
	defer c.Close()
	log := logger.WithConn(h.log, connID, c.RemoteAddr().String())
	log.Info("panel connected")

	var blocks []event.Block
	buf := bufpool.Get(readBufSize)
	defer bufpool.Put(buf)
	for {
		if err := c.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			log.Warn("setting read deadline failed", "error", err)
			h.flush(log, blocks)
			return
		}
		n, err := c.Read(buf)
		if n > 0 {
			for _, raw := range frame.Split(buf[:n]) {
				if closeNow := h.handleFrame(c, log, raw, &blocks); closeNow {
					h.flush(log, blocks)
					return
				}
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Debug("panel closed connection")
			case isTimeout(err):
				log.Warn("session idle timeout", "timeout", readTimeout)
			default:
				log.Warn("read failed", "error", err)
			}
			h.flush(log, blocks)
			return
		}
	}
}

// handleFrame validates one wire block and answers it. Returns true when the
// session must close (END_OF_DATA, ACK_AND_DISCONNECT, encrypted handshake).
func (h *Handler) handleFrame(c net.Conn, log *slog.Logger, raw []byte, blocks *[]event.Block) bool {
	if frame.IsEncryptedHandshake(raw) {
		// Any reply keeps the panel retrying the encrypted handshake on
		// this socket. Close silently so it falls back or gives up.
		log.Warn("encrypted handshake attempted, closing without reply")
		return true
	}

	cmd, payload, err := frame.Decode(raw)
	if err != nil {
		log.Warn("rejecting invalid frame", "error", err, "bytes", len(raw))
		h.write(c, log, frame.RejectFrame())
		return false
	}
	log.Debug("frame received",
		"command", cmd.String(), "payload_len", len(payload), "payload_hex", fmt.Sprintf("% X", payload))

	switch cmd {
	case frame.AccountID, frame.NewEvent, frame.ASCIIText:
		// The decoded payload aliases the read buffer; copy before keeping.
		p := make([]byte, len(payload))
		copy(p, payload)
		*blocks = append(*blocks, event.Block{Cmd: cmd, Payload: p})
		h.write(c, log, frame.Ack())
	case frame.EndOfData:
		// End of transmission: acknowledge, deliver the session's events and
		// close. The panel reconnects for its next report.
		h.write(c, log, frame.Ack())
		h.flush(log, *blocks)
		*blocks = nil
		return true
	case frame.AckAndDisconnect:
		h.write(c, log, frame.Ack())
		return true
	default:
		// WAIT, ABORT, REMOTE_LOGIN, CONFIGURATION and anything unknown:
		// acknowledge so the panel progresses, collect nothing.
		h.write(c, log, frame.Ack())
	}
	return false
}

// flush assembles the collected blocks into events and hands each routed one
// to the dispatcher.
func (h *Handler) flush(log *slog.Logger, blocks []event.Block) {
	if len(blocks) == 0 {
		return
	}
	for _, chunk := range event.Assemble(blocks) {
		ev := event.Parse(chunk, h.dec, log)
		ev.SiteName = h.cfg.SiteName(ev.Account)
		log.Info("alarm event received", ev.LogAttrs()...)
		if n, ok := notify.Format(ev, h.cfg, log); ok {
			h.dispatch.Enqueue(n)
		}
	}
}

func (h *Handler) write(c net.Conn, log *slog.Logger, b []byte) {
	if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		log.Warn("setting write deadline failed", "error", err)
		return
	}
	if _, err := c.Write(b); err != nil {
		log.Warn("reply write failed", "error", err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
