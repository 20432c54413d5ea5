package server

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxayo/go-galaxy-sia/internal/config"
	"github.com/alxayo/go-galaxy-sia/internal/notify"
	"github.com/alxayo/go-galaxy-sia/internal/sia/frame"
)

type captureDispatch struct {
	mu    sync.Mutex
	notes []*notify.Notification
}

func (c *captureDispatch) Enqueue(n *notify.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
}

func (c *captureDispatch) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notes)
}

func (c *captureDispatch) all() []*notify.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*notify.Notification(nil), c.notes...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Accounts = map[string]config.AccountConfig{
		"023456": {
			SiteName: "Main House",
			Ntfy:     config.NtfyConfig{Enabled: true, TopicURL: "https://ntfy.sh/main", Title: "Galaxy FLEX"},
		},
		"758432": {
			SiteName: "Cabin",
			Ntfy:     config.NtfyConfig{Enabled: true, TopicURL: "https://ntfy.sh/cabin", Title: "Galaxy FLEX"},
		},
	}
	return cfg
}

func startServer(t *testing.T) (*Server, *captureDispatch) {
	t.Helper()
	dispatch := &captureDispatch{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(testConfig(t), dispatch, log)
	srv := New("127.0.0.1:0", h, log)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return srv, dispatch
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func encode(t *testing.T, cmd frame.Command, payload string) []byte {
	t.Helper()
	b, err := frame.Encode(cmd, []byte(payload))
	require.NoError(t, err)
	return b
}

// send writes one frame and returns the 3 byte reply.
func send(t *testing.T, c net.Conn, b []byte) []byte {
	t.Helper()
	require.NoError(t, c.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := c.Write(b)
	require.NoError(t, err)
	reply := make([]byte, 3)
	_, err = io.ReadFull(c, reply)
	require.NoError(t, err)
	return reply
}

func TestSessionSingleEvent(t *testing.T) {
	srv, dispatch := startServer(t)
	c := dial(t, srv)

	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.AccountID, "023456")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.NewEvent, "Nti16:38/id001/pi010/CL")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.ASCIIText, "TILLKOPPLAT  OMR01")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.EndOfData, "")))

	require.Eventually(t, func() bool { return dispatch.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	n := dispatch.all()[0]
	assert.Equal(t, "Galaxy FLEX: Main House", n.Title)
	assert.Equal(t, "16:38 TILLKOPPLAT  OMR01", n.Body)
	assert.Equal(t, "https://ntfy.sh/main", n.TopicURL)
}

func TestSessionMultipleEvents(t *testing.T) {
	srv, dispatch := startServer(t)
	c := dial(t, srv)

	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.AccountID, "023456")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.NewEvent, "ti10:00/id001/OP")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.AccountID, "758432")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.NewEvent, "ti10:01/id002/CL")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.EndOfData, "")))

	require.Eventually(t, func() bool { return dispatch.count() == 2 },
		2*time.Second, 10*time.Millisecond)
	notes := dispatch.all()
	assert.Equal(t, "Galaxy FLEX: Main House", notes[0].Title)
	assert.Equal(t, "https://ntfy.sh/main", notes[0].TopicURL)
	assert.Equal(t, "Galaxy FLEX: Cabin", notes[1].Title)
	assert.Equal(t, "https://ntfy.sh/cabin", notes[1].TopicURL)
}

func TestCorruptFrameRejectedSessionContinues(t *testing.T) {
	srv, dispatch := startServer(t)
	c := dial(t, srv)

	bad := encode(t, frame.AccountID, "023456")
	bad[len(bad)-1] ^= 0xFF
	assert.Equal(t, frame.RejectFrame(), send(t, c, bad))

	// The session survives the reject and accepts the corrected frame.
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.AccountID, "023456")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.NewEvent, "ti11:00/BA1012")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.EndOfData, "")))

	require.Eventually(t, func() bool { return dispatch.count() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestEncryptedHandshakeClosedSilently(t *testing.T) {
	srv, _ := startServer(t)
	c := dial(t, srv)

	require.NoError(t, c.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := c.Write([]byte{0x05, 0x01, 0x00, 0x44})
	require.NoError(t, err)

	// No reply at all: the read returns EOF with zero bytes.
	got, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEndOfDataClosesSession(t *testing.T) {
	srv, dispatch := startServer(t)
	c := dial(t, srv)

	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.AccountID, "023456")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.EndOfData, "")))

	// The server hangs up after the final ACK rather than holding the
	// session open until the idle timeout.
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	got, err := io.ReadAll(c)
	require.NoError(t, err, "expected EOF, not a blocked read")
	assert.Empty(t, got)
	require.Eventually(t, func() bool { return srv.ConnectionCount() == 0 },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, dispatch.count(), "account-only session has no event code")
}

func TestDisconnectWithoutEndOfDataStillFlushes(t *testing.T) {
	srv, dispatch := startServer(t)
	c := dial(t, srv)

	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.AccountID, "023456")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.NewEvent, "ti12:30/id004/CL")))
	require.NoError(t, c.Close())

	require.Eventually(t, func() bool { return dispatch.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Contains(t, dispatch.all()[0].Body, "12:30")
}

func TestCoalescedFramesInOneSegment(t *testing.T) {
	srv, dispatch := startServer(t)
	c := dial(t, srv)

	var burst []byte
	burst = append(burst, encode(t, frame.AccountID, "023456")...)
	burst = append(burst, encode(t, frame.NewEvent, "ti09:15/id001/OP")...)
	burst = append(burst, encode(t, frame.EndOfData, "")...)

	require.NoError(t, c.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := c.Write(burst)
	require.NoError(t, err)

	reply := make([]byte, 9)
	_, err = io.ReadFull(c, reply)
	require.NoError(t, err)
	assert.Equal(t, append(append(frame.Ack(), frame.Ack()...), frame.Ack()...), reply)

	require.Eventually(t, func() bool { return dispatch.count() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestUnroutedAccountParsedButNotDispatched(t *testing.T) {
	srv, dispatch := startServer(t)
	c := dial(t, srv)

	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.AccountID, "999999")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.NewEvent, "ti08:00/RP")))
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.EndOfData, "")))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, dispatch.count())
}

func TestServerLifecycle(t *testing.T) {
	srv, _ := startServer(t)
	require.Error(t, srv.Start(), "double start refused")

	c := dial(t, srv)
	assert.Equal(t, frame.Ack(), send(t, c, encode(t, frame.AccountID, "023456")))
	require.Eventually(t, func() bool { return srv.ConnectionCount() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Stop())
	assert.Equal(t, 0, srv.ConnectionCount())
	require.NoError(t, srv.Stop(), "stop is idempotent")
}
