package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/alxayo/go-galaxy-sia/internal/config"
)

// fakeSender records deliveries and fails the first failures attempts.
type fakeSender struct {
	mu       sync.Mutex
	failures int
	sent     []*Notification
	attempts int
}

func (f *fakeSender) Send(_ context.Context, n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("http 500")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func queueConfig(size int) config.QueueConfig {
	return config.QueueConfig{
		MaxQueueSize:        size,
		MaxRetries:          0,
		MaxRetryTimeMinutes: 60,
		ShutdownPolicy:      "discard",
	}
}

func note(title string) *Notification {
	return &Notification{Title: title, Body: "b", Priority: 3, TopicURL: "https://ntfy.sh/t"}
}

func TestEnqueueDropsOldestWhenFull(t *testing.T) {
	d := NewDispatcher(queueConfig(2), &fakeSender{}, discard())
	j1, j2, j3 := note("J1"), note("J2"), note("J3")
	d.Enqueue(j1)
	d.Enqueue(j2)
	d.Enqueue(j3)

	require.Equal(t, 2, d.Len(), "queue stays at capacity")
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Same(t, j2, d.queue[0].Notification)
	assert.Same(t, j3, d.queue[1].Notification)
}

func TestWorkerDeliversInOrder(t *testing.T) {
	s := &fakeSender{}
	d := NewDispatcher(queueConfig(10), s, discard())
	d.Start()
	d.Enqueue(note("first"))
	d.Enqueue(note("second"))

	require.Eventually(t, func() bool { return s.sentCount() == 2 },
		2*time.Second, 10*time.Millisecond)
	d.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, "first", s.sent[0].Title)
	assert.Equal(t, "second", s.sent[1].Title)
}

func TestWorkerRetriesAfterBackoff(t *testing.T) {
	s := &fakeSender{failures: 1}
	d := NewDispatcher(queueConfig(10), s, discard())

	// Fake clock we can jump past the 60s backoff.
	var offset atomic.Int64
	d.now = func() time.Time { return time.Now().Add(time.Duration(offset.Load()) * time.Second) }

	d.Start()
	defer d.Stop()
	d.Enqueue(note("retry me"))

	require.Eventually(t, func() bool { return s.attemptCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	require.Equal(t, 0, s.sentCount())

	offset.Store(120)
	require.Eventually(t, func() bool { return s.sentCount() == 1 },
		5*time.Second, 25*time.Millisecond)
}

func TestWorkerExhaustsRetries(t *testing.T) {
	s := &fakeSender{failures: 1000}
	cfg := queueConfig(10)
	cfg.MaxRetries = 2
	d := NewDispatcher(cfg, s, discard())

	var offset atomic.Int64
	d.now = func() time.Time { return time.Now().Add(time.Duration(offset.Load()) * time.Second) }

	d.Start()
	defer d.Stop()
	d.Enqueue(note("doomed"))

	require.Eventually(t, func() bool { return s.attemptCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	offset.Store(100)
	require.Eventually(t, func() bool { return s.attemptCount() == 2 },
		5*time.Second, 25*time.Millisecond)
	offset.Store(300)
	require.Eventually(t, func() bool { return s.attemptCount() == 3 },
		5*time.Second, 25*time.Millisecond)

	// Third failure exceeds MaxRetries=2; the job is dropped for good.
	offset.Store(10000)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, s.attemptCount())
	assert.Equal(t, 0, d.Len())
}

func TestStopDiscardsPending(t *testing.T) {
	s := &fakeSender{}
	d := NewDispatcher(queueConfig(10), s, discard())
	// Jobs deferred far into the future never become due.
	d.mu.Lock()
	d.queue = []*Job{
		{Notification: note("a"), NextAttempt: time.Now().Unix() + 3600},
		{Notification: note("b"), NextAttempt: time.Now().Unix() + 3600},
	}
	d.mu.Unlock()

	d.Start()
	time.Sleep(50 * time.Millisecond)
	d.Stop()
	assert.Equal(t, 0, s.sentCount())
	assert.Equal(t, 0, d.Len())
}

func TestStopDrainsPending(t *testing.T) {
	s := &fakeSender{}
	cfg := queueConfig(10)
	cfg.ShutdownPolicy = "drain"
	d := NewDispatcher(cfg, s, discard())
	d.mu.Lock()
	d.queue = []*Job{
		{Notification: note("a"), NextAttempt: time.Now().Unix() + 3600},
		{Notification: note("b"), NextAttempt: time.Now().Unix() + 3600},
	}
	d.mu.Unlock()

	d.Start()
	time.Sleep(50 * time.Millisecond)
	d.Stop()
	assert.Equal(t, 2, s.sentCount(), "drain attempts every pending job once")
}

func TestEnqueueAfterStopIsDropped(t *testing.T) {
	d := NewDispatcher(queueConfig(10), &fakeSender{}, discard())
	d.Start()
	d.Stop()
	d.Enqueue(note("late"))
	assert.Equal(t, 0, d.Len())
}

func TestRetryDelaySequence(t *testing.T) {
	want := []time.Duration{
		60 * time.Second, 120 * time.Second, 240 * time.Second, 480 * time.Second,
		960 * time.Second, 1920 * time.Second, 3600 * time.Second, 3600 * time.Second,
		3600 * time.Second, 3600 * time.Second,
	}
	for k := 1; k <= 10; k++ {
		assert.Equal(t, want[k-1], retryDelay(k, 60), "retry %d", k)
	}
}

// min(60 * 2^(k-1), ceiling) for any retry count and ceiling in range.
func TestRetryDelayProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(1, 40).Draw(t, "retries")
		maxMinutes := rapid.IntRange(1, 1000).Draw(t, "max_minutes")
		got := retryDelay(k, maxMinutes)

		ceilingSec := int64(maxMinutes) * 60
		wantSec := ceilingSec
		if k-1 < 30 {
			if s := int64(60) << (k - 1); s < ceilingSec {
				wantSec = s
			}
		}
		want := time.Duration(wantSec) * time.Second
		if got != want {
			t.Fatalf("retryDelay(%d, %d) = %v, want %v", k, maxMinutes, got, want)
		}
	})
}
