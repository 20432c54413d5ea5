package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alxayo/go-galaxy-sia/internal/config"
)

// rotateDelay paces the queue rotation used to defer jobs whose retry time
// has not arrived. Coarse scheduling is fine at the queue sizes involved.
const rotateDelay = time.Second

// Job is one queued delivery with its retry state.
type Job struct {
	Notification *Notification
	Retries      int
	// NextAttempt is the earliest unix second the job may be attempted;
	// zero means immediately eligible.
	NextAttempt int64
}

// Dispatcher owns the bounded notification queue and the single worker that
// drains it. Producers never block: a full queue drops its oldest job to
// admit the new one.
type Dispatcher struct {
	cfg    config.QueueConfig
	sender Sender
	log    *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Job
	closed bool

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// now is swappable for tests.
	now func() time.Time
}

// NewDispatcher builds an unstarted dispatcher.
func NewDispatcher(cfg config.QueueConfig, sender Sender, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		log:    log.With("component", "dispatcher"),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.worker()
}

// Enqueue adds a notification to the queue. When the queue is at capacity the
// oldest job is discarded to make room. Never blocks the caller.
func (d *Dispatcher) Enqueue(n *Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Debug("dispatcher stopped, dropping notification", "title", n.Title)
		return
	}
	if len(d.queue) >= d.cfg.MaxQueueSize {
		dropped := d.queue[0]
		d.queue = d.queue[1:]
		d.log.Warn("queue full, dropping oldest notification",
			"capacity", d.cfg.MaxQueueSize, "dropped_title", dropped.Notification.Title)
	}
	d.queue = append(d.queue, &Job{Notification: n})
	d.cond.Signal()
}

// Len returns the current queue depth.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Stop stops accepting jobs, applies the shutdown policy to whatever is
// queued (discard by default, or one final attempt each under drain) and
// waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		d.cond.Broadcast()
		close(d.stopCh)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			if d.cfg.ShutdownPolicy != "drain" || len(d.queue) == 0 {
				if n := len(d.queue); n > 0 {
					d.log.Warn("discarding pending notifications on shutdown", "count", n)
				}
				d.queue = nil
				d.mu.Unlock()
				return
			}
			job := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			d.attempt(job, true)
			continue
		}
		job := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if d.now().Unix() < job.NextAttempt {
			d.requeue(job)
			select {
			case <-d.stopCh:
			case <-time.After(rotateDelay):
			}
			continue
		}
		d.attempt(job, false)
	}
}

// attempt performs one delivery. final suppresses rescheduling during drain.
func (d *Dispatcher) attempt(job *Job, final bool) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	err := d.sender.Send(ctx, job.Notification)
	cancel()
	if err == nil {
		d.log.Info("notification sent",
			"title", job.Notification.Title, "priority", job.Notification.Priority, "retries", job.Retries)
		return
	}

	job.Retries++
	if final {
		d.log.Error("notification failed during shutdown drain, dropping",
			"title", job.Notification.Title, "error", err)
		return
	}
	if d.cfg.MaxRetries > 0 && job.Retries > d.cfg.MaxRetries {
		d.log.Error("notification retries exhausted, dropping",
			"title", job.Notification.Title, "attempts", job.Retries, "error", err)
		return
	}

	delay := retryDelay(job.Retries, d.cfg.MaxRetryTimeMinutes)
	job.NextAttempt = d.now().Add(delay).Unix()
	d.log.Warn("notification attempt failed, scheduling retry",
		"title", job.Notification.Title, "retry", job.Retries, "delay", delay, "error", err)
	d.requeue(job)
}

// requeue appends at the tail, applying the same drop-oldest policy as
// Enqueue. Jobs arriving after Stop are discarded.
func (d *Dispatcher) requeue(job *Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed && d.cfg.ShutdownPolicy != "drain" {
		return
	}
	if len(d.queue) >= d.cfg.MaxQueueSize {
		dropped := d.queue[0]
		d.queue = d.queue[1:]
		d.log.Warn("queue full, dropping oldest notification",
			"capacity", d.cfg.MaxQueueSize, "dropped_title", dropped.Notification.Title)
	}
	d.queue = append(d.queue, job)
}

// retryDelay computes the exponential backoff for the k-th retry, clamped at
// the configured ceiling: min(60 * 2^(k-1), maxMinutes * 60) seconds. The
// comparison is done in seconds so large retry counts cannot overflow the
// nanosecond Duration.
func retryDelay(retries, maxMinutes int) time.Duration {
	ceilingSec := int64(maxMinutes) * 60
	if retries < 1 {
		retries = 1
	}
	if retries-1 >= 30 {
		return time.Duration(ceilingSec) * time.Second
	}
	delaySec := int64(60) << (retries - 1)
	if delaySec > ceilingSec {
		delaySec = ceilingSec
	}
	return time.Duration(delaySec) * time.Second
}
