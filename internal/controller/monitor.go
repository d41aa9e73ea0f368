package controller

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyMonitoring is returned by Run when a polling loop is already active.
var ErrAlreadyMonitoring = errors.New("monitoring already active")

// Ticker delivers polling ticks. Stop releases it; no ticks arrive afterwards.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

// monitor is the owned polling resource: one ticker and the goroutine draining it.
type monitor struct {
	ticker Ticker
	stop   chan struct{}
	done   chan struct{}
}

func (m *monitor) exited() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// BeginMonitoring starts the fixed-interval polling loop. Each tick refreshes
// status and stats concurrently. It returns false, and does nothing, when a loop
// is already active. The loop also ends when ctx is done.
func (c *Controller) BeginMonitoring(ctx context.Context) bool {
	c.monMu.Lock()
	defer c.monMu.Unlock()
	if c.monitor != nil && !c.monitor.exited() {
		return false
	}
	m := &monitor{
		ticker: c.newTicker(c.interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.monitor = m
	go c.loop(ctx, m)
	c.logger.Debug("Monitoring started", "interval", c.interval)
	return true
}

// EndMonitoring stops the polling loop and waits for it to exit. Polls already
// in progress are left to finish. Safe to call when no loop is active.
func (c *Controller) EndMonitoring() {
	c.monMu.Lock()
	m := c.monitor
	c.monitor = nil
	c.monMu.Unlock()
	if m == nil {
		return
	}
	close(m.stop)
	<-m.done
	c.logger.Debug("Monitoring stopped")
}

// Monitoring reports whether a polling loop is active.
func (c *Controller) Monitoring() bool {
	c.monMu.Lock()
	defer c.monMu.Unlock()
	return c.monitor != nil && !c.monitor.exited()
}

// Run fires an immediate status and stats poll, then monitors until ctx is done.
// It returns once the loop and every poll it started have finished.
func (c *Controller) Run(ctx context.Context) error {
	defer c.polls.Wait()
	c.poll(ctx)
	if !c.BeginMonitoring(ctx) {
		return ErrAlreadyMonitoring
	}
	<-ctx.Done()
	c.EndMonitoring()
	return nil
}

func (c *Controller) loop(ctx context.Context, m *monitor) {
	defer close(m.done)
	defer m.ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-m.ticker.C():
			c.poll(ctx)
		}
	}
}

// poll launches the two independent refreshes; neither waits for the other.
func (c *Controller) poll(ctx context.Context) {
	c.polls.Add(2)
	go func() {
		defer c.polls.Done()
		_ = c.RefreshStatus(ctx)
	}()
	go func() {
		defer c.polls.Done()
		_ = c.RefreshStats(ctx)
	}()
}
