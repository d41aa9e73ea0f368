package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/botctl/pkg/client"
)

// fakeTransport counts calls and delegates to optional hooks.
type fakeTransport struct {
	commandFn func(ctx context.Context, cmd client.Command) (client.CommandResult, error)
	statusFn  func(ctx context.Context, call int) (client.Status, error)
	statsFn   func(ctx context.Context) (client.Stats, error)

	mu          sync.Mutex
	commands    []client.Command
	statusCalls atomic.Int32
	statsCalls  atomic.Int32
}

func (f *fakeTransport) Command(ctx context.Context, cmd client.Command) (client.CommandResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	if f.commandFn != nil {
		return f.commandFn(ctx, cmd)
	}
	return client.CommandResult{Success: true, Message: "ok"}, nil
}

func (f *fakeTransport) Status(ctx context.Context) (client.Status, error) {
	call := int(f.statusCalls.Add(1))
	if f.statusFn != nil {
		return f.statusFn(ctx, call)
	}
	return client.Status{State: "stopped"}, nil
}

func (f *fakeTransport) Stats(ctx context.Context) (client.Stats, error) {
	f.statsCalls.Add(1)
	if f.statsFn != nil {
		return f.statsFn(ctx)
	}
	return client.Stats{}, nil
}

func (f *fakeTransport) sentCommands() []client.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.Command(nil), f.commands...)
}

type affordanceCall struct {
	Affordance Affordance
	State      AffordanceState
}

// recordingDisplay keeps every call it receives.
type recordingDisplay struct {
	mu            sync.Mutex
	statuses      []StatusView
	stats         []StatsView
	affordances   []affordanceCall
	notifications []Notification
}

func (d *recordingDisplay) ShowStatus(v StatusView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, v)
}

func (d *recordingDisplay) ShowStats(v StatsView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = append(d.stats, v)
}

func (d *recordingDisplay) SetAffordance(a Affordance, st AffordanceState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.affordances = append(d.affordances, affordanceCall{a, st})
}

func (d *recordingDisplay) Notify(n Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications = append(d.notifications, n)
}

func (d *recordingDisplay) snapshot() (statuses []StatusView, stats []StatsView, affordances []affordanceCall, notes []Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]StatusView(nil), d.statuses...),
		append([]StatsView(nil), d.stats...),
		append([]affordanceCall(nil), d.affordances...),
		append([]Notification(nil), d.notifications...)
}

func (d *recordingDisplay) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.statuses) + len(d.stats) + len(d.affordances) + len(d.notifications)
}

// manualTicker fires only when the test sends on ch.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker { return &manualTicker{ch: make(chan time.Time)} }

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// tickerSource hands out manual tickers and remembers them.
type tickerSource struct {
	mu      sync.Mutex
	tickers []*manualTicker
	periods []time.Duration
}

func (s *tickerSource) New(d time.Duration) Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := newManualTicker()
	s.tickers = append(s.tickers, t)
	s.periods = append(s.periods, d)
	return t
}

func (s *tickerSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickers)
}

func (s *tickerSource) last() *manualTicker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickers[len(s.tickers)-1]
}
