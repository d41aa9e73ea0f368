package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/botctl/pkg/client"
)

func newTestController(tr Transport, d Display, confirm Confirmer) *Controller {
	return New(tr, d, Config{Confirmer: confirm})
}

func TestStartSuppressesDuplicateClicks(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	tr := &fakeTransport{
		commandFn: func(ctx context.Context, cmd client.Command) (client.CommandResult, error) {
			close(entered)
			<-release
			return client.CommandResult{Success: true, Message: "Bot started"}, nil
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	result := make(chan Outcome, 1)
	go func() { result <- c.Start(context.Background()) }()
	<-entered
	require.True(t, c.InFlight())

	for i := 0; i < 5; i++ {
		assert.Equal(t, OutcomeSkipped, c.Start(context.Background()))
	}
	close(release)

	assert.Equal(t, OutcomeSucceeded, <-result)
	assert.False(t, c.InFlight())
	assert.Equal(t, []client.Command{client.CommandStart}, tr.sentCommands())

	_, _, affordances, _ := d.snapshot()
	assert.Equal(t, []affordanceCall{
		{AffordanceStart, AffordanceState{Enabled: false, Busy: true}},
		{AffordanceStart, AffordanceState{Enabled: true, Busy: false}},
	}, affordances)
}

func TestStartSuccessRefreshesStatus(t *testing.T) {
	tr := &fakeTransport{
		commandFn: func(ctx context.Context, cmd client.Command) (client.CommandResult, error) {
			return client.CommandResult{Success: true, Message: "Bot started"}, nil
		},
		statusFn: func(ctx context.Context, call int) (client.Status, error) {
			pid, mem := 42, 10.0
			return client.Status{State: "running", PID: &pid, MemoryMB: &mem, Uptime: "1s"}, nil
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	require.Equal(t, OutcomeSucceeded, c.Start(context.Background()))
	assert.Equal(t, int32(1), tr.statusCalls.Load(), "status should be refreshed without waiting for a tick")

	statuses, _, _, notes := d.snapshot()
	require.Len(t, statuses, 1)
	assert.Equal(t, PhaseRunning, statuses[0].Phase)
	require.Len(t, notes, 1)
	assert.Equal(t, Notification{Message: "Bot started", Severity: SeveritySuccess, Duration: DefaultNotificationDuration}, notes[0])
}

func TestStartRejectedDoesNotRefresh(t *testing.T) {
	tr := &fakeTransport{
		commandFn: func(ctx context.Context, cmd client.Command) (client.CommandResult, error) {
			return client.CommandResult{Success: false, Message: "Bot is already running"}, nil
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	assert.Equal(t, OutcomeRejected, c.Start(context.Background()))
	assert.Equal(t, int32(0), tr.statusCalls.Load())
	assert.False(t, c.InFlight())

	_, _, affordances, notes := d.snapshot()
	require.Len(t, notes, 1)
	assert.Equal(t, SeverityError, notes[0].Severity)
	assert.Equal(t, "Bot is already running", notes[0].Message)
	require.Len(t, affordances, 2)
	assert.Equal(t, AffordanceState{Enabled: true}, affordances[1].State)
}

func TestStartTransportFailureReleasesGuard(t *testing.T) {
	tr := &fakeTransport{
		commandFn: func(ctx context.Context, cmd client.Command) (client.CommandResult, error) {
			return client.CommandResult{}, errors.New("connection refused")
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	assert.Equal(t, OutcomeFailed, c.Start(context.Background()))
	assert.False(t, c.InFlight())

	_, _, affordances, notes := d.snapshot()
	require.Len(t, notes, 1)
	assert.Equal(t, SeverityError, notes[0].Severity)
	assert.Contains(t, notes[0].Message, "connection refused")
	assert.Equal(t, AffordanceState{Enabled: true}, affordances[len(affordances)-1].State)

	// The guard is free again.
	tr.commandFn = nil
	assert.Equal(t, OutcomeSucceeded, c.Start(context.Background()))
}

func TestPanickingTransportReleasesGuard(t *testing.T) {
	tr := &fakeTransport{
		commandFn: func(ctx context.Context, cmd client.Command) (client.CommandResult, error) {
			panic("transport bug")
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	assert.Panics(t, func() { c.Start(context.Background()) })
	assert.False(t, c.InFlight())
	_, _, affordances, _ := d.snapshot()
	require.Len(t, affordances, 2)
	assert.Equal(t, AffordanceState{Enabled: true}, affordances[1].State)
}

func TestStopAndRestartDeclined(t *testing.T) {
	for _, op := range []struct {
		name string
		call func(*Controller) Outcome
	}{
		{"stop", func(c *Controller) Outcome { return c.Stop(context.Background()) }},
		{"restart", func(c *Controller) Outcome { return c.Restart(context.Background()) }},
	} {
		t.Run(op.name, func(t *testing.T) {
			var prompts []string
			tr := &fakeTransport{}
			d := &recordingDisplay{}
			c := newTestController(tr, d, ConfirmFunc(func(ctx context.Context, prompt string) bool {
				prompts = append(prompts, prompt)
				return false
			}))

			assert.Equal(t, OutcomeDeclined, op.call(c))
			assert.Len(t, prompts, 1)
			assert.Empty(t, tr.sentCommands())
			assert.Equal(t, 0, d.calls(), "declining must leave the display untouched")
			assert.False(t, c.InFlight())
		})
	}
}

func TestStopAndRestartConfirmed(t *testing.T) {
	tr := &fakeTransport{}
	d := &recordingDisplay{}
	var prompts []string
	c := newTestController(tr, d, ConfirmFunc(func(ctx context.Context, prompt string) bool {
		prompts = append(prompts, prompt)
		return true
	}))

	assert.Equal(t, OutcomeSucceeded, c.Stop(context.Background()))
	assert.Equal(t, OutcomeSucceeded, c.Restart(context.Background()))
	assert.Equal(t, []client.Command{client.CommandStop, client.CommandRestart}, tr.sentCommands())
	assert.Equal(t, []string{"Stop the bot?", "Restart the bot?"}, prompts)

	_, _, affordances, _ := d.snapshot()
	assert.Equal(t, AffordanceStop, affordances[0].Affordance)
	assert.Equal(t, AffordanceRestart, affordances[2].Affordance)
}

func TestDefaultConfirmerDeclines(t *testing.T) {
	tr := &fakeTransport{}
	c := New(tr, &recordingDisplay{}, Config{})
	assert.Equal(t, OutcomeDeclined, c.Stop(context.Background()))
	assert.Empty(t, tr.sentCommands())
}

func TestCommandInFlightSkipsPrompt(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	tr := &fakeTransport{
		commandFn: func(ctx context.Context, cmd client.Command) (client.CommandResult, error) {
			close(entered)
			<-release
			return client.CommandResult{Success: false, Message: "no"}, nil
		},
	}
	prompted := false
	c := newTestController(tr, &recordingDisplay{}, ConfirmFunc(func(context.Context, string) bool {
		prompted = true
		return true
	}))

	done := make(chan Outcome, 1)
	go func() { done <- c.Start(context.Background()) }()
	<-entered

	assert.Equal(t, OutcomeSkipped, c.Stop(context.Background()))
	assert.False(t, prompted, "no prompt while a command is in flight")

	close(release)
	assert.Equal(t, OutcomeRejected, <-done)
}

func TestCommandStartedDuringConfirmationWins(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	tr := &fakeTransport{
		commandFn: func(ctx context.Context, cmd client.Command) (client.CommandResult, error) {
			if cmd == client.CommandStart {
				close(entered)
				<-release
			}
			return client.CommandResult{Success: true}, nil
		},
	}
	var c *Controller
	startDone := make(chan Outcome, 1)
	c = newTestController(tr, &recordingDisplay{}, ConfirmFunc(func(context.Context, string) bool {
		go func() { startDone <- c.Start(context.Background()) }()
		<-entered
		return true
	}))

	assert.Equal(t, OutcomeSkipped, c.Stop(context.Background()))
	close(release)
	assert.Equal(t, OutcomeSucceeded, <-startDone)
	assert.Equal(t, []client.Command{client.CommandStart}, tr.sentCommands())
}

func TestRefreshStatusRunning(t *testing.T) {
	tr := &fakeTransport{
		statusFn: func(ctx context.Context, call int) (client.Status, error) {
			pid, mem := 123, 45.0
			return client.Status{State: "running", PID: &pid, MemoryMB: &mem, Uptime: "2h"}, nil
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	require.NoError(t, c.RefreshStatus(context.Background()))
	statuses, _, _, _ := d.snapshot()
	require.Len(t, statuses, 1)
	v := statuses[0]
	require.NotNil(t, v.Affordances)
	assert.False(t, v.Affordances.Start)
	assert.True(t, v.Affordances.Stop)
	assert.True(t, v.Affordances.Restart)
	assert.Contains(t, v.Detail, "123")
	assert.Contains(t, v.Detail, "45")
	assert.Equal(t, "2h", v.Uptime)
	assert.Equal(t, ColorGreen, v.Indicator.Color)
}

func TestRefreshStatusStopped(t *testing.T) {
	d := &recordingDisplay{}
	c := newTestController(&fakeTransport{}, d, nil)

	require.NoError(t, c.RefreshStatus(context.Background()))
	statuses, _, _, _ := d.snapshot()
	require.Len(t, statuses, 1)
	v := statuses[0]
	assert.Equal(t, PhaseStopped, v.Phase)
	require.NotNil(t, v.Affordances)
	assert.Equal(t, Affordances{Start: true, Stop: false, Restart: false}, *v.Affordances)
	assert.Equal(t, UptimePlaceholder, v.Uptime)
}

func TestRefreshStatusUnknownKeepsAffordances(t *testing.T) {
	tr := &fakeTransport{
		statusFn: func(ctx context.Context, call int) (client.Status, error) {
			if call == 1 {
				return client.Status{State: "error", Error: "psutil failed"}, nil
			}
			return client.Status{State: "weird"}, nil
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	require.NoError(t, c.RefreshStatus(context.Background()))
	require.NoError(t, c.RefreshStatus(context.Background()))
	statuses, _, _, _ := d.snapshot()
	require.Len(t, statuses, 2)
	assert.Equal(t, PhaseUnknown, statuses[0].Phase)
	assert.Nil(t, statuses[0].Affordances)
	assert.Equal(t, "psutil failed", statuses[0].Detail)
	assert.Equal(t, "Failed to check bot status", statuses[1].Detail)
}

func TestRefreshStatusConnectionError(t *testing.T) {
	tr := &fakeTransport{
		statusFn: func(ctx context.Context, call int) (client.Status, error) {
			return client.Status{}, errors.New("dial tcp: refused")
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	require.NoError(t, c.RefreshStats(context.Background()))
	assert.Error(t, c.RefreshStatus(context.Background()))

	statuses, stats, _, notes := d.snapshot()
	require.Len(t, statuses, 1)
	v := statuses[0]
	assert.Equal(t, PhaseConnectionError, v.Phase)
	assert.Nil(t, v.Affordances)
	for _, other := range []StatusView{
		ParseRemoteStatus(client.Status{State: "running"}).View(),
		ParseRemoteStatus(client.Status{State: "stopped"}).View(),
		ParseRemoteStatus(client.Status{State: "other"}).View(),
	} {
		assert.NotEqual(t, other.Indicator, v.Indicator)
		assert.NotEqual(t, other.Headline, v.Headline)
	}
	assert.Len(t, stats, 1, "status failure must not touch the counters")
	assert.Empty(t, notes, "status failures are not notifications")
}

func TestRefreshStats(t *testing.T) {
	fail := false
	tr := &fakeTransport{
		statsFn: func(ctx context.Context) (client.Stats, error) {
			if fail {
				return client.Stats{}, errors.New("timeout")
			}
			return client.Stats{MessagesToday: 7, ActiveOrders: 3}, nil
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	require.NoError(t, c.RefreshStats(context.Background()))
	fail = true
	assert.Error(t, c.RefreshStats(context.Background()))

	_, stats, _, notes := d.snapshot()
	require.Len(t, stats, 1, "failed stats poll keeps the previous counters")
	assert.Equal(t, StatsView{MessagesToday: 7, ActiveOrders: 3}, stats[0])
	assert.Empty(t, notes, "stats failures are never user visible")
}

func TestRefreshStatsMissingFieldsResetToZero(t *testing.T) {
	calls := 0
	tr := &fakeTransport{
		statsFn: func(ctx context.Context) (client.Stats, error) {
			calls++
			if calls == 1 {
				return client.Stats{MessagesToday: 9, ActiveOrders: 4}, nil
			}
			return client.Stats{}, nil
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	require.NoError(t, c.RefreshStats(context.Background()))
	require.NoError(t, c.RefreshStats(context.Background()))
	_, stats, _, _ := d.snapshot()
	require.Len(t, stats, 2)
	assert.Equal(t, StatsView{}, stats[1])
}

func TestStaleStatusResponseIsDropped(t *testing.T) {
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})
	tr := &fakeTransport{
		statusFn: func(ctx context.Context, call int) (client.Status, error) {
			if call == 1 {
				close(firstEntered)
				<-releaseFirst
				return client.Status{State: "running"}, nil
			}
			return client.Status{State: "stopped"}, nil
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.RefreshStatus(context.Background())
	}()
	<-firstEntered
	require.NoError(t, c.RefreshStatus(context.Background()))
	close(releaseFirst)
	wg.Wait()

	statuses, _, _, _ := d.snapshot()
	require.Len(t, statuses, 1)
	assert.Equal(t, PhaseStopped, statuses[0].Phase)
}

func TestBeginMonitoringSingleTicker(t *testing.T) {
	tr := &fakeTransport{}
	src := &tickerSource{}
	c := New(tr, &recordingDisplay{}, Config{NewTicker: src.New, Interval: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.True(t, c.BeginMonitoring(ctx))
	assert.False(t, c.BeginMonitoring(ctx), "second call must not create another timer")
	assert.Equal(t, 1, src.count())
	assert.Equal(t, 5*time.Second, src.periods[0])
	assert.True(t, c.Monitoring())

	tk := src.last()
	tk.ch <- time.Now()
	tk.ch <- time.Now()

	require.Eventually(t, func() bool {
		return tr.statusCalls.Load() == 2 && tr.statsCalls.Load() == 2
	}, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		return tr.statusCalls.Load() > 2 || tr.statsCalls.Load() > 2
	}, 100*time.Millisecond, 10*time.Millisecond)

	c.EndMonitoring()
	assert.True(t, tk.stopped.Load())
	assert.False(t, c.Monitoring())
	c.EndMonitoring() // no-op

	require.True(t, c.BeginMonitoring(ctx), "monitoring can be restarted after EndMonitoring")
	assert.Equal(t, 2, src.count())
	c.EndMonitoring()
}

func TestEndMonitoringWithoutBegin(t *testing.T) {
	c := New(&fakeTransport{}, &recordingDisplay{}, Config{})
	assert.NotPanics(t, c.EndMonitoring)
	assert.False(t, c.Monitoring())
}

func TestPollFailuresDoNotStopMonitoring(t *testing.T) {
	tr := &fakeTransport{
		statusFn: func(ctx context.Context, call int) (client.Status, error) {
			return client.Status{}, errors.New("down")
		},
		statsFn: func(ctx context.Context) (client.Stats, error) {
			return client.Stats{}, errors.New("down")
		},
	}
	src := &tickerSource{}
	c := New(tr, &recordingDisplay{}, Config{NewTicker: src.New})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.True(t, c.BeginMonitoring(ctx))
	tk := src.last()
	for i := 0; i < 3; i++ {
		tk.ch <- time.Now()
	}
	require.Eventually(t, func() bool { return tr.statusCalls.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, c.Monitoring())
	c.EndMonitoring()
}

func TestRunPollsImmediatelyAndTearsDown(t *testing.T) {
	tr := &fakeTransport{}
	src := &tickerSource{}
	d := &recordingDisplay{}
	c := New(tr, d, Config{NewTicker: src.New})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return tr.statusCalls.Load() == 1 && tr.statsCalls.Load() == 1
	}, time.Second, 5*time.Millisecond, "initial poll fires before any tick")
	require.Eventually(t, c.Monitoring, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, c.Monitoring())
	assert.True(t, src.last().stopped.Load())
}

func TestRefreshStatusCancelledRendersNothing(t *testing.T) {
	tr := &fakeTransport{
		statusFn: func(ctx context.Context, call int) (client.Status, error) {
			return client.Status{}, ctx.Err()
		},
	}
	d := &recordingDisplay{}
	c := newTestController(tr, d, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.RefreshStatus(ctx), context.Canceled)

	statuses, _, _, _ := d.snapshot()
	assert.Empty(t, statuses, "a poll cut short by teardown must not show a connection error")
}

func TestRunWaitsForOutstandingPolls(t *testing.T) {
	var finished atomic.Bool
	started := make(chan struct{})
	tr := &fakeTransport{
		statusFn: func(ctx context.Context, call int) (client.Status, error) {
			close(started)
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
			return client.Status{}, ctx.Err()
		},
	}
	d := &recordingDisplay{}
	c := New(tr, d, Config{NewTicker: (&tickerSource{}).New})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-started
	require.Eventually(t, c.Monitoring, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.True(t, finished.Load(), "Run returned before its poll finished")
	statuses, _, _, _ := d.snapshot()
	assert.Empty(t, statuses)
}

func TestRunRefusesWhenAlreadyMonitoring(t *testing.T) {
	src := &tickerSource{}
	c := New(&fakeTransport{}, &recordingDisplay{}, Config{NewTicker: src.New})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.True(t, c.BeginMonitoring(ctx))
	assert.ErrorIs(t, c.Run(ctx), ErrAlreadyMonitoring)
	c.EndMonitoring()
}

func TestOutcomeAndPhaseNames(t *testing.T) {
	assert.Equal(t, "succeeded", OutcomeSucceeded.String())
	assert.Equal(t, "declined", OutcomeDeclined.String())
	assert.Equal(t, "connection_error", PhaseConnectionError.String())
	assert.Equal(t, "Stopping...", AffordanceStop.Label(true))
	assert.Equal(t, "Restart Bot", AffordanceRestart.Label(false))
}
