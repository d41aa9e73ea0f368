package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/botctl/internal/metrics"
	"github.com/loykin/botctl/pkg/client"
)

// Default timings.
const (
	DefaultInterval             = 5 * time.Second
	DefaultNotificationDuration = 3 * time.Second
)

// Transport is the remote control surface. *client.Client implements it.
type Transport interface {
	Command(ctx context.Context, cmd client.Command) (client.CommandResult, error)
	Status(ctx context.Context) (client.Status, error)
	Stats(ctx context.Context) (client.Stats, error)
}

// Outcome classifies the result of one command call.
type Outcome int

const (
	// OutcomeSkipped: another command was in flight; nothing was sent.
	OutcomeSkipped Outcome = iota
	// OutcomeDeclined: the operator did not confirm; nothing was sent.
	OutcomeDeclined
	// OutcomeSucceeded: the server answered success=true.
	OutcomeSucceeded
	// OutcomeRejected: the server answered success=false.
	OutcomeRejected
	// OutcomeFailed: the request did not produce a usable answer.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDeclined:
		return "declined"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Config holds optional controller settings. Zero values select defaults.
type Config struct {
	Interval             time.Duration // polling period (default 5s)
	NotificationDuration time.Duration // how long notifications stay up (default 3s)
	Confirmer            Confirmer     // default NeverConfirm
	Logger               *slog.Logger  // default slog.Default()
	NewTicker            TickerFunc    // default wraps time.NewTicker
}

type commandSpec struct {
	cmd        client.Command
	affordance Affordance
	prompt     string
}

var (
	startSpec   = commandSpec{cmd: client.CommandStart, affordance: AffordanceStart}
	stopSpec    = commandSpec{cmd: client.CommandStop, affordance: AffordanceStop, prompt: "Stop the bot?"}
	restartSpec = commandSpec{cmd: client.CommandRestart, affordance: AffordanceRestart, prompt: "Restart the bot?"}
)

// Controller keeps a display in sync with the remote bot and issues control
// commands, allowing at most one command in flight at a time.
type Controller struct {
	transport Transport
	display   Display
	confirmer Confirmer
	logger    *slog.Logger
	interval  time.Duration
	notifyFor time.Duration
	newTicker TickerFunc

	inFlight atomic.Bool

	// renderMu serializes display calls and guards the shown sequence numbers.
	renderMu    sync.Mutex
	statusSeq   atomic.Uint64
	statusShown uint64
	statsSeq    atomic.Uint64
	statsShown  uint64

	monMu   sync.Mutex
	monitor *monitor

	// polls tracks refreshes started by the polling loop.
	polls sync.WaitGroup
}

// New binds a controller to its transport and display.
func New(transport Transport, display Display, cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.NotificationDuration <= 0 {
		cfg.NotificationDuration = DefaultNotificationDuration
	}
	if cfg.Confirmer == nil {
		cfg.Confirmer = NeverConfirm
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = newRealTicker
	}
	return &Controller{
		transport: transport,
		display:   display,
		confirmer: cfg.Confirmer,
		logger:    cfg.Logger,
		interval:  cfg.Interval,
		notifyFor: cfg.NotificationDuration,
		newTicker: cfg.NewTicker,
	}
}

// InFlight reports whether a control command is outstanding.
func (c *Controller) InFlight() bool { return c.inFlight.Load() }

// Interval returns the polling period.
func (c *Controller) Interval() time.Duration { return c.interval }

// Start asks the server to start the bot.
func (c *Controller) Start(ctx context.Context) Outcome { return c.run(ctx, startSpec) }

// Stop asks for confirmation, then asks the server to stop the bot.
func (c *Controller) Stop(ctx context.Context) Outcome { return c.run(ctx, stopSpec) }

// Restart asks for confirmation, then asks the server to restart the bot.
func (c *Controller) Restart(ctx context.Context) Outcome { return c.run(ctx, restartSpec) }

func (c *Controller) run(ctx context.Context, spec commandSpec) Outcome {
	log := c.logger.With("command", spec.cmd.String())

	// Duplicate requests are dropped silently, before any prompt is shown.
	if c.inFlight.Load() {
		log.Debug("Command ignored, another command is in flight")
		metrics.IncCommand(spec.cmd.String(), OutcomeSkipped.String())
		return OutcomeSkipped
	}
	if spec.prompt != "" && !c.confirmer.Confirm(ctx, spec.prompt) {
		log.Debug("Command declined by operator")
		metrics.IncCommand(spec.cmd.String(), OutcomeDeclined.String())
		return OutcomeDeclined
	}
	// Another command may have started while the prompt was open.
	if !c.inFlight.CompareAndSwap(false, true) {
		log.Debug("Command ignored, another command started during confirmation")
		metrics.IncCommand(spec.cmd.String(), OutcomeSkipped.String())
		return OutcomeSkipped
	}

	outcome := c.execute(ctx, spec)
	metrics.IncCommand(spec.cmd.String(), outcome.String())
	log.Info("Command finished", "outcome", outcome.String())

	if outcome == OutcomeSucceeded {
		_ = c.RefreshStatus(ctx)
	}
	return outcome
}

// execute performs one round trip. The caller holds the in-flight flag; it is
// released, and the control restored, on every exit path including panics.
func (c *Controller) execute(ctx context.Context, spec commandSpec) Outcome {
	metrics.SetCommandInFlight(true)
	c.setAffordance(spec.affordance, AffordanceState{Enabled: false, Busy: true})
	started := time.Now()
	defer func() {
		c.inFlight.Store(false)
		metrics.SetCommandInFlight(false)
		metrics.ObserveCommandDuration(spec.cmd.String(), time.Since(started).Seconds())
		c.setAffordance(spec.affordance, AffordanceState{Enabled: true, Busy: false})
	}()

	res, err := c.transport.Command(ctx, spec.cmd)
	switch {
	case err != nil:
		c.logger.Error("Command request failed", "command", spec.cmd.String(), "error", err)
		c.notify(SeverityError, fmt.Sprintf("Failed to %s bot: %v", spec.cmd, err))
		return OutcomeFailed
	case res.Success:
		msg := res.Message
		if msg == "" {
			msg = fmt.Sprintf("Bot %s accepted", spec.cmd)
		}
		c.notify(SeveritySuccess, msg)
		return OutcomeSucceeded
	default:
		msg := res.Message
		if msg == "" {
			msg = fmt.Sprintf("Bot %s was refused", spec.cmd)
		}
		c.notify(SeverityError, msg)
		return OutcomeRejected
	}
}

// RefreshStatus polls the status endpoint and updates the status panel.
// A transport failure switches the panel to the connection error state and is
// returned to the caller. A failure caused by ctx ending renders nothing.
func (c *Controller) RefreshStatus(ctx context.Context) error {
	seq := c.statusSeq.Add(1)
	st, err := c.transport.Status(ctx)

	var view StatusView
	if err != nil && ctx.Err() != nil {
		c.logger.Debug("Status poll abandoned", "error", err)
		return err
	}
	if err != nil {
		c.logger.Warn("Status poll failed", "error", err)
		metrics.IncPoll("status", "error")
		view = connectionErrorView()
	} else {
		metrics.IncPoll("status", "ok")
		view = ParseRemoteStatus(st).View()
	}

	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if seq < c.statusShown {
		c.logger.Debug("Dropping stale status response", "seq", seq, "shown", c.statusShown)
		return err
	}
	c.statusShown = seq
	metrics.SetRemoteState(view.Phase.String())
	c.display.ShowStatus(view)
	return err
}

// RefreshStats polls the stats endpoint and updates the counters.
// Failures are logged only; the previous counters stay on display.
func (c *Controller) RefreshStats(ctx context.Context) error {
	seq := c.statsSeq.Add(1)
	st, err := c.transport.Stats(ctx)
	if err != nil {
		c.logger.Warn("Stats poll failed", "error", err)
		metrics.IncPoll("stats", "error")
		return err
	}
	metrics.IncPoll("stats", "ok")

	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if seq < c.statsShown {
		c.logger.Debug("Dropping stale stats response", "seq", seq, "shown", c.statsShown)
		return nil
	}
	c.statsShown = seq
	c.display.ShowStats(StatsView{
		MessagesToday: max(st.MessagesToday, 0),
		ActiveOrders:  max(st.ActiveOrders, 0),
		UsersActive:   max(st.UsersActive, 0),
	})
	return nil
}

func (c *Controller) setAffordance(a Affordance, st AffordanceState) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.display.SetAffordance(a, st)
}

func (c *Controller) notify(sev Severity, msg string) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.display.Notify(Notification{Message: msg, Severity: sev, Duration: c.notifyFor})
}
