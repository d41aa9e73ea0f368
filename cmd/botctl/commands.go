package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/botctl/internal/config"
	"github.com/loykin/botctl/internal/controller"
	"github.com/loykin/botctl/internal/display"
	"github.com/loykin/botctl/internal/logger"
	"github.com/loykin/botctl/internal/metrics"
	"github.com/loykin/botctl/internal/server"
	itls "github.com/loykin/botctl/internal/tls"
	"github.com/loykin/botctl/internal/tui"
	"github.com/loykin/botctl/pkg/client"
)

type command struct {
	globals  *GlobalFlags
	sessions *SessionManager
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

// env is what a subcommand needs once configuration has been resolved.
type env struct {
	cfg    *config.FileConfig
	logger *slog.Logger
	closer io.Closer
	client *client.Client
}

func (e *env) Close() { _ = e.closer.Close() }

func (e *env) controllerConfig(confirmer controller.Confirmer) controller.Config {
	cc := e.cfg.ControllerConfig()
	cc.Logger = e.logger
	cc.Confirmer = confirmer
	return cc
}

// setup resolves configuration in order file, environment, saved session,
// then global flags. quiet discards console logging (the TUI owns the screen).
func (c *command) setup(quiet bool) (*env, error) {
	cfg, err := config.Load(c.globals.ConfigPath)
	if err != nil {
		return nil, err
	}

	session, err := c.sessions.LoadSession()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session != nil {
		if session.ServerURL != "" && cfg.API.URL == config.Default().API.URL {
			cfg.API.URL = session.ServerURL
		}
		if cfg.API.Token == "" {
			cfg.API.Token = session.Token
		}
		if cfg.API.SessionCookie == "" {
			cfg.API.SessionCookie = session.SessionCookie
		}
	}

	if c.globals.APIUrl != "" {
		cfg.API.URL = c.globals.APIUrl
	}
	if c.globals.APITimeout > 0 {
		cfg.API.Timeout = c.globals.APITimeout
	}
	if c.globals.LogLevel != "" {
		cfg.Log.Level = c.globals.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lc := cfg.LoggerConfig()
	lc.Discard = quiet
	log, closer, err := logger.New(lc, c.stderr)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:    cfg,
		logger: log,
		closer: closer,
		client: client.New(cfg.ClientConfig(log)),
	}, nil
}

// Command sends start, stop or restart and prints the result. Rejected and
// failed commands return an error so the process exits non-zero.
func (c *command) Command(ctx context.Context, cmd client.Command, f CommandFlags) error {
	e, err := c.setup(false)
	if err != nil {
		return err
	}
	defer e.Close()

	var confirmer controller.Confirmer = display.NewPromptConfirmer(c.stdin, c.stdout)
	if f.Yes {
		confirmer = controller.AlwaysConfirm
	}
	ctl := controller.New(e.client, display.NewConsole(c.stdout), e.controllerConfig(confirmer))

	var outcome controller.Outcome
	switch cmd {
	case client.CommandStart:
		outcome = ctl.Start(ctx)
	case client.CommandStop:
		outcome = ctl.Stop(ctx)
	case client.CommandRestart:
		outcome = ctl.Restart(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	switch outcome {
	case controller.OutcomeDeclined:
		_, _ = fmt.Fprintln(c.stdout, "Cancelled")
	case controller.OutcomeRejected, controller.OutcomeFailed:
		return fmt.Errorf("%s %s", cmd, outcome)
	}
	return nil
}

// Status prints the bot status once.
func (c *command) Status(ctx context.Context, f QueryFlags) error {
	e, err := c.setup(false)
	if err != nil {
		return err
	}
	defer e.Close()

	if f.JSON {
		st, err := e.client.Status(ctx)
		if err != nil {
			return err
		}
		printJSON(c.stdout, controller.ParseRemoteStatus(st).View())
		return nil
	}
	ctl := controller.New(e.client, display.NewConsole(c.stdout), e.controllerConfig(nil))
	return ctl.RefreshStatus(ctx)
}

// Stats prints the usage counters once.
func (c *command) Stats(ctx context.Context, f QueryFlags) error {
	e, err := c.setup(false)
	if err != nil {
		return err
	}
	defer e.Close()

	if f.JSON {
		st, err := e.client.Stats(ctx)
		if err != nil {
			return err
		}
		printJSON(c.stdout, controller.StatsView{
			MessagesToday: st.MessagesToday,
			ActiveOrders:  st.ActiveOrders,
			UsersActive:   st.UsersActive,
		})
		return nil
	}
	ctl := controller.New(e.client, display.NewConsole(c.stdout), e.controllerConfig(nil))
	return ctl.RefreshStats(ctx)
}

// exporter starts the HTTP exporter when listen is set and returns the
// snapshot it serves plus a shutdown func. The snapshot is nil when disabled.
func (c *command) exporter(e *env, listen, basePath string, health server.Health) (*display.Snapshot, func(), error) {
	if listen == "" {
		return nil, func() {}, nil
	}
	tlsConfig, err := itls.Setup(e.cfg.Metrics.TLS)
	if err != nil {
		return nil, nil, fmt.Errorf("exporter TLS: %w", err)
	}
	snap := display.NewSnapshot(nil)
	router := server.NewRouter(snap, health, basePath).RequireToken(e.cfg.Metrics.Token)
	srv, err := server.Serve(listen, router, tlsConfig)
	if err != nil {
		return nil, nil, err
	}
	e.logger.Info("Serving dashboard", "addr", srv.Addr, "base_path", basePath, "tls", tlsConfig != nil)
	return snap, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// lateHealth lets the exporter start before the controller it reports on exists.
type lateHealth struct {
	ctl atomic.Pointer[controller.Controller]
}

func (h *lateHealth) Monitoring() bool {
	if ctl := h.ctl.Load(); ctl != nil {
		return ctl.Monitoring()
	}
	return false
}

func (h *lateHealth) InFlight() bool {
	if ctl := h.ctl.Load(); ctl != nil {
		return ctl.InFlight()
	}
	return false
}

// Watch monitors the bot headlessly, printing changes until interrupted.
func (c *command) Watch(ctx context.Context, f WatchFlags) error {
	e, err := c.setup(false)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	listen, basePath := f.Listen, f.BasePath
	if listen == "" {
		listen = e.cfg.Metrics.Listen
	}
	if basePath == "" {
		basePath = e.cfg.Metrics.BasePath
	}

	health := &lateHealth{}
	snap, shutdown, err := c.exporter(e, listen, basePath, health)
	if err != nil {
		return err
	}
	defer shutdown()

	var sink controller.Display = display.NewConsole(c.stdout)
	if snap != nil {
		sink = display.Multi{sink, snap}
	}
	ctl := controller.New(e.client, sink, e.controllerConfig(nil))
	health.ctl.Store(ctl)

	ctx, stop := signalContext(ctx)
	defer stop()
	e.logger.Info("Monitoring bot", "url", e.client.BaseURL(), "interval", ctl.Interval())
	return ctl.Run(ctx)
}

// Dashboard runs the interactive terminal dashboard.
func (c *command) Dashboard(ctx context.Context, f DashboardFlags) error {
	e, err := c.setup(true)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	listen := f.Listen
	if listen == "" {
		listen = e.cfg.Metrics.Listen
	}
	health := &lateHealth{}
	snap, shutdown, err := c.exporter(e, listen, e.cfg.Metrics.BasePath, health)
	if err != nil {
		return err
	}
	defer shutdown()

	sink := tui.NewSink()
	var disp controller.Display = sink
	if snap != nil {
		disp = display.Multi{sink, snap}
	}
	ctl := controller.New(e.client, disp, e.controllerConfig(sink))
	health.ctl.Store(ctl)

	ctx, cancel := signalContext(ctx)
	defer cancel()
	program := tui.NewProgram(ctx, ctl, sink, tea.WithAltScreen(), tea.WithInput(c.stdin), tea.WithOutput(c.stdout))

	runDone := make(chan error, 1)
	go func() { runDone <- ctl.Run(ctx) }()

	_, err = program.Run()
	cancel()
	if runErr := <-runDone; runErr != nil {
		return runErr
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Login verifies the endpoint and credentials with a status call, then saves them.
func (c *command) Login(ctx context.Context, f LoginFlags) error {
	e, err := c.setup(false)
	if err != nil {
		return err
	}
	defer e.Close()

	cc := e.cfg.ClientConfig(e.logger)
	if f.APIUrl != "" {
		cc.BaseURL = f.APIUrl
	}
	if f.Token != "" {
		cc.AuthToken = f.Token
	}
	if f.SessionCookie != "" {
		cc.SessionCookie = f.SessionCookie
	}
	cl := client.New(cc)

	if !cl.IsReachable(ctx) {
		return fmt.Errorf("bot API not reachable at %s", cl.BaseURL())
	}
	if _, err := cl.Status(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	now := time.Now()
	session := &Session{
		ServerURL:     cl.BaseURL(),
		Token:         cc.AuthToken,
		SessionCookie: cc.SessionCookie,
		SavedAt:       now,
	}
	if f.ExpiresIn > 0 {
		session.ExpiresAt = now.Add(f.ExpiresIn)
	}
	if err := c.sessions.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	_, _ = fmt.Fprintf(c.stdout, "Login successful! Using %s\n", session.ServerURL)
	_, _ = fmt.Fprintf(c.stdout, "Session saved to %s\n", c.sessions.GetSessionPath())
	if !session.ExpiresAt.IsZero() {
		_, _ = fmt.Fprintf(c.stdout, "Session expires at: %s\n", session.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// Logout clears the saved session
func (c *command) Logout() error {
	if !c.sessions.IsLoggedIn() {
		_, _ = fmt.Fprintln(c.stdout, "Not logged in")
		return nil
	}
	if err := c.sessions.ClearSession(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	_, _ = fmt.Fprintln(c.stdout, "Logged out")
	return nil
}
