package botctl

import (
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/botctl/internal/config"
	"github.com/loykin/botctl/internal/controller"
	"github.com/loykin/botctl/internal/display"
	"github.com/loykin/botctl/internal/metrics"
	"github.com/loykin/botctl/internal/server"
	"github.com/loykin/botctl/pkg/client"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Controller = controller.Controller

type Config = controller.Config

type Transport = controller.Transport

type Display = controller.Display

type Confirmer = controller.Confirmer

type ConfirmFunc = controller.ConfirmFunc

type Outcome = controller.Outcome

type StatusView = controller.StatusView

type StatsView = controller.StatsView

type Notification = controller.Notification

type Client = client.Client

type ClientConfig = client.Config

type Snapshot = display.Snapshot

type State = display.State

type FileConfig = config.FileConfig

// Confirmers for embedders without an interactive operator.
var (
	AlwaysConfirm = controller.AlwaysConfirm
	NeverConfirm  = controller.NeverConfirm
)

// New binds a controller to a transport and a display.
func New(t Transport, d Display, c Config) *Controller { return controller.New(t, d, c) }

// NewClient returns an HTTP transport for the bot control API.
func NewClient(c ClientConfig) *Client { return client.New(c) }

func DefaultClientConfig() ClientConfig { return client.DefaultConfig() }

// NewSnapshot returns an in-memory display suitable for serving over HTTP.
func NewSnapshot() *Snapshot { return display.NewSnapshot(nil) }

// NewConsole returns a line-oriented display writing to w.
func NewConsole(w io.Writer) Display { return display.NewConsole(w) }

// MultiDisplay fans updates out to every display in ds.
func MultiDisplay(ds ...Display) Display { return display.Multi(ds) }

func LoadConfig(path string) (*FileConfig, error) { return config.Load(path) }

// NewRouter returns the /dashboard, /healthz and /metrics handler for mounting
// into an existing server. ctl may be nil.
func NewRouter(s *Snapshot, ctl *Controller, basePath string) http.Handler {
	if ctl == nil {
		return server.NewRouter(s, nil, basePath).Handler()
	}
	return server.NewRouter(s, ctl, basePath).Handler()
}

// NewHTTPServer serves NewRouter on addr in the background.
func NewHTTPServer(addr, basePath string, s *Snapshot, ctl *Controller) (*http.Server, error) {
	if ctl == nil {
		return server.NewServer(addr, basePath, s, nil)
	}
	return server.NewServer(addr, basePath, s, ctl)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
