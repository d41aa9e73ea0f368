package server

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/botctl/internal/display"
	"github.com/loykin/botctl/internal/metrics"
)

// StateSource supplies the dashboard snapshot. *display.Snapshot implements it.
type StateSource interface {
	State() display.State
}

// Health reports on the monitoring loop. *controller.Controller implements it.
type Health interface {
	Monitoring() bool
	InFlight() bool
}

// Router exposes the controller's view over HTTP.
// Endpoints:
//
//	GET {basePath}/dashboard   snapshot JSON
//	GET {basePath}/healthz     200 while monitoring, 503 otherwise
//	GET {basePath}/metrics     Prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
// With RequireToken, dashboard and metrics need a bearer token; healthz stays open for probes.
type Router struct {
	source   StateSource
	health   Health
	basePath string
	token    string
}

// NewRouter constructs a Router. health may be nil, in which case /healthz
// always reports ok.
func NewRouter(source StateSource, health Health, basePath string) *Router {
	return &Router{source: source, health: health, basePath: sanitizeBase(basePath)}
}

// RequireToken guards the dashboard and metrics endpoints with a bearer token.
func (r *Router) RequireToken(token string) *Router {
	r.token = token
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealth)
	guarded := group.Group("", requireToken(r.token))
	guarded.GET("/dashboard", r.handleDashboard)
	guarded.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer listens on addr and serves a fresh router over plain HTTP in the
// background. Bind errors are returned; the caller owns Shutdown.
func NewServer(addr, basePath string, source StateSource, health Health) (*http.Server, error) {
	return Serve(addr, NewRouter(source, health, basePath), nil)
}

// Serve listens on addr and serves r in the background, over HTTPS when
// tlsConfig is non-nil.
func Serve(addr string, r *Router, tlsConfig *tls.Config) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           r.Handler(),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	go func() { _ = server.Serve(ln) }()
	return server, nil
}

type healthResp struct {
	OK         bool `json:"ok"`
	Monitoring bool `json:"monitoring"`
	InFlight   bool `json:"in_flight"`
}

func (r *Router) handleDashboard(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.source.State())
}

func (r *Router) handleHealth(c *gin.Context) {
	if r.health == nil {
		writeJSON(c, http.StatusOK, healthResp{OK: true})
		return
	}
	resp := healthResp{
		OK:         r.health.Monitoring(),
		Monitoring: r.health.Monitoring(),
		InFlight:   r.health.InFlight(),
	}
	code := http.StatusOK
	if !resp.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(c, code, resp)
}
