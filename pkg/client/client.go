package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "http://127.0.0.1:5000/api/bot"
	defaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 1 << 20

	// RequestIDHeader carries a per-request id for log correlation.
	RequestIDHeader = "X-Request-ID"
)

// Client talks to the bot control endpoints (start/stop/restart/status/stats).
// It never retries: a command lost in transit is reported to the caller as an error.
type Client struct {
	baseURL       string
	client        *http.Client
	logger        *slog.Logger
	authToken     string
	sessionCookie string
}

// Config holds client configuration
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	Logger        *slog.Logger // Optional logger for client operations
	TLS           *TLSClientConfig
	Insecure      bool   // Skip TLS verification
	AuthToken     string // Sent as "Authorization: Bearer <token>" when set
	SessionCookie string // Raw Cookie header value, e.g. "session=abc"
}

// TLSClientConfig holds TLS configuration for client
type TLSClientConfig struct {
	Enabled    bool   // Enable TLS
	CACert     string // CA certificate file path
	ClientCert string // Client certificate file
	ClientKey  string // Client private key file
	ServerName string // Server name for verification
	SkipVerify bool   // Skip certificate verification
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: defaultBaseURL,
		Timeout: defaultTimeout,
	}
}

// New creates a new bot control client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if config.TLS != nil && config.TLS.Enabled || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &Client{
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		logger:        config.Logger,
		authToken:     config.AuthToken,
		sessionCookie: config.SessionCookie,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// BaseURL returns the endpoint prefix the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// SetAuthToken sets the bearer token used on subsequent requests.
func (c *Client) SetAuthToken(token string) { c.authToken = token }

// IsReachable checks if the control endpoints answer at all
func (c *Client) IsReachable(ctx context.Context) bool {
	resp, _, err := c.do(ctx, http.MethodGet, "/status")
	if err != nil {
		c.logger.Debug("Bot API unreachable", "error", err)
		return false
	}
	isReachable := resp.StatusCode != http.StatusNotFound
	c.logger.Debug("Bot API reachability check", "reachable", isReachable, "status", resp.StatusCode)
	return isReachable
}

// Command sends a control command. The response body is decoded whatever the HTTP
// status, because the server reports refusals as {success:false,message} with 4xx codes.
func (c *Client) Command(ctx context.Context, cmd Command) (CommandResult, error) {
	if !cmd.Valid() {
		return CommandResult{}, fmt.Errorf("unknown command %q", cmd)
	}
	c.logger.Debug("Sending bot command", "command", cmd)

	resp, body, err := c.do(ctx, http.MethodPost, "/"+cmd.String())
	if err != nil {
		return CommandResult{}, err
	}
	res, err := parseCommandResult(resp.StatusCode, body)
	if err != nil {
		c.logger.Error("Failed to decode command response", "command", cmd, "status", resp.StatusCode)
		return CommandResult{}, err
	}

	c.logger.Debug("Bot command completed", "command", cmd, "success", res.Success, "status", resp.StatusCode)
	return res, nil
}

// Status queries the current state of the bot process
func (c *Client) Status(ctx context.Context) (Status, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/status")
	if err != nil {
		return Status{}, err
	}
	if err := c.handleErrorResponse(resp.StatusCode, body); err != nil {
		return Status{}, err
	}
	return parseStatus(body)
}

// Stats queries the usage counters of the bot
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/stats")
	if err != nil {
		return Stats{}, err
	}
	if err := c.handleErrorResponse(resp.StatusCode, body); err != nil {
		return Stats{}, err
	}
	return parseStats(body)
}

// setupClientTLS configures TLS settings for HTTP client
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}

	if config.TLS != nil {
		if config.TLS.SkipVerify {
			tlsConfig.InsecureSkipVerify = true
		}
		if config.TLS.ServerName != "" {
			tlsConfig.ServerName = config.TLS.ServerName
		}
		if config.TLS.CACert != "" {
			if err := loadCACert(tlsConfig, config.TLS.CACert); err != nil {
				return nil, fmt.Errorf("failed to load CA certificate: %w", err)
			}
		}
		if config.TLS.ClientCert != "" && config.TLS.ClientKey != "" {
			cert, err := tls.LoadX509KeyPair(config.TLS.ClientCert, config.TLS.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
	}

	return tlsConfig, nil
}

// loadCACert loads CA certificate from file and adds it to TLS config
func loadCACert(tlsConfig *tls.Config, caCertPath string) error {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	tlsConfig.RootCAs = caCertPool
	return nil
}

// do performs the request and reads the (bounded) body.
func (c *Client) do(ctx context.Context, method, path string) (*http.Response, []byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if c.sessionCookie != "" {
		req.Header.Set("Cookie", c.sessionCookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", url, "request_id", requestID)
		return nil, nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, body, nil
}

// handleErrorResponse turns non-2xx answers of the query endpoints into errors
func (c *Client) handleErrorResponse(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := gjson.GetBytes(body, "error")
	if !gjson.ValidBytes(body) || msg.Type != gjson.String || msg.String() == "" {
		c.logger.Error("API request failed", "status", status)
		return fmt.Errorf("HTTP %d", status)
	}
	c.logger.Error("API request failed", "error", msg.String(), "status", status)
	return fmt.Errorf("API error: %s", msg.String())
}

func parseObject(status int, body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: HTTP %d", ErrMalformedResponse, status)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: HTTP %d: not a JSON object", ErrMalformedResponse, status)
	}
	return root, nil
}

func parseCommandResult(status int, body []byte) (CommandResult, error) {
	root, err := parseObject(status, body)
	if err != nil {
		return CommandResult{}, err
	}
	res := CommandResult{
		Success:    root.Get("success").Type == gjson.True,
		Message:    root.Get("message").String(),
		HTTPStatus: status,
	}
	if res.Message == "" {
		if e := root.Get("error"); e.Type == gjson.String {
			res.Message = e.String()
		} else if status >= 400 {
			res.Message = fmt.Sprintf("HTTP %d", status)
		}
	}
	return res, nil
}

func parseStatus(body []byte) (Status, error) {
	root, err := parseObject(http.StatusOK, body)
	if err != nil {
		return Status{}, err
	}
	st := Status{State: root.Get("status").String()}
	if v := root.Get("pid"); v.Type == gjson.Number {
		pid := int(v.Int())
		st.PID = &pid
	}
	if v := root.Get("memory_mb"); v.Type == gjson.Number {
		mem := v.Float()
		st.MemoryMB = &mem
	}
	if v := root.Get("uptime"); v.Type == gjson.String {
		st.Uptime = v.String()
	}
	if v := root.Get("error"); v.Type == gjson.String {
		st.Error = v.String()
	}
	return st, nil
}

func parseStats(body []byte) (Stats, error) {
	root, err := parseObject(http.StatusOK, body)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		MessagesToday: counter(root.Get("messages_today")),
		ActiveOrders:  counter(root.Get("orders_active")),
		UsersActive:   counter(root.Get("users_active")),
	}, nil
}

// counter reads a non-negative integer; anything else counts as 0.
func counter(v gjson.Result) int {
	if v.Type != gjson.Number {
		return 0
	}
	n := v.Int()
	if n < 0 {
		return 0
	}
	return int(n)
}
