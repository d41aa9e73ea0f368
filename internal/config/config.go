package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/botctl/internal/controller"
	"github.com/loykin/botctl/internal/logger"
	itls "github.com/loykin/botctl/internal/tls"
	"github.com/loykin/botctl/pkg/client"
)

// EnvPrefix prefixes every environment override, e.g. BOTCTL_API_URL.
const EnvPrefix = "BOTCTL"

// FileConfig represents the top-level TOML structure.
//
//	[api]
//	url = "http://127.0.0.1:5000/api/bot"
//	timeout = "10s"
//	token = ""
//	session_cookie = ""
//	insecure = false
//	  [api.tls]
//	  enabled = false
//	  ca_cert = ""
//	  client_cert = ""
//	  client_key = ""
//	  server_name = ""
//
//	[monitor]
//	interval = "5s"
//	notification_duration = "3s"
//
//	[log]
//	level = "info"
//	format = "text"
//	file = ""
//
//	[metrics]
//	listen = ""
//	base_path = ""
//	token = ""
//	  [metrics.tls]
//	  enabled = false
//	  dir = ""
//	  auto_generate = false
type FileConfig struct {
	API     APIConfig     `toml:"api" mapstructure:"api"`
	Monitor MonitorConfig `toml:"monitor" mapstructure:"monitor"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

type APIConfig struct {
	URL           string        `toml:"url" mapstructure:"url"`
	Timeout       time.Duration `toml:"timeout" mapstructure:"timeout"`
	Token         string        `toml:"token" mapstructure:"token"`
	SessionCookie string        `toml:"session_cookie" mapstructure:"session_cookie"`
	Insecure      bool          `toml:"insecure" mapstructure:"insecure"`
	TLS           TLSConfig     `toml:"tls" mapstructure:"tls"`
}

type TLSConfig struct {
	Enabled    bool   `toml:"enabled" mapstructure:"enabled"`
	CACert     string `toml:"ca_cert" mapstructure:"ca_cert"`
	ClientCert string `toml:"client_cert" mapstructure:"client_cert"`
	ClientKey  string `toml:"client_key" mapstructure:"client_key"`
	ServerName string `toml:"server_name" mapstructure:"server_name"`
}

type MonitorConfig struct {
	Interval             time.Duration `toml:"interval" mapstructure:"interval"`
	NotificationDuration time.Duration `toml:"notification_duration" mapstructure:"notification_duration"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
	Color      bool   `toml:"color" mapstructure:"color"`
}

type MetricsConfig struct {
	Listen   string       `toml:"listen" mapstructure:"listen"`
	BasePath string       `toml:"base_path" mapstructure:"base_path"`
	Token    string       `toml:"token" mapstructure:"token"`
	TLS      itls.Options `toml:"tls" mapstructure:"tls"`
}

// Default returns the configuration used when nothing is set.
func Default() FileConfig {
	return FileConfig{
		API: APIConfig{
			URL:     client.DefaultConfig().BaseURL,
			Timeout: client.DefaultConfig().Timeout,
		},
		Monitor: MonitorConfig{
			Interval:             controller.DefaultInterval,
			NotificationDuration: controller.DefaultNotificationDuration,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Color:      true,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("api.url", d.API.URL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.token", "")
	v.SetDefault("api.session_cookie", "")
	v.SetDefault("api.insecure", false)
	v.SetDefault("api.tls.enabled", false)
	v.SetDefault("api.tls.ca_cert", "")
	v.SetDefault("api.tls.client_cert", "")
	v.SetDefault("api.tls.client_key", "")
	v.SetDefault("api.tls.server_name", "")
	v.SetDefault("monitor.interval", d.Monitor.Interval)
	v.SetDefault("monitor.notification_duration", d.Monitor.NotificationDuration)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.color", d.Log.Color)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.base_path", "")
	v.SetDefault("metrics.token", "")
	v.SetDefault("metrics.tls.enabled", false)
	v.SetDefault("metrics.tls.cert_file", "")
	v.SetDefault("metrics.tls.key_file", "")
	v.SetDefault("metrics.tls.dir", "")
	v.SetDefault("metrics.tls.auto_generate", false)
	v.SetDefault("metrics.tls.min_version", "")
	v.SetDefault("metrics.tls.max_version", "")
}

// Load reads the TOML file at path (optional) and applies BOTCTL_* environment
// overrides on top. The result is validated.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Validate rejects settings the controller cannot run with.
func (fc FileConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(fc.API.URL) == "" {
		errs = append(errs, errors.New("api.url must not be empty"))
	} else if u, err := url.Parse(fc.API.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.url %q is not an absolute URL", fc.API.URL))
	}
	if fc.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive, got %s", fc.API.Timeout))
	}
	if fc.Monitor.Interval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.interval must be positive, got %s", fc.Monitor.Interval))
	}
	if fc.Monitor.NotificationDuration <= 0 {
		errs = append(errs, fmt.Errorf("monitor.notification_duration must be positive, got %s", fc.Monitor.NotificationDuration))
	}
	if _, err := logger.ParseLevel(fc.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(fc.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", fc.Log.Format))
	}
	if fc.API.TLS.Enabled && (fc.API.TLS.ClientCert == "") != (fc.API.TLS.ClientKey == "") {
		errs = append(errs, errors.New("api.tls.client_cert and api.tls.client_key must be set together"))
	}
	if fc.Metrics.TLS.Enabled && fc.Metrics.TLS.Dir == "" && (fc.Metrics.TLS.CertFile == "" || fc.Metrics.TLS.KeyFile == "") {
		errs = append(errs, errors.New("metrics.tls needs cert_file and key_file, or dir"))
	}
	return errors.Join(errs...)
}

// ClientConfig converts the [api] section for pkg/client.
func (fc FileConfig) ClientConfig(log *slog.Logger) client.Config {
	cfg := client.Config{
		BaseURL:       fc.API.URL,
		Timeout:       fc.API.Timeout,
		Logger:        log,
		Insecure:      fc.API.Insecure,
		AuthToken:     fc.API.Token,
		SessionCookie: fc.API.SessionCookie,
	}
	if fc.API.TLS.Enabled {
		cfg.TLS = &client.TLSClientConfig{
			Enabled:    true,
			CACert:     fc.API.TLS.CACert,
			ClientCert: fc.API.TLS.ClientCert,
			ClientKey:  fc.API.TLS.ClientKey,
			ServerName: fc.API.TLS.ServerName,
			SkipVerify: fc.API.Insecure,
		}
	}
	return cfg
}

// LoggerConfig converts the [log] section for internal/logger.
func (fc FileConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      fc.Log.Level,
		Format:     fc.Log.Format,
		File:       fc.Log.File,
		MaxSizeMB:  fc.Log.MaxSizeMB,
		MaxBackups: fc.Log.MaxBackups,
		MaxAgeDays: fc.Log.MaxAgeDays,
		Compress:   fc.Log.Compress,
		Color:      fc.Log.Color,
	}
}

// ControllerConfig converts the [monitor] section. Confirmer and Logger are
// left for the caller.
func (fc FileConfig) ControllerConfig() controller.Config {
	return controller.Config{
		Interval:             fc.Monitor.Interval,
		NotificationDuration: fc.Monitor.NotificationDuration,
	}
}
