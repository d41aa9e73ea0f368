package main

import "time"

// GlobalFlags are persistent flags shared by every subcommand. Zero values
// leave the config file and environment in charge.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
	LogLevel   string
}

// CommandFlags Flag structs to decouple cobra from logic for testing.
type CommandFlags struct {
	Yes bool // skip the confirmation prompt for stop/restart
}

type QueryFlags struct {
	JSON bool
}

type WatchFlags struct {
	Listen   string // exporter address; overrides [metrics] listen
	BasePath string
}

type DashboardFlags struct {
	Listen string
}

type LoginFlags struct {
	APIUrl        string
	Token         string
	SessionCookie string
	ExpiresIn     time.Duration
}
