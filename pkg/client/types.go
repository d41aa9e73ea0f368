package client

import "errors"

// ErrMalformedResponse is returned when the server answers with a body that is
// not a JSON object.
var ErrMalformedResponse = errors.New("malformed response")

// Command names a control command understood by the bot control endpoints.
type Command string

const (
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandRestart Command = "restart"
)

func (c Command) String() string { return string(c) }

// Valid reports whether c is one of the known control commands.
func (c Command) Valid() bool {
	switch c {
	case CommandStart, CommandStop, CommandRestart:
		return true
	}
	return false
}

// CommandResult is the decoded answer to a control command.
// Success=false is a logical failure reported by the server, not a transport error.
type CommandResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

// Status is the raw status report of the bot process.
// PID and MemoryMB are nil when the server reported null or omitted them.
type Status struct {
	State    string   `json:"status"`
	PID      *int     `json:"pid,omitempty"`
	MemoryMB *float64 `json:"memory_mb,omitempty"`
	Uptime   string   `json:"uptime,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Stats holds the auxiliary usage counters. Missing or malformed fields are 0.
type Stats struct {
	MessagesToday int `json:"messages_today"`
	ActiveOrders  int `json:"orders_active"`
	UsersActive   int `json:"users_active"`
}
