package controller

import (
	"fmt"
	"time"
)

// Phase is the visual state of the status panel.
// PhaseConnectionError is only reachable from a failed status poll.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseRunning
	PhaseStopped
	PhaseConnectionError
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	case PhaseConnectionError:
		return "connection_error"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in JSON snapshots.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Color is the semantic color of the status indicator.
type Color string

const (
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGray   Color = "gray"
)

// Indicator is the glyph+color shown next to the headline.
type Indicator struct {
	Glyph string `json:"glyph"`
	Color Color  `json:"color"`
}

// Affordance identifies one of the three command controls.
type Affordance int

const (
	AffordanceStart Affordance = iota
	AffordanceStop
	AffordanceRestart
)

// AllAffordances lists the command controls in display order.
var AllAffordances = []Affordance{AffordanceStart, AffordanceStop, AffordanceRestart}

func (a Affordance) String() string {
	switch a {
	case AffordanceStart:
		return "start"
	case AffordanceStop:
		return "stop"
	case AffordanceRestart:
		return "restart"
	}
	return fmt.Sprintf("affordance(%d)", int(a))
}

// MarshalText renders the affordance by name in JSON snapshots.
func (a Affordance) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Label returns the resting label, or the in-progress label when busy.
func (a Affordance) Label(busy bool) string {
	switch a {
	case AffordanceStart:
		if busy {
			return "Starting..."
		}
		return "Start Bot"
	case AffordanceStop:
		if busy {
			return "Stopping..."
		}
		return "Stop Bot"
	case AffordanceRestart:
		if busy {
			return "Restarting..."
		}
		return "Restart Bot"
	}
	return a.String()
}

// AffordanceState is the enabled/busy state of one control.
type AffordanceState struct {
	Enabled bool `json:"enabled"`
	Busy    bool `json:"busy"`
}

// Affordances holds the enabled flag of each control as decided by a status poll.
type Affordances struct {
	Start   bool `json:"start"`
	Stop    bool `json:"stop"`
	Restart bool `json:"restart"`
}

// Enabled reports the flag for a.
func (s Affordances) Enabled(a Affordance) bool {
	switch a {
	case AffordanceStart:
		return s.Start
	case AffordanceStop:
		return s.Stop
	case AffordanceRestart:
		return s.Restart
	}
	return false
}

// StatusView is one complete update of the status panel.
// A nil Affordances leaves the controls as they were.
type StatusView struct {
	Phase       Phase        `json:"phase"`
	Indicator   Indicator    `json:"indicator"`
	Headline    string       `json:"headline"`
	Detail      string       `json:"detail"`
	Uptime      string       `json:"uptime"`
	Affordances *Affordances `json:"affordances,omitempty"`
}

// StatsView carries the usage counters.
type StatsView struct {
	MessagesToday int `json:"messages_today"`
	ActiveOrders  int `json:"active_orders"`
	UsersActive   int `json:"users_active"`
}

// Severity tags a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notification is a transient message the sink shows for Duration and then removes.
type Notification struct {
	Message  string        `json:"message"`
	Severity Severity      `json:"severity"`
	Duration time.Duration `json:"duration"`
}

// Display renders controller state. Calls from one Controller never overlap,
// but they arrive on arbitrary goroutines.
type Display interface {
	ShowStatus(StatusView)
	ShowStats(StatsView)
	SetAffordance(Affordance, AffordanceState)
	Notify(Notification)
}
