package controller

import (
	"strconv"

	"github.com/loykin/botctl/pkg/client"
)

// UptimePlaceholder is shown when no uptime is known.
const UptimePlaceholder = "--"

const indicatorGlyph = "●"

// State is the remote process condition as reported by a successful status poll.
type State int

const (
	StateUnknown State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// RemoteStatus is the classified status report. PID, MemoryMB and Uptime are
// meaningful only when Running; ErrorDetail only when Unknown.
type RemoteStatus struct {
	State       State
	PID         *int
	MemoryMB    *float64
	Uptime      string
	ErrorDetail string
}

// ParseRemoteStatus classifies a raw status report. Anything other than
// "running" or "stopped" is Unknown.
func ParseRemoteStatus(st client.Status) RemoteStatus {
	switch st.State {
	case "running":
		return RemoteStatus{State: StateRunning, PID: st.PID, MemoryMB: st.MemoryMB, Uptime: st.Uptime}
	case "stopped":
		return RemoteStatus{State: StateStopped}
	}
	return RemoteStatus{State: StateUnknown, ErrorDetail: st.Error}
}

// View maps the status onto the panel, including which controls are usable.
func (r RemoteStatus) View() StatusView {
	switch r.State {
	case StateRunning:
		uptime := r.Uptime
		if uptime == "" {
			uptime = UptimePlaceholder
		}
		return StatusView{
			Phase:       PhaseRunning,
			Indicator:   Indicator{Glyph: indicatorGlyph, Color: ColorGreen},
			Headline:    "Bot running",
			Detail:      "PID: " + formatPID(r.PID) + " | Memory: " + formatMemory(r.MemoryMB) + " MB",
			Uptime:      uptime,
			Affordances: &Affordances{Start: false, Stop: true, Restart: true},
		}
	case StateStopped:
		return StatusView{
			Phase:       PhaseStopped,
			Indicator:   Indicator{Glyph: indicatorGlyph, Color: ColorRed},
			Headline:    "Bot stopped",
			Detail:      "The bot is not running",
			Uptime:      UptimePlaceholder,
			Affordances: &Affordances{Start: true, Stop: false, Restart: false},
		}
	}
	detail := r.ErrorDetail
	if detail == "" {
		detail = "Failed to check bot status"
	}
	return StatusView{
		Phase:     PhaseUnknown,
		Indicator: Indicator{Glyph: indicatorGlyph, Color: ColorYellow},
		Headline:  "Unknown state",
		Detail:    detail,
		Uptime:    UptimePlaceholder,
	}
}

// connectionErrorView is what the panel shows when the status query itself failed.
func connectionErrorView() StatusView {
	return StatusView{
		Phase:     PhaseConnectionError,
		Indicator: Indicator{Glyph: indicatorGlyph, Color: ColorGray},
		Headline:  "Connection error",
		Detail:    "Could not reach the server",
		Uptime:    UptimePlaceholder,
	}
}

func formatPID(pid *int) string {
	if pid == nil {
		return UptimePlaceholder
	}
	return strconv.Itoa(*pid)
}

func formatMemory(mb *float64) string {
	if mb == nil {
		return UptimePlaceholder
	}
	return strconv.FormatFloat(*mb, 'f', -1, 64)
}
