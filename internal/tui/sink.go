package tui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loykin/botctl/internal/controller"
)

type statusMsg struct{ view controller.StatusView }

type statsMsg struct{ view controller.StatsView }

type affordanceMsg struct {
	affordance controller.Affordance
	state      controller.AffordanceState
}

type notifyMsg struct{ note controller.Notification }

// confirmRequestMsg opens the confirmation modal. The model answers on reply
// exactly once; reply is buffered so the model never blocks on it.
type confirmRequestMsg struct {
	prompt string
	reply  chan bool
}

// Sink forwards controller output into a running bubbletea program and
// answers confirmations through the dashboard's modal.
//
// Create the Sink before the program, then call SetProgram. Updates that
// arrive before SetProgram are dropped and confirmations are declined.
type Sink struct {
	program atomic.Pointer[tea.Program]
}

// NewSink returns a sink with no program attached.
func NewSink() *Sink { return &Sink{} }

// SetProgram attaches the program that receives updates. Safe from any goroutine.
func (s *Sink) SetProgram(p *tea.Program) { s.program.Store(p) }

func (s *Sink) send(msg tea.Msg) bool {
	p := s.program.Load()
	if p == nil {
		return false
	}
	p.Send(msg)
	return true
}

func (s *Sink) ShowStatus(v controller.StatusView) { s.send(statusMsg{view: v}) }

func (s *Sink) ShowStats(v controller.StatsView) { s.send(statsMsg{view: v}) }

func (s *Sink) SetAffordance(a controller.Affordance, st controller.AffordanceState) {
	s.send(affordanceMsg{affordance: a, state: st})
}

func (s *Sink) Notify(n controller.Notification) { s.send(notifyMsg{note: n}) }

// Confirm shows the prompt in the dashboard and blocks until the user answers
// or ctx is done.
func (s *Sink) Confirm(ctx context.Context, prompt string) bool {
	req := confirmRequestMsg{prompt: prompt, reply: make(chan bool, 1)}
	if !s.send(req) {
		return false
	}
	select {
	case ok := <-req.reply:
		return ok
	case <-ctx.Done():
		return false
	}
}
