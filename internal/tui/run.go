package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// NewProgram builds the dashboard program and attaches sink to it, so updates
// sent before Run starts are queued rather than dropped.
func NewProgram(ctx context.Context, actions Actions, sink *Sink, opts ...tea.ProgramOption) *tea.Program {
	model := NewModel(ctx, actions, DefaultTheme)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	program := tea.NewProgram(model, opts...)
	sink.SetProgram(program)
	return program
}
