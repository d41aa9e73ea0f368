package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loykin/botctl/internal/controller"
	"github.com/loykin/botctl/internal/display"
)

// Actions is what the dashboard can ask of the controller.
type Actions interface {
	Start(ctx context.Context) controller.Outcome
	Stop(ctx context.Context) controller.Outcome
	Restart(ctx context.Context) controller.Outcome
	RefreshStatus(ctx context.Context) error
	RefreshStats(ctx context.Context) error
}

type commandDoneMsg struct {
	affordance controller.Affordance
	outcome    controller.Outcome
}

type refreshDoneMsg struct{}

// notifyFadeMsg clears the notification with the given id, if still shown.
type notifyFadeMsg struct{ id int }

// Model is the bubbletea model for the bot dashboard.
type Model struct {
	ctx     context.Context
	actions Actions
	theme   Theme
	keys    KeyMap

	status      controller.StatusView
	stats       controller.StatsView
	affordances map[controller.Affordance]controller.AffordanceState

	note   *controller.Notification
	noteID int

	confirm *confirmRequestMsg

	spinner spinner.Model
	width   int
}

// NewModel returns a dashboard in its initial state. Commands run with ctx.
func NewModel(ctx context.Context, actions Actions, theme Theme) Model {
	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = lipgloss.NewStyle().Foreground(theme.Yellow)

	aff := make(map[controller.Affordance]controller.AffordanceState, len(controller.AllAffordances))
	for _, a := range controller.AllAffordances {
		aff[a] = controller.AffordanceState{Enabled: true}
	}
	return Model{
		ctx:         ctx,
		actions:     actions,
		theme:       theme,
		keys:        DefaultKeyMap,
		status:      display.InitialStatus(),
		affordances: aff,
		spinner:     spin,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case statusMsg:
		m.status = msg.view
		if msg.view.Affordances != nil {
			for _, a := range controller.AllAffordances {
				st := m.affordances[a]
				st.Enabled = msg.view.Affordances.Enabled(a)
				m.affordances[a] = st
			}
		}
		return m, nil

	case statsMsg:
		m.stats = msg.view
		return m, nil

	case affordanceMsg:
		m.affordances[msg.affordance] = msg.state
		return m, nil

	case notifyMsg:
		m.noteID++
		note := msg.note
		m.note = &note
		id := m.noteID
		return m, tea.Tick(note.Duration, func(time.Time) tea.Msg {
			return notifyFadeMsg{id: id}
		})

	case notifyFadeMsg:
		if msg.id == m.noteID {
			m.note = nil
		}
		return m, nil

	case confirmRequestMsg:
		if m.confirm != nil {
			msg.reply <- false
			return m, nil
		}
		m.confirm = &msg
		return m, nil

	case commandDoneMsg, refreshDoneMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.answer(true)
		case key.Matches(msg, m.keys.Decline):
			m.answer(false)
		case msg.String() == "ctrl+c":
			m.answer(false)
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Start):
		return m, m.command(controller.AffordanceStart, m.actions.Start)
	case key.Matches(msg, m.keys.Stop):
		return m, m.command(controller.AffordanceStop, m.actions.Stop)
	case key.Matches(msg, m.keys.Restart):
		return m, m.command(controller.AffordanceRestart, m.actions.Restart)
	case key.Matches(msg, m.keys.Refresh):
		ctx, actions := m.ctx, m.actions
		return m, func() tea.Msg {
			_ = actions.RefreshStatus(ctx)
			_ = actions.RefreshStats(ctx)
			return refreshDoneMsg{}
		}
	}
	return m, nil
}

// command runs fn off the update loop, since Stop and Restart block on the
// confirmation modal which this loop has to render.
func (m Model) command(a controller.Affordance, fn func(context.Context) controller.Outcome) tea.Cmd {
	if st := m.affordances[a]; !st.Enabled || st.Busy {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return commandDoneMsg{affordance: a, outcome: fn(ctx)}
	}
}

func (m *Model) answer(ok bool) {
	m.confirm.reply <- ok
	m.confirm = nil
}

func (m Model) View() string {
	t := m.theme
	title := lipgloss.NewStyle().Bold(true).Foreground(t.Title)
	faint := lipgloss.NewStyle().Foreground(t.FaintText)
	normal := lipgloss.NewStyle().Foreground(t.NormalText)

	var b strings.Builder
	b.WriteString(title.Render("Bot Control"))
	b.WriteString("\n\n")

	glyph := lipgloss.NewStyle().Foreground(t.indicator(m.status.Indicator.Color)).Render(m.status.Indicator.Glyph)
	b.WriteString(glyph + " " + normal.Bold(true).Render(m.status.Headline) + "\n")
	if m.status.Detail != "" {
		b.WriteString("  " + faint.Render(m.status.Detail) + "\n")
	}
	b.WriteString("  " + faint.Render("Uptime: ") + normal.Render(m.status.Uptime) + "\n\n")

	counter := func(label string, n int) string {
		return faint.Render(label+" ") + normal.Bold(true).Render(fmt.Sprint(n))
	}
	b.WriteString(strings.Join([]string{
		counter("Messages today", m.stats.MessagesToday),
		counter("Active orders", m.stats.ActiveOrders),
		counter("Active users", m.stats.UsersActive),
	}, "    "))
	b.WriteString("\n\n")

	bindings := map[controller.Affordance]key.Binding{
		controller.AffordanceStart:   m.keys.Start,
		controller.AffordanceStop:    m.keys.Stop,
		controller.AffordanceRestart: m.keys.Restart,
	}
	buttons := make([]string, 0, len(controller.AllAffordances))
	for _, a := range controller.AllAffordances {
		buttons = append(buttons, m.button(a, bindings[a]))
	}
	b.WriteString(strings.Join(buttons, "  "))
	b.WriteString("\n\n")

	switch {
	case m.confirm != nil:
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(t.Yellow).Render(m.confirm.prompt))
		b.WriteString(faint.Render(" [y/N]"))
	case m.note != nil:
		b.WriteString(lipgloss.NewStyle().Foreground(t.severity(m.note.Severity)).Render(m.note.Message))
	default:
		b.WriteString(faint.Render(m.help()))
	}
	b.WriteString("\n")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
	if m.width > 4 {
		box = box.Width(m.width - 2)
	}
	return box.Render(b.String())
}

func (m Model) button(a controller.Affordance, binding key.Binding) string {
	st := m.affordances[a]
	label := a.Label(st.Busy)
	if st.Busy {
		label = m.spinner.View() + " " + label
	}
	text := "[" + binding.Help().Key + "] " + label
	style := lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder())
	if !st.Enabled || st.Busy {
		return style.Foreground(m.theme.FaintText).BorderForeground(m.theme.Border).Render(text)
	}
	return style.Foreground(m.theme.NormalText).BorderForeground(m.theme.Title).Render(text)
}

func (m Model) help() string {
	parts := make([]string, 0, 5)
	for _, b := range []key.Binding{m.keys.Start, m.keys.Stop, m.keys.Restart, m.keys.Refresh, m.keys.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
