package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/loykin/botctl/internal/controller"
)

// indicatorColors maps indicator colors onto the basic ANSI palette.
var indicatorColors = map[controller.Color]lipgloss.Color{
	controller.ColorGreen:  lipgloss.Color("2"),
	controller.ColorRed:    lipgloss.Color("1"),
	controller.ColorYellow: lipgloss.Color("3"),
	controller.ColorGray:   lipgloss.Color("8"),
}

var severityColors = map[controller.Severity]lipgloss.Color{
	controller.SeveritySuccess: lipgloss.Color("2"),
	controller.SeverityError:   lipgloss.Color("1"),
	controller.SeverityInfo:    lipgloss.Color("4"),
}

// Console renders controller output as lines on a writer. Status and stats are
// printed only when they change, so it can back a long-running watch.
type Console struct {
	w        io.Writer
	renderer *lipgloss.Renderer

	mu         sync.Mutex
	lastStatus *controller.StatusView
	lastStats  *controller.StatsView
}

// NewConsole renders to w. Colors are used only if w is a color-capable terminal.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, renderer: lipgloss.NewRenderer(w)}
}

func (c *Console) ShowStatus(v controller.StatusView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastStatus != nil && sameStatus(*c.lastStatus, v) {
		return
	}
	c.lastStatus = &v

	glyph := c.renderer.NewStyle().Foreground(indicatorColors[v.Indicator.Color]).Render(v.Indicator.Glyph)
	headline := c.renderer.NewStyle().Bold(true).Render(v.Headline)
	_, _ = fmt.Fprintf(c.w, "%s %s - %s (uptime %s)\n", glyph, headline, v.Detail, v.Uptime)
}

func (c *Console) ShowStats(v controller.StatsView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastStats != nil && *c.lastStats == v {
		return
	}
	c.lastStats = &v
	_, _ = fmt.Fprintf(c.w, "messages today: %d  active orders: %d  active users: %d\n",
		v.MessagesToday, v.ActiveOrders, v.UsersActive)
}

func (c *Console) SetAffordance(a controller.Affordance, st controller.AffordanceState) {
	if !st.Busy {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, c.renderer.NewStyle().Faint(true).Render(a.Label(true)))
}

func (c *Console) Notify(n controller.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tag := c.renderer.NewStyle().Foreground(severityColors[n.Severity]).Render("[" + string(n.Severity) + "]")
	_, _ = fmt.Fprintf(c.w, "%s %s\n", tag, n.Message)
}

func sameStatus(a, b controller.StatusView) bool {
	if a.Phase != b.Phase || a.Indicator != b.Indicator || a.Headline != b.Headline ||
		a.Detail != b.Detail || a.Uptime != b.Uptime {
		return false
	}
	if (a.Affordances == nil) != (b.Affordances == nil) {
		return false
	}
	return a.Affordances == nil || *a.Affordances == *b.Affordances
}
