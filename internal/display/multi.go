package display

import "github.com/loykin/botctl/internal/controller"

// Multi fans every update out to each sink in order.
type Multi []controller.Display

func (m Multi) ShowStatus(v controller.StatusView) {
	for _, d := range m {
		d.ShowStatus(v)
	}
}

func (m Multi) ShowStats(v controller.StatsView) {
	for _, d := range m {
		d.ShowStats(v)
	}
}

func (m Multi) SetAffordance(a controller.Affordance, st controller.AffordanceState) {
	for _, d := range m {
		d.SetAffordance(a, st)
	}
}

func (m Multi) Notify(n controller.Notification) {
	for _, d := range m {
		d.Notify(n)
	}
}
