package display

import (
	"sync"
	"time"

	"github.com/loykin/botctl/internal/controller"
)

// InitialStatus is the panel content before the first status poll completes.
func InitialStatus() controller.StatusView {
	return controller.StatusView{
		Phase:     controller.PhaseUnknown,
		Indicator: controller.Indicator{Glyph: "●", Color: controller.ColorGray},
		Headline:  "Checking status...",
		Uptime:    controller.UptimePlaceholder,
	}
}

// ActiveNotification is a notification still within its display window.
type ActiveNotification struct {
	controller.Notification
	ExpiresAt time.Time `json:"expires_at"`
}

// State is a point-in-time copy of everything a dashboard shows.
type State struct {
	Status        controller.StatusView                                 `json:"status"`
	Stats         controller.StatsView                                  `json:"stats"`
	Affordances   map[controller.Affordance]controller.AffordanceState `json:"affordances"`
	Notifications []ActiveNotification                                  `json:"notifications"`
	UpdatedAt     time.Time                                             `json:"updated_at"`
}

// Snapshot is a goroutine-safe in-memory display. Notifications are dropped
// once their duration has elapsed.
type Snapshot struct {
	now func() time.Time

	mu    sync.RWMutex
	state State
}

// NewSnapshot returns a snapshot in its initial state. now may be nil.
func NewSnapshot(now func() time.Time) *Snapshot {
	if now == nil {
		now = time.Now
	}
	aff := make(map[controller.Affordance]controller.AffordanceState, len(controller.AllAffordances))
	for _, a := range controller.AllAffordances {
		aff[a] = controller.AffordanceState{Enabled: true}
	}
	return &Snapshot{
		now: now,
		state: State{
			Status:      InitialStatus(),
			Affordances: aff,
		},
	}
}

func (s *Snapshot) ShowStatus(v controller.StatusView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Status = v
	if v.Affordances != nil {
		for _, a := range controller.AllAffordances {
			st := s.state.Affordances[a]
			st.Enabled = v.Affordances.Enabled(a)
			s.state.Affordances[a] = st
		}
	}
	s.state.UpdatedAt = s.now()
}

func (s *Snapshot) ShowStats(v controller.StatsView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Stats = v
	s.state.UpdatedAt = s.now()
}

func (s *Snapshot) SetAffordance(a controller.Affordance, st controller.AffordanceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Affordances[a] = st
	s.state.UpdatedAt = s.now()
}

func (s *Snapshot) Notify(n controller.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.state.Notifications = append(pruneExpired(s.state.Notifications, now), ActiveNotification{
		Notification: n,
		ExpiresAt:    now.Add(n.Duration),
	})
	s.state.UpdatedAt = now
}

// State returns a copy of the current state without expired notifications.
func (s *Snapshot) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Affordances = make(map[controller.Affordance]controller.AffordanceState, len(s.state.Affordances))
	for k, v := range s.state.Affordances {
		out.Affordances[k] = v
	}
	out.Notifications = pruneExpired(append([]ActiveNotification(nil), s.state.Notifications...), s.now())
	if out.Status.Affordances != nil {
		aff := *out.Status.Affordances
		out.Status.Affordances = &aff
	}
	return out
}

func pruneExpired(ns []ActiveNotification, now time.Time) []ActiveNotification {
	kept := ns[:0]
	for _, n := range ns {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	return kept
}
