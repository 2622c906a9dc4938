package http

import (
	"sync"
	"time"

	"github.com/bikeshare/station-kiosk/internal/workflow"
)

// Event is one rendered UI event, queued until a client polls the session
type Event struct {
	Type      string    `json:"type"`
	Step      int       `json:"step,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Message   string    `json:"message,omitempty"`
	Visible   bool      `json:"visible,omitempty"`
	Remaining int       `json:"remaining,omitempty"`
	At        time.Time `json:"at"`
}

const (
	eventStep      = "step"
	eventAlert     = "alert"
	eventLoading   = "loading"
	eventCountdown = "countdown"
	eventSound     = "sound"
)

// EventRecorder implements workflow.Presenter by queuing rendered events.
// Countdown callbacks arrive from the timer goroutine, hence the lock.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

// NewEventRecorder creates an empty recorder
func NewEventRecorder(now func() time.Time) *EventRecorder {
	return &EventRecorder{now: now}
}

func (r *EventRecorder) append(e Event) {
	e.At = r.now()
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *EventRecorder) RenderStep(step int) {
	r.append(Event{Type: eventStep, Step: step})
}

func (r *EventRecorder) RenderAlert(severity workflow.Severity, message string) {
	r.append(Event{Type: eventAlert, Severity: string(severity), Message: message})
}

func (r *EventRecorder) RenderLoading(visible bool, text string) {
	r.append(Event{Type: eventLoading, Visible: visible, Message: text})
}

func (r *EventRecorder) RenderCountdown(remaining int) {
	r.append(Event{Type: eventCountdown, Remaining: remaining})
}

func (r *EventRecorder) PlayAlertSound() {
	r.append(Event{Type: eventSound})
}

// Drain returns the queued events and clears the queue
func (r *EventRecorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}
