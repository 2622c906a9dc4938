// Package workflow implements the five kiosk wizards: card return, card
// purchase, bike rental, top-up and bike return. Each workflow owns its
// session record and drives a presentation layer through the Presenter
// contract; it never touches rendering itself.
package workflow

import "time"

// Severity classifies an alert for the presentation layer
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Presenter is the narrow callback surface the kiosk core drives. Alert
// auto-dismissal and sound-playback failures are the adapter's concern.
type Presenter interface {
	RenderStep(step int)
	RenderAlert(severity Severity, message string)
	RenderLoading(visible bool, text string)
	RenderCountdown(secondsRemaining int)
	PlayAlertSound()
}

// Clock yields the current time; tests inject fixed clocks
type Clock func() time.Time

// NopPresenter discards everything; useful for tests that only inspect
// session state.
type NopPresenter struct{}

func (NopPresenter) RenderStep(int)                 {}
func (NopPresenter) RenderAlert(Severity, string)   {}
func (NopPresenter) RenderLoading(bool, string)     {}
func (NopPresenter) RenderCountdown(int)            {}
func (NopPresenter) PlayAlertSound()                {}
