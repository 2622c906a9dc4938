package flow

// Step is a 1-based position in a kiosk wizard
type Step int

// Event is a user- or system-originated request to move between steps
type Event string

const (
	// EventAdvance moves forward to the next step
	EventAdvance Event = "ADVANCE"

	// EventRetreat moves back to an earlier step
	EventRetreat Event = "RETREAT"

	// EventReset returns the wizard to its first step
	EventReset Event = "RESET"

	// EventComplete enters the terminal receipt step
	EventComplete Event = "COMPLETE"
)

// String returns the string representation of the event
func (e Event) String() string {
	return string(e)
}
