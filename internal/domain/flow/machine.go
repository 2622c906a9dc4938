package flow

import (
	"context"
	"fmt"
)

// GuardFunc evaluates whether a transition may happen. A nil return allows
// the transition; a non-nil error blocks it and carries the reason.
type GuardFunc func(ctx context.Context) error

// Machine tracks the current wizard step and validates transitions
type Machine interface {
	// Step returns the current step
	Step() Step

	// CanFire returns true if the event has at least one configured transition
	CanFire(event Event) bool

	// Fire attempts the event, moving to the target step if a guard allows it
	Fire(ctx context.Context, event Event) error
}

// Builder builds a configured step machine
type Builder interface {
	// Configure returns the transition configuration for the given step
	Configure(step Step) StepConfiguration

	// Build creates a machine starting at the given step
	Build(initial Step) Machine
}

// StepConfiguration configures outgoing transitions for one step
type StepConfiguration interface {
	// Permit allows an event to move to the target step unconditionally
	Permit(event Event, to Step) StepConfiguration

	// PermitIf allows an event to move to the target step when the guard passes
	PermitIf(event Event, to Step, guard GuardFunc) StepConfiguration
}

type transition struct {
	to    Step
	guard GuardFunc
}

type stepConfig struct {
	from        Step
	transitions map[Event][]transition
}

type builder struct {
	lastStep       Step
	configurations map[Step]*stepConfig
}

type machine struct {
	current        Step
	configurations map[Step]*stepConfig
}

// NewBuilder creates a builder for a wizard with steps 1..lastStep
func NewBuilder(lastStep Step) Builder {
	if lastStep < 1 {
		panic(fmt.Sprintf("invalid last step: %d", lastStep))
	}
	return &builder{
		lastStep:       lastStep,
		configurations: make(map[Step]*stepConfig),
	}
}

func (b *builder) checkStep(step Step) {
	if step < 1 || step > b.lastStep {
		panic(fmt.Sprintf("step %d outside wizard range 1..%d", step, b.lastStep))
	}
}

// Configure returns the transition configuration for the given step
func (b *builder) Configure(step Step) StepConfiguration {
	b.checkStep(step)

	config, exists := b.configurations[step]
	if !exists {
		config = &stepConfig{
			from:        step,
			transitions: make(map[Event][]transition),
		}
		b.configurations[step] = config
	}
	return &boundConfig{builder: b, config: config}
}

// Build creates a machine starting at the given step
func (b *builder) Build(initial Step) Machine {
	b.checkStep(initial)

	// Copy configurations so later builder mutations cannot leak in
	configsCopy := make(map[Step]*stepConfig)
	for step, config := range b.configurations {
		transitionsCopy := make(map[Event][]transition)
		for event, transitions := range config.transitions {
			transitionsCopy[event] = append([]transition{}, transitions...)
		}
		configsCopy[step] = &stepConfig{
			from:        step,
			transitions: transitionsCopy,
		}
	}

	return &machine{
		current:        initial,
		configurations: configsCopy,
	}
}

type boundConfig struct {
	builder *builder
	config  *stepConfig
}

// Permit allows an event to move to the target step unconditionally
func (c *boundConfig) Permit(event Event, to Step) StepConfiguration {
	return c.PermitIf(event, to, nil)
}

// PermitIf allows an event to move to the target step when the guard passes
func (c *boundConfig) PermitIf(event Event, to Step, guard GuardFunc) StepConfiguration {
	c.builder.checkStep(to)

	c.config.transitions[event] = append(c.config.transitions[event], transition{
		to:    to,
		guard: guard,
	})
	return c
}

// Step returns the current step
func (m *machine) Step() Step {
	return m.current
}

// CanFire returns true if the event has at least one configured transition
func (m *machine) CanFire(event Event) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	transitions, exists := config.transitions[event]
	return exists && len(transitions) > 0
}

// Fire attempts the event, moving to the target step if a guard allows it
func (m *machine) Fire(ctx context.Context, event Event) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot fire %s from step %d (no configuration)",
			ErrInvalidTransition, event, m.current)
	}

	transitions, exists := config.transitions[event]
	if !exists || len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from step %d",
			ErrInvalidTransition, event, m.current)
	}

	// Try transitions in order; the first passing guard wins
	var guardErr error
	for _, t := range transitions {
		if t.guard == nil {
			m.current = t.to
			return nil
		}
		if err := t.guard(ctx); err != nil {
			guardErr = err
			continue
		}
		m.current = t.to
		return nil
	}

	return &GuardError{Reason: guardErr}
}
