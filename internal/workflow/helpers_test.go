package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// noSleep skips device and processor delays
func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

// fixedRand always yields the given value
func fixedRand(v float64) func() float64 {
	return func() float64 { return v }
}

// fixedClock always yields the given instant
func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// recordingPresenter captures everything the workflows render. Countdown
// callbacks arrive from another goroutine, hence the lock.
type recordingPresenter struct {
	mu         sync.Mutex
	steps      []int
	alerts     []recordedAlert
	loading    []string
	countdowns []int
	sounds     int
}

type recordedAlert struct {
	severity Severity
	message  string
}

func (p *recordingPresenter) RenderStep(step int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, step)
}

func (p *recordingPresenter) RenderAlert(severity Severity, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, recordedAlert{severity: severity, message: message})
}

func (p *recordingPresenter) RenderLoading(visible bool, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if visible {
		p.loading = append(p.loading, text)
	}
}

func (p *recordingPresenter) RenderCountdown(remaining int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.countdowns = append(p.countdowns, remaining)
}

func (p *recordingPresenter) PlayAlertSound() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sounds++
}

func (p *recordingPresenter) lastAlert() recordedAlert {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.alerts) == 0 {
		return recordedAlert{}
	}
	return p.alerts[len(p.alerts)-1]
}

func (p *recordingPresenter) soundCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sounds
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
