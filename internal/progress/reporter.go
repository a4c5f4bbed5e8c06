package progress

import (
	"sync"
)

// Reporter publishes the events of a single run and keeps percent monotonic.
type Reporter struct {
	pub Publisher

	// pubMu serializes clamp and delivery so observers see percent in order
	// even when stages report from several goroutines.
	pubMu sync.Mutex

	mu   sync.Mutex
	last Event
}

// NewReporter creates a reporter for one run. A nil publisher discards events.
func NewReporter(pub Publisher) *Reporter {
	return &Reporter{pub: pub}
}

// Progress publishes a progress event. Percent is clamped to [last, 100].
func (r *Reporter) Progress(percent int, message, step string) {
	r.publish(Event{Kind: KindProgress, Percent: percent, Message: message, ActiveStep: step})
}

// Complete publishes the terminal success event at 100 percent.
func (r *Reporter) Complete(message string, details any) {
	r.publish(Event{
		Kind:       KindProgress,
		Percent:    100,
		Message:    message,
		ActiveStep: StepComplete,
		Completed:  true,
		Details:    details,
	})
}

// Fail publishes the terminal error event at the last reached percent.
func (r *Reporter) Fail(message string) {
	r.mu.Lock()
	percent := r.last.Percent
	r.mu.Unlock()

	r.publish(Event{Kind: KindError, Percent: percent, Message: message, Completed: true})
}

// Last returns the most recently published event.
func (r *Reporter) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Reporter) publish(e Event) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	if e.Percent < r.last.Percent {
		e.Percent = r.last.Percent
	}
	if e.Percent > 100 {
		e.Percent = 100
	}
	if e.ActiveStep == "" && e.Kind == KindProgress {
		e.ActiveStep = r.last.ActiveStep
	}
	r.last = e
	r.mu.Unlock()

	if r.pub != nil {
		r.pub.Publish(e)
	}
}
