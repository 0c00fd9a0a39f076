package core

import "sync"

// ProgressReporter receives completion percentages in the range 0 to 100.
type ProgressReporter interface {
	Report(percent float64)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(percent float64)

// Report implements ProgressReporter
func (f ProgressFunc) Report(percent float64) {
	f(percent)
}

// discardProgress is used when the caller did not ask for progress.
type discardProgress struct{}

func (discardProgress) Report(float64) {}

// ProgressTracker forwards values to a reporter while keeping the stream
// monotonic and clamped to [0, 100]. Finish always emits 100 exactly once.
type ProgressTracker struct {
	mu       sync.Mutex
	reporter ProgressReporter
	last     float64
	started  bool
	finished bool
}

// NewProgressTracker wraps reporter. A nil reporter discards everything.
func NewProgressTracker(reporter ProgressReporter) *ProgressTracker {
	if reporter == nil {
		reporter = discardProgress{}
	}
	return &ProgressTracker{reporter: reporter}
}

// Report emits percent unless it would move the stream backwards.
func (p *ProgressTracker) Report(percent float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if p.started && percent <= p.last {
		return
	}
	p.started = true
	p.last = percent
	p.reporter.Report(percent)
	if percent == 100 {
		p.finished = true
	}
}

// Step reports done out of total.
func (p *ProgressTracker) Step(done, total int) {
	if total <= 0 {
		return
	}
	p.Report(float64(done) * 100 / float64(total))
}

// Finish emits the terminal 100 if it was not reported already.
func (p *ProgressTracker) Finish() {
	p.Report(100)
}

// Last returns the most recently emitted value.
func (p *ProgressTracker) Last() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
