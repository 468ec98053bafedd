// Package observ provides lightweight timing instrumentation for analysis
// runs.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one timed span of an analysis run.
type Phase struct {
	Name string
	Dur  time.Duration
	Note string
}

// Timer accumulates phase timings. Safe for concurrent use: per-procedure
// analyses running in parallel report into the same timer.
type Timer struct {
	mu     sync.Mutex
	phases []Phase
}

func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Start begins a phase and returns the func that ends it. The note is
// attached when the phase ends.
//
//	done := timer.Start("accessibility")
//	...
//	done(fmt.Sprintf("%d procedures", n))
func (t *Timer) Start(name string) func(note string) {
	if t == nil {
		return func(string) {}
	}
	start := time.Now()
	return func(note string) {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.phases = append(t.phases, Phase{Name: name, Dur: time.Since(start), Note: note})
	}
}

// Time runs fn as a named phase and propagates its error. A nil timer runs
// fn untimed.
func (t *Timer) Time(name string, fn func() error) error {
	done := t.Start(name)
	err := fn()
	done("")
	return err
}

// Summary returns a human-readable report of all finished phases.
func (t *Timer) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("timings:\n")
	var total time.Duration
	for _, p := range t.phases {
		total += p.Dur
		fmt.Fprintf(&sb, "  %-20s %7.2f ms", p.Name, millis(p.Dur))
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-20s %7.2f ms\n", "total", millis(total))
	return sb.String()
}

// Phases returns a copy of the finished phases in completion order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Phase, len(t.phases))
	copy(out, t.phases)
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
