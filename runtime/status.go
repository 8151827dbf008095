package runtime

import "sync"

// RunState is the lifecycle of a single automation run.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
)

// StatusSink receives the textual status stream of a run: "Step i/N: ..."
// progress lines and a terminal "completed" or "error: <reason>". It is the
// single channel for progress and error visibility; any presentation layer
// can consume it.
type StatusSink interface {
	Emit(msg string)
}

// StatusFunc adapts a plain function to StatusSink.
type StatusFunc func(msg string)

func (f StatusFunc) Emit(msg string) { f(msg) }

// StatusRecorder buffers status lines so they can be polled after the fact.
// Safe for concurrent use: the run goroutine appends while HTTP handlers read.
type StatusRecorder struct {
	mu    sync.Mutex
	lines []string
}

func NewStatusRecorder() *StatusRecorder {
	return &StatusRecorder{}
}

func (r *StatusRecorder) Emit(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, msg)
}

// Lines returns a copy of the recorded status stream.
func (r *StatusRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Last returns the most recent status line, or "" when nothing was emitted.
func (r *StatusRecorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

// multiSink fans one status stream out to several sinks.
type multiSink []StatusSink

func (m multiSink) Emit(msg string) {
	for _, s := range m {
		s.Emit(msg)
	}
}

// MultiSink combines sinks; nil entries are dropped.
func MultiSink(sinks ...StatusSink) StatusSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
