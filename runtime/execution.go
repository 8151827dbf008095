package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ context.Context = &Execution{}

// Execution carries the state of one automation run: the plan, the catalog
// snapshot it was planned against, and the status sink. It implements
// context.Context by delegating to the embedded ctx so cancellation and
// per-step deadlines propagate through slog and action executor calls.
type Execution struct {
	ID        string
	Plan      *ExecutionPlan
	Selectors SelectorLookup

	sink StatusSink
	ctx  context.Context

	mu         sync.Mutex
	state      RunState
	failedStep int
	runErr     error
}

func NewExecution(ctx context.Context, plan *ExecutionPlan, selectors SelectorLookup, sink StatusSink) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}
	if sink == nil {
		sink = StatusFunc(func(string) {})
	}
	return &Execution{
		ID:        uuid.New().String(),
		Plan:      plan,
		Selectors: selectors,
		sink:      sink,
		ctx:       ctx,
		state:     StateIdle,
	}
}

func (e *Execution) Deadline() (deadline time.Time, ok bool) {
	return e.ctx.Deadline()
}

func (e *Execution) Done() <-chan struct{} {
	return e.ctx.Done()
}

func (e *Execution) Err() error {
	return e.ctx.Err()
}

func (e *Execution) Value(key any) any {
	return e.ctx.Value(key)
}

// WithTimeout derives a step-scoped context from the execution so a single
// action can be bounded without mutating the parent.
func (e *Execution) WithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.ctx, d)
}

// Emit writes one line to the status stream.
func (e *Execution) Emit(msg string) {
	e.sink.Emit(msg)
}

// State reports the run lifecycle state.
func (e *Execution) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Result reports the failed step index (0 when none) and the terminal error.
func (e *Execution) Result() (failedStep int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failedStep, e.runErr
}

func (e *Execution) setState(s RunState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Execution) fail(step int, err error) {
	e.mu.Lock()
	e.state = StateFailed
	e.failedStep = step
	e.runErr = err
	e.mu.Unlock()
}
