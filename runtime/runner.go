package runtime

import (
	"context"
	"log/slog"
	"sync"
)

// Run is the externally visible record of one automation run: its execution,
// recorded status stream, and a cancel handle. Cancellation is observed
// between steps, never mid-step.
type Run struct {
	Execution *Execution
	Recorder  *StatusRecorder
	cancel    context.CancelFunc
}

// Cancel requests cancellation; the run stops before its next step.
func (r *Run) Cancel() {
	r.cancel()
}

// RunStatus is the JSON shape reported for a run.
type RunStatus struct {
	ID         string   `json:"id"`
	TaskID     string   `json:"task_id"`
	State      RunState `json:"state"`
	FailedStep int      `json:"failed_step,omitempty"`
	Error      string   `json:"error,omitempty"`
	Status     []string `json:"status"`
}

func (r *Run) Status() RunStatus {
	failed, runErr := r.Execution.Result()
	s := RunStatus{
		ID:         r.Execution.ID,
		TaskID:     r.Execution.Plan.Template.TaskID,
		State:      r.Execution.State(),
		FailedStep: failed,
		Status:     r.Recorder.Lines(),
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

// maxRetainedRuns bounds how many runs stay queryable by id; when a new run
// starts, finished runs beyond the cap are evicted oldest-first.
const maxRetainedRuns = 32

// Runner schedules automation runs. Exactly one run is in flight per process:
// the action executor drives a single browser session, so a new request while
// one is running is rejected with ErrRunActive rather than interleaved. Each
// run executes on its own goroutine so the HTTP entry point stays responsive.
type Runner struct {
	l        *slog.Logger
	executor *Executor

	mu     sync.Mutex
	active *Run
	runs   map[string]*Run
	order  []string
}

func NewRunner(l *slog.Logger, executor *Executor) *Runner {
	return &Runner{
		l:        l,
		executor: executor,
		runs:     make(map[string]*Run),
	}
}

// Start launches a run for the plan against the given catalog snapshot and
// returns immediately. Returns ErrRunActive while another run is executing.
func (r *Runner) Start(ctx context.Context, plan *ExecutionPlan, selectors SelectorLookup, extra StatusSink) (*Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil && r.active.Execution.State() == StateRunning {
		return nil, ErrRunActive
	}

	recorder := NewStatusRecorder()
	// An HTTP request context is cancelled as soon as the response is
	// written, so the run detaches from the caller's context and keeps its
	// values only. Run.Cancel is the one external cancellation handle.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	execution := NewExecution(runCtx, plan, selectors, MultiSink(recorder, extra))
	execution.setState(StateRunning)

	run := &Run{Execution: execution, Recorder: recorder, cancel: cancel}
	r.active = run
	r.runs[execution.ID] = run
	r.order = append(r.order, execution.ID)
	// Only the newest run can be executing, so evicted entries are always
	// finished ones.
	for len(r.order) > maxRetainedRuns {
		delete(r.runs, r.order[0])
		r.order = r.order[1:]
	}

	go func() {
		defer cancel()
		if err := r.executor.Run(execution); err != nil {
			r.l.Error("run failed", "run_id", execution.ID, "error", err.Error())
			return
		}
		r.l.Info("run finished", "run_id", execution.ID)
	}()

	return run, nil
}

// Get returns a run by id. Runs evicted by the retention cap are not found.
func (r *Runner) Get(id string) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}

// Busy reports whether a run is currently executing.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil && r.active.Execution.State() == StateRunning
}

// Active returns the run currently executing, if any.
func (r *Runner) Active() (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.Execution.State() != StateRunning {
		return nil, false
	}
	return r.active, true
}
