package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
)

// defaultTypeValues supplies canned text for type steps whose value resolved
// to empty, keyed by target element. Keeps email bodies non-empty when the
// input carried no body text.
var defaultTypeValues = map[string]string{
	"message_body": "Hello,\n\nI hope this message finds you well.\n\nBest regards",
	"search_box":   "latest news",
}

// Executor walks a plan's ordered step list, resolves each step's target and
// value, and dispatches to the ActionExecutor. The first failed step aborts
// the run; there is no retry here, retries belong to the action executor.
type Executor struct {
	l       *slog.Logger
	actions ActionExecutor

	// stepPause is a pacing pause between steps to let external UI state
	// settle. Not a correctness requirement.
	stepPause time.Duration
	// waitFallback is the wait-step duration used when the step value is
	// absent or non-numeric.
	waitFallback time.Duration
	// actionTimeout bounds a single navigate/click/type action.
	actionTimeout time.Duration
}

func NewExecutor(l *slog.Logger, actions ActionExecutor, cfg ExecutorConfig) *Executor {
	return &Executor{
		l:             l,
		actions:       actions,
		stepPause:     cfg.StepPause,
		waitFallback:  cfg.WaitFallback,
		actionTimeout: cfg.ActionTimeout,
	}
}

// Run executes every step of the plan strictly in order. Cancellation is
// observed between steps only; an in-flight action completes or times out on
// its own. Run never mutates the plan's template or dynamic values.
func (e *Executor) Run(execution *Execution) error {
	tmpl := execution.Plan.Template
	if err := tmpl.Validate(); err != nil {
		execution.fail(0, err)
		execution.Emit("error: " + err.Error())
		return err
	}

	execution.setState(StateRunning)
	total := len(tmpl.Steps)

	for i, step := range tmpl.Steps {
		n := i + 1

		if i > 0 && e.stepPause > 0 {
			select {
			case <-execution.Done():
			case <-time.After(e.stepPause):
			}
		}

		if err := execution.Err(); err != nil {
			err = fmt.Errorf("run cancelled before step %d/%d: %w", n, total, err)
			execution.fail(n, err)
			execution.Emit("error: " + err.Error())
			return err
		}

		execution.Emit(fmt.Sprintf("Step %d/%d: %s", n, total, step.Description))
		e.l.InfoContext(execution, "executing step",
			"task", tmpl.TaskID,
			"step", n,
			"total", total,
			"action", string(step.Action))

		if step.Condition != "" {
			ok, err := evalCondition(step.Condition, execution.Plan.Values)
			if err != nil {
				return e.failStep(execution, n, total, err)
			}
			if !ok {
				execution.Emit(fmt.Sprintf("Step %d/%d: skipped (condition not met)", n, total))
				e.l.InfoContext(execution, "step skipped", "step", n, "condition", step.Condition)
				continue
			}
		}

		req, err := e.resolveStep(execution, step)
		if err != nil {
			return e.failStep(execution, n, total, err)
		}

		// Wait steps consume req.Timeout themselves, so only the other
		// actions get a deadline here.
		var stepCtx context.Context = execution
		cancel := func() {}
		if step.Action != ActionWait {
			stepCtx, cancel = execution.WithTimeout(req.Timeout)
		}
		err = e.actions.Perform(stepCtx, req)
		cancel()
		if err != nil {
			return e.failStep(execution, n, total, err)
		}

		execution.Emit(fmt.Sprintf("Step %d/%d: done", n, total))
	}

	execution.setState(StateCompleted)
	execution.Emit("completed")
	e.l.InfoContext(execution, "run completed", "task", tmpl.TaskID, "steps", total)
	return nil
}

func (e *Executor) failStep(execution *Execution, step, total int, cause error) error {
	err := newStepError(step, total, cause)
	execution.fail(step, err)
	execution.Emit("error: " + err.Error())
	e.l.ErrorContext(execution, "step failed",
		"task", execution.Plan.Template.TaskID,
		"step", step,
		"error", cause.Error())
	return err
}

// resolveStep turns a raw step into an ActionRequest: placeholder
// substitution, type-step default values, navigate URL resolution, selector
// lookup, and wait duration parsing. Resolution is pure with respect to the
// plan, so resolving the same step twice yields the same request.
func (e *Executor) resolveStep(execution *Execution, step Step) (ActionRequest, error) {
	value, missing := Substitute(step.Value, execution.Plan.Values)
	for _, key := range missing {
		execution.Emit(fmt.Sprintf("warning: unresolved placeholder {%s} left as literal text", key))
		e.l.WarnContext(execution, "unresolved placeholder", "key", key)
	}

	req := ActionRequest{
		Action:  step.Action,
		Target:  step.Target,
		Value:   value,
		Timeout: e.actionTimeout,
	}

	switch step.Action {
	case ActionNavigate:
		url := value
		if url == "" {
			url = step.Target
		}
		if url == "" {
			return ActionRequest{}, fmt.Errorf("navigate step has no URL")
		}
		req.Value = ensureScheme(url)

	case ActionClick, ActionTypeText:
		sel, ok := execution.Selectors.Selector(step.Target)
		if !ok {
			return ActionRequest{}, fmt.Errorf("%w: %s", ErrUnresolvedSelector, step.Target)
		}
		req.Selector = sel
		if step.Action == ActionTypeText && req.Value == "" {
			req.Value = defaultTypeValues[step.Target]
		}

	case ActionWait:
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || seconds <= 0 {
			req.Timeout = e.waitFallback
		} else {
			req.Timeout = time.Duration(seconds) * time.Second
		}

	default:
		return ActionRequest{}, fmt.Errorf("unknown action type: %q", step.Action)
	}

	return req, nil
}

// evalCondition evaluates a step condition against the dynamic values.
// Missing keys resolve to nil rather than failing compilation, so conditions
// like `recipient_email != nil` read naturally.
func evalCondition(condition string, values DynamicValues) (bool, error) {
	env := make(map[string]any, len(values))
	for k, v := range values {
		env[k] = v
	}

	program, err := expr.Compile(condition, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("error compiling condition %q: %w", condition, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("error evaluating condition %q: %w", condition, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q evaluated to %T, expected boolean", condition, result)
	}
	return b, nil
}

func ensureScheme(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://" + url
}
