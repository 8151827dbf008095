package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeActions records every request and optionally fails the nth call.
type fakeActions struct {
	mu     sync.Mutex
	calls  []ActionRequest
	failAt int
	err    error

	// onCall, when set, runs after recording each call.
	onCall func(n int)
}

func (f *fakeActions) Perform(ctx context.Context, req ActionRequest) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(n)
	}
	if f.failAt != 0 && n == f.failAt {
		if f.err != nil {
			return f.err
		}
		return errors.New("element not found")
	}
	return nil
}

func (f *fakeActions) requests() []ActionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ActionRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

type selectorTable map[string]*ElementSelector

func (s selectorTable) Selector(elementID string) (*ElementSelector, bool) {
	sel, ok := s[elementID]
	return sel, ok
}

func testSelectors() selectorTable {
	return selectorTable{
		"compose_button": {ElementID: "compose_button", Kind: SelectorXPath, Value: `//div[@role="button"]`},
		"search_box":     {ElementID: "search_box", Kind: SelectorName, Value: "q"},
		"message_body":   {ElementID: "message_body", Kind: SelectorXPath, Value: `//div[@aria-label="Message Body"]`},
	}
}

func testExecutor(actions ActionExecutor) *Executor {
	return NewExecutor(testLogger(), actions, ExecutorConfig{
		StepPause:     0,
		WaitFallback:  5 * time.Second,
		ActionTimeout: 10 * time.Second,
	})
}

func newTestExecution(tmpl *Template, values DynamicValues) *Execution {
	plan := &ExecutionPlan{Template: tmpl, Values: values, Status: PlanReady}
	return NewExecution(context.Background(), plan, testSelectors(), nil)
}

func threeStepTemplate() *Template {
	return &Template{
		TaskID: "web_search",
		Name:   "Search Web",
		Steps: []Step{
			{Order: 1, Action: ActionNavigate, Target: "url", Value: "https://google.com", Description: "Navigate to Google"},
			{Order: 2, Action: ActionClick, Target: "search_box", Description: "Focus search box"},
			{Order: 3, Action: ActionTypeText, Target: "search_box", Value: "{search_query}", Description: "Enter search query"},
		},
	}
}

func TestExecutorRun_Completes(t *testing.T) {
	actions := &fakeActions{}
	execution := newTestExecution(threeStepTemplate(), DynamicValues{"search_query": "python tutorials"})
	recorder := NewStatusRecorder()
	execution.sink = recorder

	if err := testExecutor(actions).Run(execution); err != nil {
		t.Fatalf("Run() = %v, expected nil", err)
	}

	if got := execution.State(); got != StateCompleted {
		t.Errorf("State() = %q, expected %q", got, StateCompleted)
	}
	if got := len(actions.requests()); got != 3 {
		t.Errorf("action calls = %d, expected 3", got)
	}

	lines := recorder.Lines()
	if len(lines) == 0 || lines[0] != "Step 1/3: Navigate to Google" {
		t.Errorf("first status line = %v, expected Step 1/3 announcement", lines)
	}
	if recorder.Last() != "completed" {
		t.Errorf("last status line = %q, expected \"completed\"", recorder.Last())
	}
}

func TestExecutorRun_AbortsOnFailedStep(t *testing.T) {
	actions := &fakeActions{failAt: 2}
	execution := newTestExecution(threeStepTemplate(), DynamicValues{"search_query": "go"})
	recorder := NewStatusRecorder()
	execution.sink = recorder

	err := testExecutor(actions).Run(execution)
	if err == nil {
		t.Fatal("Run() = nil, expected step failure")
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Run() error %T, expected *StepError", err)
	}
	if stepErr.Step != 2 {
		t.Errorf("failed step = %d, expected 2", stepErr.Step)
	}
	if got := len(actions.requests()); got != 2 {
		t.Errorf("action calls = %d, expected 2 (step 3 must never run)", got)
	}
	if got := execution.State(); got != StateFailed {
		t.Errorf("State() = %q, expected %q", got, StateFailed)
	}
	if !strings.HasPrefix(recorder.Last(), "error: step 2/3 failed") {
		t.Errorf("last status line = %q, expected step 2 failure", recorder.Last())
	}
}

func TestExecutorRun_SubstitutesPlaceholders(t *testing.T) {
	actions := &fakeActions{}
	execution := newTestExecution(threeStepTemplate(), DynamicValues{"search_query": "machine learning"})

	if err := testExecutor(actions).Run(execution); err != nil {
		t.Fatalf("Run() = %v, expected nil", err)
	}

	reqs := actions.requests()
	if reqs[2].Value != "machine learning" {
		t.Errorf("type step value = %q, expected %q", reqs[2].Value, "machine learning")
	}
}

func TestExecutorRun_UnresolvedPlaceholderStaysLiteral(t *testing.T) {
	tmpl := &Template{
		TaskID: "web_search",
		Steps: []Step{
			{Order: 1, Action: ActionTypeText, Target: "search_box", Value: "{search_query}", Description: "Enter search query"},
		},
	}
	actions := &fakeActions{}
	execution := newTestExecution(tmpl, DynamicValues{})
	recorder := NewStatusRecorder()
	execution.sink = recorder

	if err := testExecutor(actions).Run(execution); err != nil {
		t.Fatalf("Run() = %v, expected nil", err)
	}

	if got := actions.requests()[0].Value; got != "{search_query}" {
		t.Errorf("unresolved value = %q, expected literal placeholder", got)
	}

	found := false
	for _, line := range recorder.Lines() {
		if strings.Contains(line, "unresolved placeholder {search_query}") {
			found = true
		}
	}
	if !found {
		t.Errorf("status stream %v missing unresolved-placeholder warning", recorder.Lines())
	}
}

func TestExecutorRun_TypeStepDefaultValue(t *testing.T) {
	tmpl := &Template{
		TaskID: "email_compose",
		Steps: []Step{
			{Order: 1, Action: ActionTypeText, Target: "message_body", Description: "Enter message body"},
		},
	}
	actions := &fakeActions{}
	execution := newTestExecution(tmpl, DynamicValues{})

	if err := testExecutor(actions).Run(execution); err != nil {
		t.Fatalf("Run() = %v, expected nil", err)
	}

	if got := actions.requests()[0].Value; got != defaultTypeValues["message_body"] {
		t.Errorf("empty type value = %q, expected default greeting", got)
	}
}

func TestExecutorRun_WaitDuration(t *testing.T) {
	testCases := []struct {
		value    string
		expected time.Duration
	}{
		{"2", 2 * time.Second},
		{"", 5 * time.Second},
		{"soon", 5 * time.Second},
		{"-1", 5 * time.Second},
	}

	for _, tc := range testCases {
		tmpl := &Template{
			TaskID: "web_navigate",
			Steps: []Step{
				{Order: 1, Action: ActionWait, Target: "page_load", Value: tc.value, Description: "Wait for page"},
			},
		}
		actions := &fakeActions{}
		execution := newTestExecution(tmpl, DynamicValues{})

		if err := testExecutor(actions).Run(execution); err != nil {
			t.Fatalf("Run() with wait value %q = %v, expected nil", tc.value, err)
		}
		if got := actions.requests()[0].Timeout; got != tc.expected {
			t.Errorf("wait value %q -> timeout %v, expected %v", tc.value, got, tc.expected)
		}
	}
}

func TestExecutorRun_UnresolvedSelectorFailsStep(t *testing.T) {
	tmpl := &Template{
		TaskID: "email_compose",
		Steps: []Step{
			{Order: 1, Action: ActionClick, Target: "no_such_element", Description: "Click mystery element"},
		},
	}
	actions := &fakeActions{}
	execution := newTestExecution(tmpl, DynamicValues{})

	err := testExecutor(actions).Run(execution)
	if !errors.Is(err, ErrUnresolvedSelector) {
		t.Fatalf("Run() = %v, expected ErrUnresolvedSelector", err)
	}
	if got := len(actions.requests()); got != 0 {
		t.Errorf("action calls = %d, expected 0", got)
	}
}

func TestExecutorRun_NavigateRequiresURL(t *testing.T) {
	tmpl := &Template{
		TaskID: "web_navigate",
		Steps: []Step{
			{Order: 1, Action: ActionNavigate, Description: "Navigate nowhere"},
		},
	}
	execution := newTestExecution(tmpl, DynamicValues{})

	err := testExecutor(&fakeActions{}).Run(execution)
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != 1 {
		t.Fatalf("Run() = %v, expected failure at step 1", err)
	}
}

func TestExecutorRun_NavigatePrefixesScheme(t *testing.T) {
	tmpl := &Template{
		TaskID: "web_navigate",
		Steps: []Step{
			{Order: 1, Action: ActionNavigate, Target: "url", Value: "{target_url}", Description: "Navigate to target"},
		},
	}
	actions := &fakeActions{}
	execution := newTestExecution(tmpl, DynamicValues{"target_url": "github.com"})

	if err := testExecutor(actions).Run(execution); err != nil {
		t.Fatalf("Run() = %v, expected nil", err)
	}
	if got := actions.requests()[0].Value; got != "https://github.com" {
		t.Errorf("navigate URL = %q, expected scheme prefix", got)
	}
}

func TestExecutorRun_ConditionSkipsStep(t *testing.T) {
	tmpl := &Template{
		TaskID: "email_compose",
		Steps: []Step{
			{Order: 1, Action: ActionClick, Target: "compose_button", Description: "Click compose"},
			{Order: 2, Action: ActionTypeText, Target: "search_box", Value: "{email_subject}", Description: "Enter subject", Condition: `email_subject != nil`},
			{Order: 3, Action: ActionTypeText, Target: "message_body", Description: "Enter body"},
		},
	}
	actions := &fakeActions{}
	execution := newTestExecution(tmpl, DynamicValues{})
	recorder := NewStatusRecorder()
	execution.sink = recorder

	if err := testExecutor(actions).Run(execution); err != nil {
		t.Fatalf("Run() = %v, expected nil", err)
	}

	reqs := actions.requests()
	if len(reqs) != 2 {
		t.Fatalf("action calls = %d, expected 2 (conditional step skipped)", len(reqs))
	}
	if reqs[1].Target != "message_body" {
		t.Errorf("second call target = %q, expected message_body", reqs[1].Target)
	}

	skipped := false
	for _, line := range recorder.Lines() {
		if strings.Contains(line, "skipped (condition not met)") {
			skipped = true
		}
	}
	if !skipped {
		t.Errorf("status stream %v missing skip notice", recorder.Lines())
	}
}

func TestExecutorRun_ConditionMetRunsStep(t *testing.T) {
	tmpl := &Template{
		TaskID: "email_compose",
		Steps: []Step{
			{Order: 1, Action: ActionTypeText, Target: "search_box", Value: "{email_subject}", Description: "Enter subject", Condition: `email_subject != nil`},
		},
	}
	actions := &fakeActions{}
	execution := newTestExecution(tmpl, DynamicValues{"email_subject": "the budget"})

	if err := testExecutor(actions).Run(execution); err != nil {
		t.Fatalf("Run() = %v, expected nil", err)
	}
	if got := len(actions.requests()); got != 1 {
		t.Errorf("action calls = %d, expected 1", got)
	}
}

func TestExecutorRun_EmptyTemplateRejected(t *testing.T) {
	execution := newTestExecution(&Template{TaskID: "file_create"}, DynamicValues{})

	err := testExecutor(&fakeActions{}).Run(execution)
	if !errors.Is(err, ErrEmptyTemplate) {
		t.Fatalf("Run() = %v, expected ErrEmptyTemplate", err)
	}
}

func TestExecutorRun_CancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	actions := &fakeActions{}
	actions.onCall = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	plan := &ExecutionPlan{Template: threeStepTemplate(), Values: DynamicValues{"search_query": "go"}, Status: PlanReady}
	execution := NewExecution(ctx, plan, testSelectors(), nil)

	err := testExecutor(actions).Run(execution)
	if err == nil {
		t.Fatal("Run() = nil, expected cancellation error")
	}
	if got := len(actions.requests()); got != 1 {
		t.Errorf("action calls = %d, expected 1 (cancellation observed between steps)", got)
	}
	if got := execution.State(); got != StateFailed {
		t.Errorf("State() = %q, expected %q", got, StateFailed)
	}
}

func TestResolveStep_Idempotent(t *testing.T) {
	executor := testExecutor(&fakeActions{})
	execution := newTestExecution(threeStepTemplate(), DynamicValues{"search_query": "go generics"})
	step := execution.Plan.Template.Steps[2]

	first, err1 := executor.resolveStep(execution, step)
	second, err2 := executor.resolveStep(execution, step)
	if err1 != nil || err2 != nil {
		t.Fatalf("resolveStep errors: %v, %v", err1, err2)
	}
	if fmt.Sprintf("%+v", first) != fmt.Sprintf("%+v", second) {
		t.Errorf("resolveStep not idempotent: %+v vs %+v", first, second)
	}
}
