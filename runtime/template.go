package runtime

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ActionType is the closed set of primitive automation actions a step can
// request. Unknown action strings are rejected at catalog load time, not
// silently skipped at execution time.
type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionClick    ActionType = "click"
	ActionTypeText ActionType = "type"
	ActionWait     ActionType = "wait"
)

func ParseActionType(s string) (ActionType, error) {
	switch ActionType(strings.ToLower(strings.TrimSpace(s))) {
	case ActionNavigate:
		return ActionNavigate, nil
	case ActionClick:
		return ActionClick, nil
	case ActionTypeText:
		return ActionTypeText, nil
	case ActionWait:
		return ActionWait, nil
	default:
		return "", fmt.Errorf("unknown action type: %q", s)
	}
}

// SelectorKind describes how an ElementSelector locates a UI element.
type SelectorKind string

const (
	SelectorXPath SelectorKind = "xpath"
	SelectorID    SelectorKind = "id"
	SelectorName  SelectorKind = "name"
	SelectorClass SelectorKind = "class"
	SelectorCSS   SelectorKind = "css"
)

func ParseSelectorKind(s string) (SelectorKind, error) {
	switch SelectorKind(strings.ToLower(strings.TrimSpace(s))) {
	case SelectorXPath:
		return SelectorXPath, nil
	case SelectorID:
		return SelectorID, nil
	case SelectorName:
		return SelectorName, nil
	case SelectorClass:
		return SelectorClass, nil
	case SelectorCSS:
		return SelectorCSS, nil
	default:
		return "", fmt.Errorf("unknown selector kind: %q", s)
	}
}

// ElementSelector describes how to locate one UI element. Selectors live in
// their own lookup table, independent of any template, and are resolved by
// element id at execution time.
type ElementSelector struct {
	ElementID   string
	Kind        SelectorKind
	Value       string
	Description string
}

// Step is one primitive automation instruction within a template. Target is
// either a raw value (a URL for navigate steps) or a symbolic element id
// resolved through the selector table. Value may contain {key} placeholders
// filled from the run's dynamic values. Condition is an optional expr-lang
// expression over the dynamic values; when it evaluates to false the step is
// skipped.
type Step struct {
	Order       int
	Action      ActionType
	Target      string
	Value       string
	Description string
	Condition   string
}

// Template is a named, ordered recipe of automation steps matched to a task
// description. Templates are immutable after load; a catalog reload produces
// a whole new set.
type Template struct {
	TaskID      string
	CategoryID  string
	Name        string
	Keywords    string
	Description string
	Steps       []Step
}

// Validate checks the structural invariants: at least one step, and step
// orders unique within the template.
func (t *Template) Validate() error {
	if t.TaskID == "" {
		return fmt.Errorf("template has no task id")
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("template %s: %w", t.TaskID, ErrEmptyTemplate)
	}
	seen := make(map[int]bool, len(t.Steps))
	for _, s := range t.Steps {
		if seen[s.Order] {
			return fmt.Errorf("template %s: duplicate step order %d", t.TaskID, s.Order)
		}
		seen[s.Order] = true
	}
	return nil
}

// SortSteps orders the step list by ascending Order. Execution relies on the
// slice order, so this is applied once at load time.
func (t *Template) SortSteps() {
	sort.SliceStable(t.Steps, func(i, j int) bool {
		return t.Steps[i].Order < t.Steps[j].Order
	})
}

// Document returns the text the matcher indexes for this template.
func (t *Template) Document() string {
	return t.Name + " " + t.Keywords + " " + t.Description
}

// DynamicValues maps placeholder keys (recipient_email, search_query, ...) to
// strings extracted from the user's input. Produced fresh per request and
// consumed read-only by the executor.
type DynamicValues map[string]string

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Substitute replaces every {key} placeholder present in values and returns
// the resolved string plus the keys that had no value. Unresolved
// placeholders stay in the text as literals; the executor reports them as
// warnings on the status stream.
func Substitute(s string, values DynamicValues) (string, []string) {
	var missing []string
	resolved := placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := values[key]; ok {
			return v
		}
		missing = append(missing, key)
		return m
	})
	return resolved, missing
}

// PlanStatus marks whether a plan is runnable.
type PlanStatus string

const (
	PlanReady     PlanStatus = "ready"
	PlanUnmatched PlanStatus = "unmatched"
)

// ExecutionPlan pairs a selected template with the dynamic values extracted
// for one request. Transient: created per request, discarded after the run.
type ExecutionPlan struct {
	Template *Template
	Values   DynamicValues
	Status   PlanStatus
}
