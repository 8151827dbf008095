package runtime

import (
	"context"
	"time"
)

// SelectorLookup resolves symbolic element ids to selectors. The executor
// treats a missing entry as a hard per-step failure.
type SelectorLookup interface {
	Selector(elementID string) (*ElementSelector, bool)
}

// CatalogSnapshot is an immutable view of the template catalog. A run holds
// the snapshot it was planned against; a reload never mutates a snapshot in
// place, it swaps in a new one.
type CatalogSnapshot interface {
	SelectorLookup
	Templates() []*Template
	Template(taskID string) (*Template, bool)
}

// Catalog is the template store boundary.
type Catalog interface {
	// Current returns the snapshot in effect. Read-only.
	Current() CatalogSnapshot
	// Reload replaces the snapshot wholesale. Runs already started keep the
	// snapshot they were planned against.
	Reload() error
}

// Suggestion is one ranked matcher candidate.
type Suggestion struct {
	TaskID string  `json:"task_id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
}

// Matcher selects a template for free-form input text. The index is read-only
// after a build and may be queried concurrently; Rebuild swaps it atomically.
type Matcher interface {
	Rebuild(templates []*Template)
	// Match returns the best template at or above the similarity floor, its
	// score, and whether anything matched. Ties break by template insertion
	// order.
	Match(input string) (*Template, float64, bool)
	// Suggest returns up to max candidates ranked by similarity.
	Suggest(input string, max int) []Suggestion
}

// Extractor parses task-specific parameters out of the input text. Unmatched
// fields are simply absent from the result, never an error.
type Extractor interface {
	Extract(input, taskID string) DynamicValues
}

// ActionRequest is the wire shape handed to the action executor for one step.
// Selector is set for click/type steps, nil otherwise. For wait steps Timeout
// carries the wait duration itself; for the rest it bounds the action.
type ActionRequest struct {
	Action   ActionType
	Selector *ElementSelector
	Target   string
	Value    string
	Timeout  time.Duration
}

// ActionExecutor performs the literal browser/desktop action for one step.
// The core treats it strictly as a black box: a nil error is success,
// anything else fails the step. Retries, if any, belong behind this boundary.
type ActionExecutor interface {
	Perform(ctx context.Context, req ActionRequest) error
}
