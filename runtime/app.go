package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// App composes the pipeline: catalog -> matcher -> extractor -> runner. It
// owns the reload lifecycle, keeping the matcher index in step with the
// catalog snapshot.
type App struct {
	l         *slog.Logger
	catalog   Catalog
	matcher   Matcher
	extractor Extractor
	runner    *Runner
}

func NewApp(l *slog.Logger, catalog Catalog, matcher Matcher, extractor Extractor, runner *Runner) *App {
	matcher.Rebuild(catalog.Current().Templates())
	return &App{
		l:         l,
		catalog:   catalog,
		matcher:   matcher,
		extractor: extractor,
		runner:    runner,
	}
}

// Plan matches the input text to a template and extracts its dynamic values.
// Returns ErrEmptyInput, ErrNoMatch, or ErrEmptyTemplate as reportable
// reasons; none of them is a crash.
func (a *App) Plan(input string) (*ExecutionPlan, CatalogSnapshot, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, ErrEmptyInput
	}

	snapshot := a.catalog.Current()

	tmpl, score, ok := a.matcher.Match(input)
	if !ok {
		a.l.Info("no template matched", "input", input)
		return &ExecutionPlan{Status: PlanUnmatched}, snapshot, ErrNoMatch
	}
	if len(tmpl.Steps) == 0 {
		a.l.Warn("matched template has no steps", "task", tmpl.TaskID)
		return &ExecutionPlan{Status: PlanUnmatched}, snapshot, ErrEmptyTemplate
	}

	values := a.extractor.Extract(input, tmpl.TaskID)
	a.l.Info("plan created",
		"task", tmpl.TaskID,
		"score", score,
		"values", values)

	return &ExecutionPlan{Template: tmpl, Values: values, Status: PlanReady}, snapshot, nil
}

// Submit plans the input and launches the run. The run resolves selectors
// against the snapshot captured here, so a later reload cannot affect it.
func (a *App) Submit(ctx context.Context, input string) (*Run, error) {
	plan, snapshot, err := a.Plan(input)
	if err != nil {
		return nil, err
	}
	return a.runner.Start(ctx, plan, snapshot, nil)
}

// Suggest returns ranked template candidates for partial input.
func (a *App) Suggest(input string, max int) []Suggestion {
	return a.matcher.Suggest(input, max)
}

// Reload replaces the catalog snapshot and rebuilds the matcher index.
// Rejected while a run is executing against the old snapshot.
func (a *App) Reload() error {
	if a.runner.Busy() {
		return fmt.Errorf("cannot reload catalog: %w", ErrRunActive)
	}
	if err := a.catalog.Reload(); err != nil {
		return fmt.Errorf("error reloading catalog: %w", err)
	}
	templates := a.catalog.Current().Templates()
	a.matcher.Rebuild(templates)
	a.l.Info("catalog reloaded", "templates", len(templates))
	return nil
}

// Runner exposes the scheduler for status lookups.
func (a *App) Runner() *Runner {
	return a.runner
}
