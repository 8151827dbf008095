// Package catalog is the template store: a SQLite-backed catalog of task
// templates, action steps, and element selectors. Loads produce immutable
// snapshots; a reload swaps the snapshot wholesale so in-flight runs keep the
// view they were planned against.
package catalog

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "github.com/glebarez/go-sqlite"

	"taskpilot/runtime"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		category_id   TEXT PRIMARY KEY,
		category_name TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS task_templates (
		task_id     TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		task_name   TEXT NOT NULL,
		keywords    TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS action_steps (
		task_id     TEXT NOT NULL,
		step_order  INTEGER NOT NULL,
		action_type TEXT NOT NULL,
		target      TEXT NOT NULL DEFAULT '',
		value       TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		condition   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (task_id, step_order)
	);`,
	`CREATE TABLE IF NOT EXISTS element_selectors (
		element_id     TEXT PRIMARY KEY,
		selector_kind  TEXT NOT NULL,
		selector_value TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT ''
	);`,
}

// Category names a group of related templates.
type Category struct {
	ID          string
	Name        string
	Description string
}

// Snapshot is an immutable view of the catalog. Templates preserve their
// table insertion order, which the matcher uses as the deterministic
// tie-break.
type Snapshot struct {
	categories   []Category
	templates    []*runtime.Template
	byID         map[string]*runtime.Template
	selectorList []*runtime.ElementSelector
	selectors    map[string]*runtime.ElementSelector
}

func (s *Snapshot) addSelector(sel *runtime.ElementSelector) {
	s.selectorList = append(s.selectorList, sel)
	s.selectors[sel.ElementID] = sel
}

func (s *Snapshot) Categories() []Category { return s.categories }

func (s *Snapshot) Templates() []*runtime.Template { return s.templates }

func (s *Snapshot) Template(taskID string) (*runtime.Template, bool) {
	t, ok := s.byID[taskID]
	return t, ok
}

// Steps returns the ordered step list for a task, empty when the task id is
// unknown.
func (s *Snapshot) Steps(taskID string) []runtime.Step {
	t, ok := s.byID[taskID]
	if !ok {
		return nil
	}
	return t.Steps
}

func (s *Snapshot) Selector(elementID string) (*runtime.ElementSelector, bool) {
	sel, ok := s.selectors[elementID]
	return sel, ok
}

// Store owns the backing database and the current snapshot.
type Store struct {
	l       *slog.Logger
	db      *sql.DB
	current atomic.Pointer[Snapshot]
}

var _ runtime.Catalog = &Store{}

// Open opens (creating if needed) the catalog database at path, seeds the
// built-in default catalog when the template table is empty, and loads the
// initial snapshot.
func Open(l *slog.Logger, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening catalog database: %w", err)
	}

	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("error creating catalog schema: %w", err)
		}
	}

	s := &Store{l: l, db: db}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM task_templates`).Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("error inspecting catalog: %w", err)
	}
	if count == 0 {
		l.Info("catalog empty, seeding default templates", "path", path)
		if err := s.Save(defaultCatalog()); err != nil {
			db.Close()
			return nil, fmt.Errorf("error seeding default catalog: %w", err)
		}
	}

	if err := s.Reload(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Current returns the snapshot in effect.
func (s *Store) Current() runtime.CatalogSnapshot {
	return s.current.Load()
}

// Reload reads the catalog tables into a fresh snapshot and swaps it in.
// Copy-on-reload: the previous snapshot stays valid for runs holding it.
func (s *Store) Reload() error {
	snap, err := s.load()
	if err != nil {
		return err
	}
	s.current.Store(snap)
	s.l.Info("catalog loaded",
		"categories", len(snap.categories),
		"templates", len(snap.templates),
		"selectors", len(snap.selectors))
	return nil
}

func (s *Store) load() (*Snapshot, error) {
	snap := &Snapshot{
		byID:      make(map[string]*runtime.Template),
		selectors: make(map[string]*runtime.ElementSelector),
	}

	rows, err := s.db.Query(`SELECT category_id, category_name, description FROM categories ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("error loading categories: %w", err)
	}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		snap.categories = append(snap.categories, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error loading categories: %w", err)
	}

	rows, err = s.db.Query(`SELECT task_id, category_id, task_name, keywords, description FROM task_templates ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("error loading templates: %w", err)
	}
	for rows.Next() {
		t := &runtime.Template{}
		if err := rows.Scan(&t.TaskID, &t.CategoryID, &t.Name, &t.Keywords, &t.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning template: %w", err)
		}
		snap.templates = append(snap.templates, t)
		snap.byID[t.TaskID] = t
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error loading templates: %w", err)
	}

	rows, err = s.db.Query(`SELECT task_id, step_order, action_type, target, value, description, condition FROM action_steps ORDER BY task_id, step_order`)
	if err != nil {
		return nil, fmt.Errorf("error loading steps: %w", err)
	}
	for rows.Next() {
		var taskID, actionType string
		var step runtime.Step
		if err := rows.Scan(&taskID, &step.Order, &actionType, &step.Target, &step.Value, &step.Description, &step.Condition); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning step: %w", err)
		}
		action, err := runtime.ParseActionType(actionType)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("step %d of task %s: %w", step.Order, taskID, err)
		}
		step.Action = action
		t, ok := snap.byID[taskID]
		if !ok {
			s.l.Warn("step references unknown task, skipping", "task", taskID, "order", step.Order)
			continue
		}
		t.Steps = append(t.Steps, step)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error loading steps: %w", err)
	}
	for _, t := range snap.templates {
		t.SortSteps()
	}

	rows, err = s.db.Query(`SELECT element_id, selector_kind, selector_value, description FROM element_selectors ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("error loading selectors: %w", err)
	}
	for rows.Next() {
		sel := &runtime.ElementSelector{}
		var kind string
		if err := rows.Scan(&sel.ElementID, &kind, &sel.Value, &sel.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning selector: %w", err)
		}
		parsed, err := runtime.ParseSelectorKind(kind)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("selector %s: %w", sel.ElementID, err)
		}
		sel.Kind = parsed
		snap.addSelector(sel)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error loading selectors: %w", err)
	}

	return snap, nil
}

// Save writes a snapshot back to the catalog tables, replacing their
// contents. Save(Current()) on an unmodified catalog round-trips.
func (s *Store) Save(snap *Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting catalog save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"categories", "task_templates", "action_steps", "element_selectors"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("error clearing table %s: %w", table, err)
		}
	}

	for _, c := range snap.categories {
		if _, err := tx.Exec(
			`INSERT INTO categories (category_id, category_name, description) VALUES (?, ?, ?)`,
			c.ID, c.Name, c.Description,
		); err != nil {
			return fmt.Errorf("error saving category %s: %w", c.ID, err)
		}
	}

	for _, t := range snap.templates {
		if _, err := tx.Exec(
			`INSERT INTO task_templates (task_id, category_id, task_name, keywords, description) VALUES (?, ?, ?, ?, ?)`,
			t.TaskID, t.CategoryID, t.Name, t.Keywords, t.Description,
		); err != nil {
			return fmt.Errorf("error saving template %s: %w", t.TaskID, err)
		}
		for _, step := range t.Steps {
			if _, err := tx.Exec(
				`INSERT INTO action_steps (task_id, step_order, action_type, target, value, description, condition) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				t.TaskID, step.Order, string(step.Action), step.Target, step.Value, step.Description, step.Condition,
			); err != nil {
				return fmt.Errorf("error saving step %d of %s: %w", step.Order, t.TaskID, err)
			}
		}
	}

	for _, sel := range snap.selectorList {
		if _, err := tx.Exec(
			`INSERT INTO element_selectors (element_id, selector_kind, selector_value, description) VALUES (?, ?, ?, ?)`,
			sel.ElementID, string(sel.Kind), sel.Value, sel.Description,
		); err != nil {
			return fmt.Errorf("error saving selector %s: %w", sel.ElementID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing catalog save: %w", err)
	}
	return nil
}
