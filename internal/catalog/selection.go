package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ToggleSelectionMode clears the selection and flips the mode. It returns
// the new mode.
func (e *Engine) ToggleSelectionMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = make(map[string]struct{})
	e.selectionMode = !e.selectionMode
	return e.selectionMode
}

func (e *Engine) SelectionMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectionMode
}

// SetSelected adds or removes id. It is idempotent and only allowed in
// selection mode.
func (e *Engine) SetSelected(id string, selected bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.selectionMode {
		return ErrNotSelecting
	}
	if selected {
		e.selection[id] = struct{}{}
	} else {
		delete(e.selection, id)
	}
	return nil
}

// Selected returns the selected ids in collection order. Ids no longer in
// the collection come last, sorted.
func (e *Engine) Selected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedLocked()
}

func (e *Engine) selectedLocked() []string {
	ids := make([]string, 0, len(e.selection))
	for _, entry := range e.entries {
		if _, ok := e.selection[entry.ID]; ok {
			ids = append(ids, entry.ID)
		}
	}
	var orphans []string
	for id := range e.selection {
		if !slices.Contains(ids, id) {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return append(ids, orphans...)
}

// Outcome is the result of deleting one selected entry.
type Outcome struct {
	ID  string
	Err error
}

// BulkResult reports every item of a bulk delete. The batch is not atomic:
// some items may be gone while others failed.
type BulkResult struct {
	Outcomes []Outcome
}

func (b BulkResult) Deleted() []string {
	var ids []string
	for _, o := range b.Outcomes {
		if o.Err == nil {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func (b BulkResult) Failed() []Outcome {
	var failed []Outcome
	for _, o := range b.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins the per-item failures, or returns nil when every delete succeeded.
func (b BulkResult) Err() error {
	var errs []error
	for _, o := range b.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", o.ID, o.Err))
	}
	return errors.Join(errs...)
}

// RemoveSelected deletes the currently selected entries. See RemoveIDs.
func (e *Engine) RemoveSelected(ctx context.Context) BulkResult {
	return e.RemoveIDs(ctx, e.Selected())
}

// RemoveIDs deletes ids one at a time. A failure does not stop the batch and
// nothing is rolled back. Afterwards the selection is cleared and selection
// mode is turned off.
func (e *Engine) RemoveIDs(ctx context.Context, ids []string) BulkResult {
	ids = slices.Clone(ids)
	ctx = context.WithoutCancel(ctx)
	result := BulkResult{Outcomes: make([]Outcome, 0, len(ids))}
	for _, id := range ids {
		err := e.store.Delete(ctx, id)
		if err == nil {
			e.mu.Lock()
			e.removeLocked(id)
			e.mu.Unlock()
		}
		result.Outcomes = append(result.Outcomes, Outcome{ID: id, Err: err})
	}

	e.mu.Lock()
	e.selection = make(map[string]struct{})
	e.selectionMode = false
	e.mu.Unlock()

	failed := len(result.Failed())
	if failed == 0 {
		e.notifier.Notify(ctx, Notice{
			Level:   LevelSuccess,
			Title:   "Success",
			Message: fmt.Sprintf("Deleted %d keerthanas", len(ids)),
			Action:  ActionDelete,
		})
	} else {
		e.notifier.Notify(ctx, Notice{
			Level:   LevelError,
			Title:   "Error",
			Message: fmt.Sprintf("Deleted %d of %d keerthanas; %d failed", len(ids)-failed, len(ids), failed),
			Action:  ActionDelete,
		})
	}
	return result
}
