// Package catalog holds a signed-in user's keerthana collection, derives
// filtered views of it and applies confirmed store results to it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"keerthanaapi/internal/keerthana"
)

var (
	ErrNoPendingAction = errors.New("no action awaiting confirmation")
	ErrCodeMismatch    = errors.New("incorrect security code")
	ErrNotSelecting    = errors.New("selection mode is off")

	// ErrConflict marks errors caused by state the caller must change first.
	ErrConflict = errors.New("conflict")
)

// Engine owns one user's collection, selection and pending action.
//
// The collection only changes in response to a confirmed store result. Store
// calls run outside the lock, so concurrent mutations land in the order their
// store calls complete.
type Engine struct {
	store    Store
	verifier Verifier
	notifier Notifier

	mu            sync.Mutex
	entries       []keerthana.Entry
	current       string
	selection     map[string]struct{}
	selectionMode bool
	pending       *pendingAction
}

type Option func(*Engine)

func WithVerifier(v Verifier) Option {
	return func(e *Engine) {
		if v != nil {
			e.verifier = v
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		verifier:  NoGate{},
		notifier:  nopNotifier{},
		entries:   []keerthana.Entry{},
		selection: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the collection with the store's current contents.
func (e *Engine) Load(ctx context.Context) error {
	entries, err := e.store.List(ctx)
	if err != nil {
		e.notifyFailure(ctx, "", "Failed to load keerthanas", err)
		return fmt.Errorf("load keerthanas: %w", err)
	}
	if entries == nil {
		entries = []keerthana.Entry{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = entries
	if e.indexLocked(e.current) < 0 {
		e.current = ""
	}
	for id := range e.selection {
		if e.indexLocked(id) < 0 {
			delete(e.selection, id)
		}
	}
	return nil
}

// Entries returns a copy of the collection, newest first.
func (e *Engine) Entries() []keerthana.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.entries)
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

func (e *Engine) Entry(id string) (keerthana.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return keerthana.Entry{}, keerthana.ErrNotFound
	}
	return e.entries[i], nil
}

// View derives the filtered, optionally grouped view over a snapshot.
func (e *Engine) View(c keerthana.Classification, s keerthana.Search) keerthana.View {
	return keerthana.DeriveViewWithSearch(e.Entries(), c, s)
}

func (e *Engine) Facets(c keerthana.Classification) []keerthana.Facet {
	return keerthana.Facets(e.Entries(), c)
}

// Add inserts f and prepends the confirmed row.
func (e *Engine) Add(ctx context.Context, f keerthana.Fields) (keerthana.Entry, error) {
	if err := f.Validate(); err != nil {
		e.notifyFailure(ctx, ActionAdd, "Failed to add keerthana", err)
		return keerthana.Entry{}, err
	}

	// Mutations run to completion even if the caller goes away.
	created, err := e.store.Insert(context.WithoutCancel(ctx), f)
	if err != nil {
		e.notifyFailure(ctx, ActionAdd, "Failed to add keerthana", err)
		return keerthana.Entry{}, fmt.Errorf("add keerthana: %w", err)
	}

	e.mu.Lock()
	e.entries = slices.Insert(e.entries, 0, created)
	e.mu.Unlock()

	e.notifier.Notify(ctx, Notice{
		Level:   LevelSuccess,
		Title:   "Keerthana Added",
		Message: fmt.Sprintf("%s has been added to your collection.", created.Name),
		Action:  ActionAdd,
	})
	return created, nil
}

// Update replaces the entry with the store's confirmed row. Fields the store
// no longer returns are dropped rather than merged.
func (e *Engine) Update(ctx context.Context, id string, f keerthana.Fields) (keerthana.Entry, error) {
	if err := f.Validate(); err != nil {
		e.notifyFailure(ctx, ActionEdit, "Failed to update keerthana", err)
		return keerthana.Entry{}, err
	}

	updated, err := e.store.Update(context.WithoutCancel(ctx), id, f)
	if err != nil {
		e.notifyFailure(ctx, ActionEdit, "Failed to update keerthana", err)
		return keerthana.Entry{}, fmt.Errorf("update keerthana %s: %w", id, err)
	}

	e.mu.Lock()
	if i := e.indexLocked(updated.ID); i >= 0 {
		e.entries[i] = updated
	}
	e.mu.Unlock()

	e.notifier.Notify(ctx, Notice{
		Level:   LevelSuccess,
		Title:   "Success",
		Message: "Keerthana updated successfully",
		Action:  ActionEdit,
	})
	return updated, nil
}

// Remove deletes id from the store and then from the collection. The store
// is called even when id is not in the collection.
func (e *Engine) Remove(ctx context.Context, id string) error {
	if err := e.store.Delete(context.WithoutCancel(ctx), id); err != nil {
		e.notifyFailure(ctx, ActionDelete, "Failed to delete keerthana", err)
		return fmt.Errorf("delete keerthana %s: %w", id, err)
	}

	e.mu.Lock()
	e.removeLocked(id)
	e.mu.Unlock()

	e.notifier.Notify(ctx, Notice{
		Level:   LevelSuccess,
		Title:   "Success",
		Message: "Keerthana deleted successfully",
		Action:  ActionDelete,
	})
	return nil
}

// Select marks id as the currently viewed entry.
func (e *Engine) Select(id string) (keerthana.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return keerthana.Entry{}, keerthana.ErrNotFound
	}
	e.current = id
	return e.entries[i], nil
}

func (e *Engine) Current() (keerthana.Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(e.current)
	if i < 0 {
		return keerthana.Entry{}, false
	}
	return e.entries[i], true
}

func (e *Engine) ClearCurrent() {
	e.mu.Lock()
	e.current = ""
	e.mu.Unlock()
}

// Close drops the pending action and selection. The engine is not used
// after sign-out.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
	e.selection = make(map[string]struct{})
	e.selectionMode = false
	e.current = ""
}

func (e *Engine) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(e.entries, func(x keerthana.Entry) bool { return x.ID == id })
}

func (e *Engine) removeLocked(id string) {
	e.entries = slices.DeleteFunc(e.entries, func(x keerthana.Entry) bool { return x.ID == id })
	if e.current == id {
		e.current = ""
	}
	delete(e.selection, id)
}

func (e *Engine) notifyFailure(ctx context.Context, action ActionKind, what string, err error) {
	e.notifier.Notify(ctx, Notice{
		Level:   LevelError,
		Title:   "Error",
		Message: fmt.Sprintf("%s: %v", what, err),
		Action:  action,
	})
}
