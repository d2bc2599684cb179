package catalog

import (
	"context"
	"fmt"

	"keerthanaapi/internal/keerthana"
)

type ActionKind string

const (
	ActionAdd    ActionKind = "add"
	ActionEdit   ActionKind = "edit"
	ActionDelete ActionKind = "delete"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionAdd, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// Result is what a gated action produced.
type Result struct {
	Kind  ActionKind
	Entry *keerthana.Entry
	Bulk  *BulkResult
}

type Action func(ctx context.Context) (Result, error)

type pendingAction struct {
	kind ActionKind
	run  Action
}

// Gate defers fn until Confirm is called with a valid code. A pending action
// already waiting is replaced.
func (e *Engine) Gate(ctx context.Context, kind ActionKind, fn Action) {
	e.mu.Lock()
	e.pending = &pendingAction{kind: kind, run: fn}
	e.mu.Unlock()

	e.notifier.Notify(ctx, Notice{
		Level:   LevelInfo,
		Title:   "Security Check",
		Message: fmt.Sprintf("Enter the security code to %s.", kind),
		Action:  kind,
	})
}

// Perform runs fn at once when no code is required, otherwise gates it.
// deferred reports which happened.
func (e *Engine) Perform(ctx context.Context, kind ActionKind, fn Action) (res Result, deferred bool, err error) {
	if !e.verifier.Required() {
		res, err = fn(ctx)
		res.Kind = kind
		return res, false, err
	}
	e.Gate(ctx, kind, fn)
	return Result{Kind: kind}, true, nil
}

// Confirm runs the pending action if code opens the gate. On a mismatch the
// action stays pending so it can be retried.
func (e *Engine) Confirm(ctx context.Context, code string) (Result, error) {
	kind, ok := e.Pending()
	if !ok {
		return Result{}, ErrNoPendingAction
	}

	if !e.verifier.Verify(code) {
		e.notifier.Notify(ctx, Notice{
			Level:   LevelError,
			Title:   "Access Denied",
			Message: fmt.Sprintf("Incorrect security code, %s not performed. Please try again.", kind),
			Action:  kind,
		})
		return Result{}, ErrCodeMismatch
	}

	e.mu.Lock()
	p := e.pending
	e.pending = nil
	e.mu.Unlock()
	if p == nil {
		return Result{}, ErrNoPendingAction
	}

	res, err := p.run(ctx)
	res.Kind = p.kind
	return res, err
}

// Cancel discards the pending action without running it.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	had := e.pending != nil
	e.pending = nil
	return had
}

func (e *Engine) Pending() (ActionKind, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return "", false
	}
	return e.pending.kind, true
}

// GateRequired reports whether mutations wait for a confirmation code.
func (e *Engine) GateRequired() bool {
	return e.verifier.Required()
}

// AddAction wraps Add for Gate or Perform.
func (e *Engine) AddAction(f keerthana.Fields) Action {
	f = f.Clone()
	return func(ctx context.Context) (Result, error) {
		created, err := e.Add(ctx, f)
		if err != nil {
			return Result{}, err
		}
		return Result{Entry: &created}, nil
	}
}

func (e *Engine) EditAction(id string, f keerthana.Fields) Action {
	f = f.Clone()
	return func(ctx context.Context) (Result, error) {
		updated, err := e.Update(ctx, id, f)
		if err != nil {
			return Result{}, err
		}
		return Result{Entry: &updated}, nil
	}
}

func (e *Engine) DeleteAction(id string) Action {
	return func(ctx context.Context) (Result, error) {
		return Result{}, e.Remove(ctx, id)
	}
}

// DeleteSelectedAction captures the selection now. Ids selected or cleared
// before the action runs do not change what it deletes.
func (e *Engine) DeleteSelectedAction() Action {
	ids := e.Selected()
	return func(ctx context.Context) (Result, error) {
		bulk := e.RemoveIDs(ctx, ids)
		return Result{Bulk: &bulk}, nil
	}
}
