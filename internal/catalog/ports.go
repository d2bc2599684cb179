package catalog

import (
	"context"

	"keerthanaapi/internal/keerthana"
)

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=catalog

// Store is the record store the engine reconciles against.
type Store interface {
	List(ctx context.Context) ([]keerthana.Entry, error)
	Insert(ctx context.Context, f keerthana.Fields) (keerthana.Entry, error)
	Update(ctx context.Context, id string, f keerthana.Fields) (keerthana.Entry, error)
	Delete(ctx context.Context, id string) error
}

// Notifier receives a human readable notice for every mutating operation.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Verifier decides whether a confirmation code opens the gate.
type Verifier interface {
	Verify(code string) bool
	// Required reports whether actions must wait for a code at all.
	Required() bool
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notice struct {
	Level   Level      `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Action  ActionKind `json:"action,omitempty"`
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) {}
