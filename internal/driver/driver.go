package driver

import (
	"context"

	"docflow/internal/reconcile"
)

// UnitAction is one screen-level operation requested from the business
// application: register an article, create a purchase request, post a
// receipt line, or finalize a document.
type UnitAction struct {
	// Phase names the pipeline phase issuing the action.
	Phase string
	// Key identifies the business object the action targets, such as
	// an article code or an order number.
	Key string
	// Fields carries the form values the action submits.
	Fields map[string]string
}

// UnitResult is the application's verdict on one action.
type UnitResult struct {
	Success bool
	Message string
	// Reference is the identifier assigned by the application, such as
	// a generated document number. Empty when the action creates
	// nothing.
	Reference string
}

// Driver abstracts the downstream business application. One driver
// session is held for the duration of a task run.
type Driver interface {
	// Acquire opens a session. It must be called before any other
	// method and balanced with Release.
	Acquire(ctx context.Context) error
	// Release closes the session. Safe to call after a failed Acquire.
	Release(ctx context.Context) error
	// PerformUnitAction executes a single operation. A returned error
	// means the application could not be reached or answered
	// abnormally; a UnitResult with Success false means the
	// application processed the request and rejected it.
	PerformUnitAction(ctx context.Context, action UnitAction) (UnitResult, error)
	// LedgerEntries reads the open and lettered lines of an account.
	LedgerEntries(ctx context.Context, account string) ([]reconcile.Entry, error)
	// MarkReconciled applies a reconciliation letter to the given line
	// positions of an account.
	MarkReconciled(ctx context.Context, account string, positions []int) error
}
