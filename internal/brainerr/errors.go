// Package brainerr defines the sentinel error kinds shared by every brain
// component, plus helpers for wrapping and classifying them.
package brainerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, per the core's error handling design.
var (
	// ErrNotFound indicates a referenced entity or file is absent.
	ErrNotFound = errors.New("not found")

	// ErrMalformed indicates an unparseable header, a missing required
	// field, or a broken invariant.
	ErrMalformed = errors.New("malformed")

	// ErrConflict indicates a duplicate relationship, a duplicate event,
	// or a concurrent-write collision.
	ErrConflict = errors.New("conflict")

	// ErrPreconditionNotMet indicates a state-machine transition or
	// operation requires a prior step that has not completed.
	ErrPreconditionNotMet = errors.New("precondition not met")

	// ErrRateLimited indicates the outbound rate limiter is engaged.
	// Never surfaced upward by the orchestrator; it blocks instead.
	ErrRateLimited = errors.New("rate limited")

	// ErrIO indicates an underlying filesystem or compression failure.
	ErrIO = errors.New("io error")

	// ErrExternal indicates an error from an out-of-scope collaborator
	// (an API call, a credential test).
	ErrExternal = errors.New("external error")

	// ErrCanceled indicates an operation was canceled by a signal or a
	// timeout.
	ErrCanceled = errors.New("canceled")
)

// Wrap attaches an operation label to err and tags it with kind so that
// errors.Is(result, kind) succeeds, mirroring wrapDBError's behavior in
// the teacher's sqlite storage layer.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Is reports whether err is (or wraps) kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
