package vc

import "errors"

// Expected conditions are sentinel errors so callers can branch on them
// with errors.Is. Anything else coming out of the engine is a storage
// or invariant fault and should be treated as fatal.
var (
	// ErrLockHeld is returned when an unexpired, unreleased lock owned
	// by a different user exists for the file.
	ErrLockHeld = errors.New("file is locked by another user")

	// ErrLockExpired is returned when a heartbeat arrives after the
	// lease has lapsed. The caller must re-acquire.
	ErrLockExpired = errors.New("lock has expired")

	// ErrLockForbidden is returned when a heartbeat or release names a
	// lock owned by a different user.
	ErrLockForbidden = errors.New("lock is owned by another user")

	// ErrNoChanges is returned when a commit is attempted with an empty
	// pending-change set. It is a legitimate no-op, not a failure.
	ErrNoChanges = errors.New("no pending changes to commit")

	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
)
