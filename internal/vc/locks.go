package vc

import (
	"fmt"
	"time"

	"flowvc/internal/model"
)

// LockManager grants, renews and releases per-file edit leases. A lock
// is active iff it is unreleased and unexpired; expiry is evaluated
// lazily on every call by comparing against the clock, so no background
// reaper is required.
//
// The manager gates concurrent edits only. It never touches file
// content: callers acquire a lock before writing through the worktree.
type LockManager struct {
	store  Store
	clock  Clock
	logger Logger
	ttl    time.Duration
}

// NewLockManager creates a LockManager with the given default lease ttl.
func NewLockManager(store Store, clock Clock, logger Logger, ttl time.Duration) *LockManager {
	return &LockManager{
		store:  store,
		clock:  clock,
		logger: logger,
		ttl:    ttl,
	}
}

// Acquire grants userID a lease on fileID. If another user holds an
// active lock, it returns ErrLockHeld. Re-acquiring by the current
// owner renews the lease (idempotent).
func (m *LockManager) Acquire(fileID, userID string) (*model.GitLock, error) {
	now := m.clock.Now()
	lock, err := m.store.AcquireLock(fileID, userID, now, now.Add(m.ttl))
	if err != nil {
		return nil, err
	}

	m.logger.Debug("lock acquired", "file", fileID, "user", userID, "expires", lock.ExpiresAt)
	return lock, nil
}

// Heartbeat extends an active lease by the default ttl. Returns
// ErrLockExpired once the lease lapsed (the caller must re-acquire,
// which may itself race with another user) and ErrLockForbidden when
// the lock belongs to someone else.
func (m *LockManager) Heartbeat(lockID, userID string) (*model.GitLock, error) {
	now := m.clock.Now()
	lock, err := m.store.HeartbeatLock(lockID, userID, now, now.Add(m.ttl))
	if err != nil {
		return nil, err
	}

	m.logger.Debug("lock heartbeat", "lock", lockID, "expires", lock.ExpiresAt)
	return lock, nil
}

// Release ends a lease. Releasing an already-released or expired lock
// is a no-op success.
func (m *LockManager) Release(lockID, userID string) error {
	if err := m.store.ReleaseLock(lockID, userID, m.clock.Now()); err != nil {
		return err
	}

	m.logger.Debug("lock released", "lock", lockID, "user", userID)
	return nil
}

// Status returns the active lock on a file, or nil when the file is
// free.
func (m *LockManager) Status(fileID string) (*model.GitLock, error) {
	return m.store.FindActiveLock(fileID, m.clock.Now())
}

// Sweep deletes released and long-expired lock rows. Purely storage
// hygiene: lock correctness comes from lazy expiry checks, not from
// this.
func (m *LockManager) Sweep() (int64, error) {
	purged, err := m.store.PurgeLocks(m.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purging locks: %w", err)
	}

	if purged > 0 {
		m.logger.Info("lock rows purged", "count", purged)
	}
	return purged, nil
}
