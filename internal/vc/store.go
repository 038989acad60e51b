package vc

import (
	"time"

	"flowvc/internal/model"
)

// FileHistoryEntry is one row of a file's reconstructed version
// history, joining the version ledger with commit metadata.
type FileHistoryEntry struct {
	VersionNumber int64
	CommitID      string
	Message       string
	AuthorID      string
	ContentHash   string
	ChangeType    string
	CommittedAt   time.Time
}

// Store is the engine's persistence contract. Methods that span rows
// (lock acquisition, commits, queue transitions) are transactional in
// the implementation: cross-row invariants are enforced by the backing
// store, never by in-process mutexes, because multiple server processes
// may run concurrently.
//
// Find* methods return (nil, nil) when the row does not exist unless
// noted otherwise.
type Store interface {
	// Project operations

	// CreateProject creates a project together with its default branch
	// in one transaction.
	CreateProject(name, repoURL, remoteBranch string, syncEnabled bool) (*model.Project, error)

	FindProjectByID(id string) (*model.Project, error)

	FindProjectByName(name string) (*model.Project, error)

	ListProjects() ([]*model.Project, error)

	// Branch operations

	// CreateBranch creates a named branch forked from baseCommitID.
	CreateBranch(projectID, userID, name, baseCommitID string) (*model.Branch, error)

	// GetOrCreateUserBranch returns the branch for (projectID, userID),
	// creating it from the default branch's head on first use. The
	// (project, user) pair is unique: concurrent calls converge on one
	// branch.
	GetOrCreateUserBranch(projectID, userID string) (*model.Branch, error)

	FindBranchByID(id string) (*model.Branch, error)

	ListBranches(projectID string) ([]*model.Branch, error)

	// Lock operations

	// AcquireLock grants a lease on a file until expires. If another
	// user holds an active lock it returns ErrLockHeld; if the same
	// user already holds it, the lease is renewed.
	AcquireLock(fileID, userID string, now, expires time.Time) (*model.GitLock, error)

	// HeartbeatLock extends an active lease to expires. Returns
	// ErrNotFound for unknown locks, ErrLockForbidden for locks owned
	// by a different user, and ErrLockExpired once the lease lapsed.
	HeartbeatLock(lockID, userID string, now, expires time.Time) (*model.GitLock, error)

	// ReleaseLock ends a lease. Releasing an already-released or
	// expired lock is a no-op; releasing another user's active lock
	// returns ErrLockForbidden.
	ReleaseLock(lockID, userID string, now time.Time) error

	// FindActiveLock returns the unreleased, unexpired lock for a file,
	// or nil when the file is free.
	FindActiveLock(fileID string, now time.Time) (*model.GitLock, error)

	// PurgeLocks deletes released locks and locks expired before the
	// given time. Storage hygiene only; correctness never depends on it.
	PurgeLocks(before time.Time) (int64, error)

	// Working tree operations

	CreateFolder(branchID, parentID, name string) (*model.WorkingFolder, error)

	DeleteFolder(folderID string, now time.Time) error

	// UpsertWorkingFile creates or updates a working file and maintains
	// the branch's pending-change row for it in the same transaction:
	// the row is upserted keyed by (branch, file), and deleted outright
	// when the new hash equals the hash at the branch's last commit.
	UpsertWorkingFile(branchID, folderID, name string, content []byte, hash string, now time.Time) (*model.WorkingFile, error)

	// SoftDeleteWorkingFile marks a file deleted and records a delete
	// pending change. Deleting a never-committed file removes its
	// pending create instead.
	SoftDeleteWorkingFile(fileID string, now time.Time) error

	FindWorkingFileByID(id string) (*model.WorkingFile, error)

	FindWorkingFileByName(branchID, folderID, name string) (*model.WorkingFile, error)

	// ListWorkingTree returns the live folders and files directly under
	// parentID ("" for the branch root).
	ListWorkingTree(branchID, parentID string) ([]*model.WorkingFolder, []*model.WorkingFile, error)

	ListPendingChanges(branchID string) ([]*model.PendingChange, error)

	// DiscardPendingChange drops the open pending change for a file and
	// restores the working file to its last committed state.
	DiscardPendingChange(branchID, fileID string, now time.Time) error

	// Commit operations

	// CreateCommit converts the branch's pending changes into an
	// immutable commit in a single transaction: snapshots are written,
	// per-file version numbers advance strictly, the branch head moves
	// to the new commit, consumed pending rows are deleted, and a push
	// queue entry is enqueued when the project has remote sync enabled.
	// Returns ErrNoChanges when the branch has no pending changes.
	CreateCommit(branchID, authorID, message string, maxAttempts int64, now time.Time) (*model.Commit, error)

	FindCommitByID(id string) (*model.Commit, error)

	// FileHistory returns a file's version history, newest first.
	FileHistory(fileID string) ([]*FileHistoryEntry, error)

	// LoadCommitPayload assembles the transport payload for a commit.
	LoadCommitPayload(commitID string) (*CommitPayload, *model.Project, error)

	// Push queue operations

	// EnqueuePush adds an outbox entry for (project, commit). The pair
	// is unique: enqueueing an already-queued commit returns the
	// existing entry.
	EnqueuePush(projectID, commitID string, maxAttempts int64, now time.Time) (*model.PushQueueEntry, error)

	// DequeuePush claims the oldest pending entry, marking it
	// in_progress. Returns nil when the queue is empty.
	DequeuePush(now time.Time) (*model.PushQueueEntry, error)

	// CompletePush marks an entry succeeded and updates the branch's
	// remote sync state in the same transaction.
	CompletePush(entryID string, now time.Time) error

	// RecordPushFailure increments the attempt counter and either
	// requeues the entry (attempts < max) or marks it failed.
	RecordPushFailure(entryID, lastError string, now time.Time) (*model.PushQueueEntry, error)

	// ReenqueuePush resets a failed entry to pending with a fresh
	// attempt budget. Operator remediation for exhausted entries.
	ReenqueuePush(entryID string, now time.Time) (*model.PushQueueEntry, error)

	FindPushEntry(id string) (*model.PushQueueEntry, error)

	ListPushEntries(projectID, status string, limit int) ([]*model.PushQueueEntry, error)

	// Remote sync operations

	// RecordPull stores the last-seen remote head for a branch and
	// recomputes its sync classification.
	RecordPull(branchID, remoteCommitID string, now time.Time) (*model.RemoteSyncState, error)

	// GetSyncState returns the branch's sync state, or nil when the
	// branch has never pushed or pulled.
	GetSyncState(branchID string) (*model.RemoteSyncState, error)

	// MarkSyncConflict flags a branch as conflicted. Set by the merge
	// collaborator, never by the engine itself.
	MarkSyncConflict(branchID string, now time.Time) error

	// Operation audit

	CreateOperation(operation, parameters string, now time.Time) (*model.Operation, error)

	FinishOperation(id int64, status string, now time.Time) error

	ListOperations(limit int) ([]*model.Operation, error)

	// CheckMigrations verifies the schema is up to date.
	CheckMigrations() error

	// Close closes the underlying connection.
	Close() error
}
