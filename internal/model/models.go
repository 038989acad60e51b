package model

import "time"

// Project is the aggregate root for one workflow project and its git
// remote configuration. Branches, working trees and the push queue all
// hang off a project.
type Project struct {
	ID           string // UUID
	Name         string
	RepoURL      string // git remote URL; empty when the project has no remote
	RemoteBranch string // remote branch pushes target (e.g. "main")
	SyncEnabled  bool   // when false, commits are not enqueued for push
	CreatedAt    time.Time
}

// Branch is a named line of work within a project, optionally scoped to
// one user. Exactly one branch per project is the default branch.
type Branch struct {
	ID           string // UUID
	ProjectID    string
	UserID       string // empty for the project default branch
	Name         string
	BaseCommitID string // commit the branch forked from; empty for a root branch
	HeadCommitID string // latest commit on the branch; empty before the first commit
	IsDefault    bool
	CreatedAt    time.Time
}

// WorkingFolder is a mutable tree node grouping working files within a
// branch. A ParentID of "" means the branch root.
type WorkingFolder struct {
	ID        string // UUID
	BranchID  string
	ParentID  string // "" for root-level folders
	Name      string
	IsDeleted bool
	CreatedAt time.Time
}

// WorkingFile is the only mutable representation of file content.
// ContentHash always matches the digest of Content; it is recomputed on
// every save.
type WorkingFile struct {
	ID          string // UUID
	BranchID    string
	FolderID    string // "" for root-level files
	Name        string // e.g. "order-process.bpmn"
	Content     []byte
	ContentHash string
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Change types recorded on pending changes and snapshots.
const (
	ChangeCreate = "create"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
)

// PendingChange records one uncommitted delta per (branch, file) pair.
// Rows are upserted, never appended: a file has at most one open
// pending change per branch.
type PendingChange struct {
	ID           string // UUID
	BranchID     string
	FileID       string
	ChangeType   string // create, update or delete
	PreviousHash string // content hash at the branch's last commit; "" for creates
	NewHash      string // "" for deletes
	UpdatedAt    time.Time
}

// Commit is an immutable snapshot set created from a branch's pending
// changes.
type Commit struct {
	ID             string // UUID
	ProjectID      string
	BranchID       string
	AuthorID       string
	Message        string
	ParentCommitID string // branch head at commit time; "" for the first commit
	CreatedAt      time.Time
}

// FileSnapshot is the immutable per-commit copy of a working file.
// Once written it is never mutated.
type FileSnapshot struct {
	ID          string // UUID
	CommitID    string
	FileID      string
	Name        string
	Content     []byte
	ContentHash string
	ChangeType  string
	CreatedAt   time.Time
}

// FileCommitVersion is the append-only version ledger: one row per
// (file, commit), with a strictly increasing version number per file.
type FileCommitVersion struct {
	ID            string // UUID
	FileID        string
	CommitID      string
	VersionNumber int64
}

// GitLock is a time-bounded, renewable exclusive claim on a working
// file. A lock is active iff Released is false and ExpiresAt is in the
// future; expiry is evaluated at read time, not by a sweeper.
type GitLock struct {
	ID          string // UUID
	FileID      string
	UserID      string
	AcquiredAt  time.Time
	ExpiresAt   time.Time
	HeartbeatAt time.Time
	Released    bool
}

// Push queue entry states.
const (
	PushStatusPending    = "pending"
	PushStatusInProgress = "in_progress"
	PushStatusSucceeded  = "succeeded"
	PushStatusFailed     = "failed"
)

// PushQueueEntry is a durable outbox row for one (project, commit) push
// attempt. Attempts never exceeds MaxAttempts; once Status is failed
// the entry is terminal and requires operator intervention.
type PushQueueEntry struct {
	ID            string // UUID
	ProjectID     string
	CommitID      string
	Attempts      int64
	MaxAttempts   int64
	LastAttemptAt *time.Time
	LastError     string
	Status        string
	CreatedAt     time.Time
}

// Branch sync classifications.
const (
	SyncStatusSynced   = "synced"
	SyncStatusAhead    = "ahead"
	SyncStatusBehind   = "behind"
	SyncStatusDiverged = "diverged"
	SyncStatusConflict = "conflict"
)

// RemoteSyncState records the last-known push/pull state for one
// (project, branch) pair. SyncStatus is recomputed after every push or
// pull attempt.
type RemoteSyncState struct {
	ID               string // UUID
	ProjectID        string
	BranchID         string
	RemoteBranch     string
	LastPushCommitID string
	LastPullCommitID string
	LastPushAt       *time.Time
	LastPullAt       *time.Time
	SyncStatus       string
	UpdatedAt        time.Time
}

// Operation is an audit row for one mutating engine invocation.
type Operation struct {
	ID         int64 // auto-increment
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "success" or "error"
}
