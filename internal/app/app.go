package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"flowvc/internal/archive"
	"flowvc/internal/config"
	"flowvc/internal/credentials"
	"flowvc/internal/database"
	"flowvc/internal/gitremote"
	"flowvc/internal/hash"
	"flowvc/internal/model"
	"flowvc/internal/vc"
)

// App is the application layer between the CLI and the version-control
// services. It constructs all dependencies from config, exposes
// high-level operations, and manages the store lifecycle on Close.
type App struct {
	cfg       *config.Config
	store     vc.Store
	creds     vc.CredentialSource
	locks     *vc.LockManager
	branches  *vc.BranchManager
	worktree  *vc.Worktree
	committer *vc.Committer
	pusher    *vc.Pusher
	sync      *vc.SyncTracker
	op        *EngineOperation
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Commit", "PushRun").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	transport, err := gitremote.NewTransportFromConfig(cfg.Git)
	if err != nil {
		return nil, fmt.Errorf("creating git transport: %w", err)
	}

	arc, err := archive.NewArchiveFromConfig(cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	creds, err := credentials.NewSourceFromConfig(cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("creating credential source: %w", err)
	}

	hasher, err := hash.NewHasherFromConfig(cfg.Hash)
	if err != nil {
		return nil, fmt.Errorf("creating hasher: %w", err)
	}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	log := &slogAdapter{l: logger}
	clock := vc.RealClock{}

	ttl := time.Duration(cfg.Locks.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxAttempts := cfg.Push.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	return &App{
		cfg:       cfg,
		store:     store,
		creds:     creds,
		locks:     vc.NewLockManager(store, clock, log, ttl),
		branches:  vc.NewBranchManager(store, log),
		worktree:  vc.NewWorktree(store, hasher, clock, log),
		committer: vc.NewCommitter(store, clock, log, maxAttempts),
		pusher:    vc.NewPusher(store, transport, arc, creds, clock, log),
		sync:      vc.NewSyncTracker(store, transport, creds, clock, log),
		op:        NewEngineOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for DB-mutating commands.
func (a *App) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	dbOp, err := a.store.CreateOperation(a.op.Operation, a.op.Parameters, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// SetParameters records the command parameters on the audit row.
func (a *App) SetParameters(params string) {
	a.op.Parameters = params
}

// UnlockCredentials decrypts the age credential file for this run. No-op
// for credential sources that are not passphrase-protected.
func (a *App) UnlockCredentials(passphrase string) error {
	src, ok := a.creds.(*credentials.AgeSource)
	if !ok {
		return nil
	}
	return src.Unlock(passphrase)
}

// SetupCredentials writes a new encrypted credential file.
func (a *App) SetupCredentials(passphrase string, creds vc.Credentials) error {
	src, ok := a.creds.(*credentials.AgeSource)
	if !ok {
		return fmt.Errorf("configured credential source does not support setup")
	}
	if err := a.persistOperation(); err != nil {
		return err
	}
	return src.Setup(passphrase, creds)
}

// CreateProject registers a project with its git remote settings. Every
// project starts with a default branch.
func (a *App) CreateProject(name, repoURL, remoteBranch string, syncEnabled bool) (*model.Project, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.store.CreateProject(name, repoURL, remoteBranch, syncEnabled)
}

// ListProjects returns all registered projects.
func (a *App) ListProjects() ([]*model.Project, error) {
	return a.store.ListProjects()
}

// UserBranch resolves the per-user working branch of a project by
// project name, creating it on first use.
func (a *App) UserBranch(projectName, userID string) (*model.Branch, error) {
	project, err := a.store.FindProjectByName(projectName)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("project %s: %w", projectName, vc.ErrNotFound)
	}
	return a.branches.GetOrCreateUserBranch(project.ID, userID)
}

// ListBranches returns the branches of a project by name.
func (a *App) ListBranches(projectName string) ([]*model.Branch, error) {
	project, err := a.store.FindProjectByName(projectName)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("project %s: %w", projectName, vc.ErrNotFound)
	}
	return a.branches.List(project.ID)
}

// AcquireLock grants the user an edit lease on a file.
func (a *App) AcquireLock(fileID, userID string) (*model.GitLock, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.locks.Acquire(fileID, userID)
}

// HeartbeatLock extends an active lease.
func (a *App) HeartbeatLock(lockID, userID string) (*model.GitLock, error) {
	return a.locks.Heartbeat(lockID, userID)
}

// ReleaseLock ends a lease.
func (a *App) ReleaseLock(lockID, userID string) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	return a.locks.Release(lockID, userID)
}

// LockStatus returns the active lock on a file, nil when free.
func (a *App) LockStatus(fileID string) (*model.GitLock, error) {
	return a.locks.Status(fileID)
}

// SweepLocks purges released and expired lock rows.
func (a *App) SweepLocks() (int64, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	return a.locks.Sweep()
}

// PutFile saves file content into the working tree.
func (a *App) PutFile(branchID, folderID, name string, content []byte) (*model.WorkingFile, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.worktree.UpsertFile(branchID, folderID, name, content)
}

// DeleteFile soft-deletes a working file.
func (a *App) DeleteFile(fileID string) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	return a.worktree.DeleteFile(fileID)
}

// CreateFolder creates a working folder.
func (a *App) CreateFolder(branchID, parentID, name string) (*model.WorkingFolder, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.worktree.CreateFolder(branchID, parentID, name)
}

// DeleteFolder removes an empty working folder.
func (a *App) DeleteFolder(folderID string) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	return a.worktree.DeleteFolder(folderID)
}

// ReadTree lists the live folders and files directly under a parent.
func (a *App) ReadTree(branchID, parentID string) ([]*model.WorkingFolder, []*model.WorkingFile, error) {
	return a.worktree.ReadTree(branchID, parentID)
}

// GetFile returns a working file by ID.
func (a *App) GetFile(fileID string) (*model.WorkingFile, error) {
	return a.worktree.GetFile(fileID)
}

// PendingChanges lists a branch's open pending changes.
func (a *App) PendingChanges(branchID string) ([]*model.PendingChange, error) {
	return a.worktree.PendingChanges(branchID)
}

// Discard drops the pending change for a file and restores its last
// committed content.
func (a *App) Discard(branchID, fileID string) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	return a.worktree.Discard(branchID, fileID)
}

// Commit converts the branch's pending changes into a commit.
func (a *App) Commit(branchID, authorID, message string) (*model.Commit, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.committer.Commit(branchID, authorID, message)
}

// FileHistory returns a file's version history, newest first.
func (a *App) FileHistory(fileID string) ([]*vc.FileHistoryEntry, error) {
	return a.committer.History(fileID)
}

// ProcessPushQueue drains the push outbox.
func (a *App) ProcessPushQueue(ctx context.Context) ([]*vc.PushResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.pusher.Drain(ctx)
}

// RetryPush resets a terminally failed queue entry.
func (a *App) RetryPush(entryID string) (*model.PushQueueEntry, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.pusher.Reenqueue(entryID)
}

// ListPushQueue lists push queue entries, optionally filtered.
func (a *App) ListPushQueue(projectName, status string, limit int) ([]*model.PushQueueEntry, error) {
	projectID := ""
	if projectName != "" {
		project, err := a.store.FindProjectByName(projectName)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, fmt.Errorf("project %s: %w", projectName, vc.ErrNotFound)
		}
		projectID = project.ID
	}
	return a.store.ListPushEntries(projectID, status, limit)
}

// SyncStatus returns a branch's divergence classification.
func (a *App) SyncStatus(branchID string) (*vc.BranchSyncStatus, error) {
	return a.sync.Status(branchID)
}

// Pull records the current remote tip for a branch.
func (a *App) Pull(ctx context.Context, branchID string) (*model.RemoteSyncState, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.sync.Pull(ctx, branchID)
}

// History returns the most recent audited operations.
func (a *App) History(limit int) ([]*model.Operation, error) {
	return a.store.ListOperations(limit)
}

// MarkError flags the operation's audit row as failed.
func (a *App) MarkError() {
	a.op.Status = "error"
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.store.FinishOperation(a.op.ID, a.op.Status, time.Now().UTC()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
