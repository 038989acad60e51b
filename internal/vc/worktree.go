package vc

import (
	"fmt"

	"flowvc/internal/model"
)

// Worktree is the mutable staging area a user edits before committing.
// Every save recomputes the content hash and maintains the branch's
// pending-change row for the file; an edit back to the last committed
// content removes the pending change entirely, so no-op edits never
// pollute the diff.
//
// Worktree does not consult the LockManager: callers are expected to
// hold a lock on the file before writing. Keeping concurrency policy
// out of the storage path lets the lock policy evolve independently.
type Worktree struct {
	store  Store
	hasher Hasher
	clock  Clock
	logger Logger
}

func NewWorktree(store Store, hasher Hasher, clock Clock, logger Logger) *Worktree {
	return &Worktree{
		store:  store,
		hasher: hasher,
		clock:  clock,
		logger: logger,
	}
}

// UpsertFile creates or updates a working file under folderID ("" for
// the branch root) and records the pending change.
func (w *Worktree) UpsertFile(branchID, folderID, name string, content []byte) (*model.WorkingFile, error) {
	hash := w.hasher.Sum(content)

	file, err := w.store.UpsertWorkingFile(branchID, folderID, name, content, hash, w.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("saving working file: %w", err)
	}

	w.logger.Debug("working file saved", "branch", branchID, "file", file.ID, "hash", hash)
	return file, nil
}

// DeleteFile soft-deletes a working file and records a delete pending
// change. The row survives so committed history can still resolve it.
func (w *Worktree) DeleteFile(fileID string) error {
	if err := w.store.SoftDeleteWorkingFile(fileID, w.clock.Now()); err != nil {
		return fmt.Errorf("deleting working file: %w", err)
	}

	w.logger.Debug("working file deleted", "file", fileID)
	return nil
}

// CreateFolder creates a working folder under parentID ("" for root).
func (w *Worktree) CreateFolder(branchID, parentID, name string) (*model.WorkingFolder, error) {
	folder, err := w.store.CreateFolder(branchID, parentID, name)
	if err != nil {
		return nil, fmt.Errorf("creating folder: %w", err)
	}
	return folder, nil
}

// DeleteFolder soft-deletes a working folder.
func (w *Worktree) DeleteFolder(folderID string) error {
	if err := w.store.DeleteFolder(folderID, w.clock.Now()); err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	return nil
}

// ReadTree returns the live folders and files directly under parentID.
func (w *Worktree) ReadTree(branchID, parentID string) ([]*model.WorkingFolder, []*model.WorkingFile, error) {
	return w.store.ListWorkingTree(branchID, parentID)
}

// GetFile returns a working file by ID, or ErrNotFound.
func (w *Worktree) GetFile(fileID string) (*model.WorkingFile, error) {
	file, err := w.store.FindWorkingFileByID(fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("working file %s: %w", fileID, ErrNotFound)
	}
	return file, nil
}

// PendingChanges returns the branch's open pending changes.
func (w *Worktree) PendingChanges(branchID string) ([]*model.PendingChange, error) {
	return w.store.ListPendingChanges(branchID)
}

// Discard drops the open pending change for a file and restores the
// file to its last committed state.
func (w *Worktree) Discard(branchID, fileID string) error {
	if err := w.store.DiscardPendingChange(branchID, fileID, w.clock.Now()); err != nil {
		return fmt.Errorf("discarding pending change: %w", err)
	}

	w.logger.Debug("pending change discarded", "branch", branchID, "file", fileID)
	return nil
}
