package vc

import (
	"errors"
	"fmt"

	"flowvc/internal/model"
)

// Committer converts a branch's pending changes into an immutable,
// versioned commit. The whole conversion is one store transaction:
// snapshots, version-ledger rows, the head advance, pending-change
// deletion and the push-queue enqueue either all land or none do.
// Concurrent commits on the same branch serialize at the store.
type Committer struct {
	store       Store
	clock       Clock
	logger      Logger
	maxAttempts int64
}

// NewCommitter creates a Committer. maxAttempts is the attempt budget
// stamped onto push-queue entries created by commits.
func NewCommitter(store Store, clock Clock, logger Logger, maxAttempts int64) *Committer {
	return &Committer{
		store:       store,
		clock:       clock,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Commit creates a commit from the branch's pending changes. Returns
// ErrNoChanges when there is nothing to commit; commits are never
// empty.
func (c *Committer) Commit(branchID, authorID, message string) (*model.Commit, error) {
	commit, err := c.store.CreateCommit(branchID, authorID, message, c.maxAttempts, c.clock.Now())
	if err != nil {
		if errors.Is(err, ErrNoChanges) {
			c.logger.Debug("commit skipped, no pending changes", "branch", branchID)
			return nil, err
		}
		return nil, fmt.Errorf("committing branch %s: %w", branchID, err)
	}

	c.logger.Info("commit created",
		"commit", commit.ID,
		"branch", branchID,
		"author", authorID,
		"parent", commit.ParentCommitID,
	)
	return commit, nil
}

// History returns a file's version history, newest first.
func (c *Committer) History(fileID string) ([]*FileHistoryEntry, error) {
	return c.store.FileHistory(fileID)
}
