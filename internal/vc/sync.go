package vc

import (
	"context"
	"fmt"

	"flowvc/internal/model"
)

// BranchSyncStatus is the classification shown to users as the
// ahead/behind/diverged badge.
type BranchSyncStatus struct {
	Branch *model.Branch
	State  *model.RemoteSyncState // nil when the branch never pushed or pulled
	Status string
}

// SyncTracker records last-known push/pull state per branch and
// classifies divergence. It reports diverged, it never resolves it:
// merge and rebase policy belong to an external collaborator.
type SyncTracker struct {
	store     Store
	transport Transport
	creds     CredentialSource
	clock     Clock
	logger    Logger
}

func NewSyncTracker(store Store, transport Transport, creds CredentialSource, clock Clock, logger Logger) *SyncTracker {
	return &SyncTracker{
		store:     store,
		transport: transport,
		creds:     creds,
		clock:     clock,
		logger:    logger,
	}
}

// ClassifySync derives a branch's sync status from its local head, the
// last commit acknowledged by the remote, and the remote tip seen on
// the last pull:
//
//	synced   — local head matches the remote tip
//	ahead    — local commits exist that the remote lacks
//	behind   — remote commits exist that local hasn't pulled
//	diverged — both sides have commits the other lacks
//
// An empty lastPull means the remote has never been inspected; the
// remote tip is then assumed to be the last pushed commit.
func ClassifySync(headCommitID, lastPushCommitID, lastPullCommitID string) string {
	localAhead := headCommitID != lastPushCommitID
	remoteAhead := lastPullCommitID != "" && lastPullCommitID != lastPushCommitID

	switch {
	case localAhead && remoteAhead:
		return model.SyncStatusDiverged
	case localAhead:
		return model.SyncStatusAhead
	case remoteAhead:
		return model.SyncStatusBehind
	default:
		return model.SyncStatusSynced
	}
}

// Status returns the branch's current sync classification. A stored
// conflict flag wins over the derived classification until cleared by
// the merge collaborator.
func (t *SyncTracker) Status(branchID string) (*BranchSyncStatus, error) {
	branch, err := t.store.FindBranchByID(branchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
	}

	state, err := t.store.GetSyncState(branchID)
	if err != nil {
		return nil, err
	}

	status := &BranchSyncStatus{Branch: branch, State: state}
	if state == nil {
		status.Status = ClassifySync(branch.HeadCommitID, "", "")
		return status, nil
	}

	if state.SyncStatus == model.SyncStatusConflict {
		status.Status = model.SyncStatusConflict
		return status, nil
	}

	status.Status = ClassifySync(branch.HeadCommitID, state.LastPushCommitID, state.LastPullCommitID)
	return status, nil
}

// Pull asks the transport for the remote tip and records it, returning
// the refreshed sync state.
func (t *SyncTracker) Pull(ctx context.Context, branchID string) (*model.RemoteSyncState, error) {
	branch, err := t.store.FindBranchByID(branchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
	}

	project, err := t.store.FindProjectByID(branch.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("project %s: %w", branch.ProjectID, ErrNotFound)
	}

	creds, err := t.creds.Resolve(project.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}

	remoteBranch := project.RemoteBranch
	state, err := t.store.GetSyncState(branchID)
	if err != nil {
		return nil, err
	}
	if state != nil && state.RemoteBranch != "" {
		remoteBranch = state.RemoteBranch
	}

	remoteHead, err := t.transport.Pull(ctx, project.RepoURL, creds, remoteBranch)
	if err != nil {
		return nil, fmt.Errorf("pulling remote head for %s: %w", project.RepoURL, err)
	}

	updated, err := t.store.RecordPull(branchID, remoteHead, t.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("recording pull: %w", err)
	}

	t.logger.Info("remote head recorded",
		"branch", branchID,
		"remote_head", remoteHead,
		"status", updated.SyncStatus,
	)
	return updated, nil
}

// MarkConflict flags a branch as conflicted on behalf of the merge
// collaborator.
func (t *SyncTracker) MarkConflict(branchID string) error {
	return t.store.MarkSyncConflict(branchID, t.clock.Now())
}
