package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flowvc/internal/model"
	"flowvc/internal/vc"
)

const pushColumns = "id, project_id, commit_id, attempts, max_attempts, last_attempt_at, last_error, status, created_at"

func scanPushEntry(r rowScanner) (*model.PushQueueEntry, error) {
	var e model.PushQueueEntry
	var lastAttempt sql.NullTime
	err := r.Scan(&e.ID, &e.ProjectID, &e.CommitID, &e.Attempts, &e.MaxAttempts, &lastAttempt, &e.LastError, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.LastAttemptAt = timePtr(lastAttempt)
	return &e, nil
}

// EnqueuePush adds a commit to the push outbox. Enqueueing the same
// commit twice returns the existing entry unchanged.
func (s *SQLiteStore) EnqueuePush(projectID, commitID string, maxAttempts int64, now time.Time) (*model.PushQueueEntry, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := scanPushEntry(tx.QueryRowContext(ctx,
		"SELECT "+pushColumns+" FROM push_queue WHERE project_id = ? AND commit_id = ?", projectID, commitID))
	if err == nil {
		return existing, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding push entry: %w", err)
	}

	entry := &model.PushQueueEntry{
		ID:          s.idgen.New(),
		ProjectID:   projectID,
		CommitID:    commitID,
		MaxAttempts: maxAttempts,
		Status:      model.PushStatusPending,
		CreatedAt:   now,
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO push_queue (id, project_id, commit_id, attempts, max_attempts, last_error, status, created_at) VALUES (?, ?, ?, 0, ?, '', ?, ?)",
		entry.ID, entry.ProjectID, entry.CommitID, entry.MaxAttempts, entry.Status, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting push entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return entry, nil
}

// DequeuePush claims the oldest pending entry, moving it to in_progress.
// Returns nil when the queue has no pending work. Succeeded and failed
// entries are never claimed.
func (s *SQLiteStore) DequeuePush(now time.Time) (*model.PushQueueEntry, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := scanPushEntry(tx.QueryRowContext(ctx,
		"SELECT "+pushColumns+" FROM push_queue WHERE status = ? ORDER BY created_at, id LIMIT 1",
		model.PushStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tx.Commit() // Queue is idle
		}
		return nil, fmt.Errorf("finding pending push entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE push_queue SET status = ?, last_attempt_at = ? WHERE id = ?",
		model.PushStatusInProgress, now, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("claiming push entry: %w", err)
	}

	entry.Status = model.PushStatusInProgress
	entry.LastAttemptAt = &now

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return entry, nil
}

// CompletePush marks an entry succeeded and records the push in the
// branch's remote sync state. Completing an already-succeeded entry is a
// no-op, which makes a replayed push after a crashed worker harmless.
func (s *SQLiteStore) CompletePush(entryID string, now time.Time) error {
	tx, ctx, err := s.begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	entry, err := scanPushEntry(tx.QueryRowContext(ctx,
		"SELECT "+pushColumns+" FROM push_queue WHERE id = ?", entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("push entry %s: %w", entryID, vc.ErrNotFound)
		}
		return fmt.Errorf("finding push entry: %w", err)
	}

	if entry.Status == model.PushStatusSucceeded {
		return tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE push_queue SET status = ?, last_error = '' WHERE id = ?",
		model.PushStatusSucceeded, entry.ID)
	if err != nil {
		return fmt.Errorf("marking push succeeded: %w", err)
	}

	commit, err := scanCommit(tx.QueryRowContext(ctx,
		"SELECT "+commitColumns+" FROM commits WHERE id = ?", entry.CommitID))
	if err != nil {
		return fmt.Errorf("finding pushed commit: %w", err)
	}

	branch, err := scanBranch(tx.QueryRowContext(ctx,
		"SELECT "+branchColumns+" FROM branches WHERE id = ?", commit.BranchID))
	if err != nil {
		return fmt.Errorf("finding branch: %w", err)
	}

	project, err := scanProject(tx.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", entry.ProjectID))
	if err != nil {
		return fmt.Errorf("finding project: %w", err)
	}

	state, err := s.syncStateForUpdate(tx, ctx, branch.ID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &model.RemoteSyncState{
			ID:        s.idgen.New(),
			ProjectID: project.ID,
			BranchID:  branch.ID,
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO remote_sync_state (id, project_id, branch_id, remote_branch, updated_at) VALUES (?, ?, ?, ?, ?)",
			state.ID, state.ProjectID, state.BranchID, project.RemoteBranch, now)
		if err != nil {
			return fmt.Errorf("inserting sync state: %w", err)
		}
	}

	// An acknowledged push means the remote tip is now the pushed commit,
	// superseding whatever an earlier pull observed.
	status := vc.ClassifySync(branch.HeadCommitID, entry.CommitID, entry.CommitID)
	_, err = tx.ExecContext(ctx,
		"UPDATE remote_sync_state SET remote_branch = ?, last_push_commit_id = ?, last_push_at = ?, last_pull_commit_id = ?, sync_status = ?, updated_at = ? WHERE id = ?",
		project.RemoteBranch, entry.CommitID, now, entry.CommitID, status, now, state.ID)
	if err != nil {
		return fmt.Errorf("updating sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RecordPushFailure counts an attempt against the entry's budget. The
// entry returns to pending while attempts remain and moves to the
// terminal failed state once the budget is spent.
func (s *SQLiteStore) RecordPushFailure(entryID, lastError string, now time.Time) (*model.PushQueueEntry, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := scanPushEntry(tx.QueryRowContext(ctx,
		"SELECT "+pushColumns+" FROM push_queue WHERE id = ?", entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("push entry %s: %w", entryID, vc.ErrNotFound)
		}
		return nil, fmt.Errorf("finding push entry: %w", err)
	}

	entry.Attempts++
	entry.LastError = lastError
	entry.LastAttemptAt = &now
	if entry.Attempts >= entry.MaxAttempts {
		entry.Status = model.PushStatusFailed
	} else {
		entry.Status = model.PushStatusPending
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE push_queue SET attempts = ?, last_error = ?, last_attempt_at = ?, status = ? WHERE id = ?",
		entry.Attempts, entry.LastError, now, entry.Status, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("recording push failure: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return entry, nil
}

// ReenqueuePush resets a failed entry for a fresh round of attempts.
// Only terminally failed entries are eligible.
func (s *SQLiteStore) ReenqueuePush(entryID string, now time.Time) (*model.PushQueueEntry, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := scanPushEntry(tx.QueryRowContext(ctx,
		"SELECT "+pushColumns+" FROM push_queue WHERE id = ?", entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("push entry %s: %w", entryID, vc.ErrNotFound)
		}
		return nil, fmt.Errorf("finding push entry: %w", err)
	}

	if entry.Status != model.PushStatusFailed {
		return nil, fmt.Errorf("push entry %s is %s, only failed entries can be re-enqueued", entryID, entry.Status)
	}

	entry.Status = model.PushStatusPending
	entry.Attempts = 0
	entry.LastError = ""

	_, err = tx.ExecContext(ctx,
		"UPDATE push_queue SET status = ?, attempts = 0, last_error = '' WHERE id = ?",
		entry.Status, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("re-enqueueing push entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) FindPushEntry(id string) (*model.PushQueueEntry, error) {
	entry, err := scanPushEntry(s.db.QueryRow(
		"SELECT "+pushColumns+" FROM push_queue WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding push entry: %w", err)
	}
	return entry, nil
}

// ListPushEntries returns queue entries, newest first. projectID and
// status filter when non-empty; limit <= 0 means no limit.
func (s *SQLiteStore) ListPushEntries(projectID, status string, limit int) ([]*model.PushQueueEntry, error) {
	query := "SELECT " + pushColumns + " FROM push_queue WHERE 1=1"
	var args []any
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing push entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.PushQueueEntry
	for rows.Next() {
		e, err := scanPushEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning push entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remote sync state

const syncColumns = "id, project_id, branch_id, remote_branch, last_push_commit_id, last_pull_commit_id, last_push_at, last_pull_at, sync_status, updated_at"

func scanSyncState(r rowScanner) (*model.RemoteSyncState, error) {
	var st model.RemoteSyncState
	var pushAt, pullAt sql.NullTime
	err := r.Scan(&st.ID, &st.ProjectID, &st.BranchID, &st.RemoteBranch, &st.LastPushCommitID, &st.LastPullCommitID, &pushAt, &pullAt, &st.SyncStatus, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st.LastPushAt = timePtr(pushAt)
	st.LastPullAt = timePtr(pullAt)
	return &st, nil
}

func (s *SQLiteStore) syncStateForUpdate(tx *sql.Tx, ctx context.Context, branchID string) (*model.RemoteSyncState, error) {
	state, err := scanSyncState(tx.QueryRowContext(ctx,
		"SELECT "+syncColumns+" FROM remote_sync_state WHERE branch_id = ?", branchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding sync state: %w", err)
	}
	return state, nil
}

// RecordPull stores the remote tip observed for a branch and recomputes
// the divergence classification.
func (s *SQLiteStore) RecordPull(branchID, remoteCommitID string, now time.Time) (*model.RemoteSyncState, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	branch, err := scanBranch(tx.QueryRowContext(ctx,
		"SELECT "+branchColumns+" FROM branches WHERE id = ?", branchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("branch %s: %w", branchID, vc.ErrNotFound)
		}
		return nil, fmt.Errorf("finding branch: %w", err)
	}

	project, err := scanProject(tx.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", branch.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("finding project: %w", err)
	}

	state, err := s.syncStateForUpdate(tx, ctx, branchID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &model.RemoteSyncState{
			ID:           s.idgen.New(),
			ProjectID:    project.ID,
			BranchID:     branchID,
			RemoteBranch: project.RemoteBranch,
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO remote_sync_state (id, project_id, branch_id, remote_branch, updated_at) VALUES (?, ?, ?, ?, ?)",
			state.ID, state.ProjectID, state.BranchID, state.RemoteBranch, now)
		if err != nil {
			return nil, fmt.Errorf("inserting sync state: %w", err)
		}
	}

	state.LastPullCommitID = remoteCommitID
	state.LastPullAt = &now
	state.SyncStatus = vc.ClassifySync(branch.HeadCommitID, state.LastPushCommitID, remoteCommitID)
	state.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		"UPDATE remote_sync_state SET last_pull_commit_id = ?, last_pull_at = ?, sync_status = ?, updated_at = ? WHERE id = ?",
		state.LastPullCommitID, now, state.SyncStatus, now, state.ID)
	if err != nil {
		return nil, fmt.Errorf("updating sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return state, nil
}

func (s *SQLiteStore) GetSyncState(branchID string) (*model.RemoteSyncState, error) {
	state, err := scanSyncState(s.db.QueryRow(
		"SELECT "+syncColumns+" FROM remote_sync_state WHERE branch_id = ?", branchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Never synced
		}
		return nil, fmt.Errorf("finding sync state: %w", err)
	}
	return state, nil
}

// MarkSyncConflict flags a branch as conflicted. The flag sticks until a
// pull or push recomputes the status.
func (s *SQLiteStore) MarkSyncConflict(branchID string, now time.Time) error {
	tx, ctx, err := s.begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	branch, err := scanBranch(tx.QueryRowContext(ctx,
		"SELECT "+branchColumns+" FROM branches WHERE id = ?", branchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("branch %s: %w", branchID, vc.ErrNotFound)
		}
		return fmt.Errorf("finding branch: %w", err)
	}

	state, err := s.syncStateForUpdate(tx, ctx, branchID)
	if err != nil {
		return err
	}
	if state == nil {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO remote_sync_state (id, project_id, branch_id, sync_status, updated_at) VALUES (?, ?, ?, ?, ?)",
			s.idgen.New(), branch.ProjectID, branchID, model.SyncStatusConflict, now)
		if err != nil {
			return fmt.Errorf("inserting sync state: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE remote_sync_state SET sync_status = ?, updated_at = ? WHERE id = ?",
			model.SyncStatusConflict, now, state.ID)
		if err != nil {
			return fmt.Errorf("updating sync state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Operation audit log

const operationColumns = "id, operation, parameters, started_at, finished_at, status"

func scanOperation(r rowScanner) (*model.Operation, error) {
	var op model.Operation
	var finished sql.NullTime
	err := r.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &finished, &op.Status)
	if err != nil {
		return nil, err
	}
	op.FinishedAt = timePtr(finished)
	return &op, nil
}

func (s *SQLiteStore) CreateOperation(operation, parameters string, now time.Time) (*model.Operation, error) {
	res, err := s.db.Exec(
		"INSERT INTO operations (operation, parameters, started_at, status) VALUES (?, ?, ?, 'running')",
		operation, parameters, now)
	if err != nil {
		return nil, fmt.Errorf("inserting operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return &model.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  now,
		Status:     "running",
	}, nil
}

func (s *SQLiteStore) FinishOperation(id int64, status string, now time.Time) error {
	_, err := s.db.Exec(
		"UPDATE operations SET finished_at = ?, status = ? WHERE id = ?",
		now, status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListOperations(limit int) ([]*model.Operation, error) {
	query := "SELECT " + operationColumns + " FROM operations ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
