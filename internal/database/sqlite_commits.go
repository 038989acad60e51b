package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flowvc/internal/model"
	"flowvc/internal/vc"
)

const commitColumns = "id, project_id, branch_id, author_id, message, parent_commit_id, created_at"

func scanCommit(r rowScanner) (*model.Commit, error) {
	var c model.Commit
	err := r.Scan(&c.ID, &c.ProjectID, &c.BranchID, &c.AuthorID, &c.Message, &c.ParentCommitID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCommit converts the branch's pending changes into an immutable
// commit. Everything happens in one transaction: snapshot rows, ledger
// rows with strictly-increasing version numbers, the branch head
// advance, pending-change deletion and (when the project syncs) the
// push-queue entry. Any failure rolls the whole thing back.
//
// SQLite allows a single writer at a time, so two commits on the same
// branch serialize here and version numbers can never collide.
func (s *SQLiteStore) CreateCommit(branchID, authorID, message string, maxAttempts int64, now time.Time) (*model.Commit, error) {
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

	pendingRows, err := tx.QueryContext(ctx,
		"SELECT "+pendingColumns+" FROM pending_changes WHERE branch_id = ? ORDER BY updated_at, id", branchID)
	if err != nil {
		return nil, fmt.Errorf("loading pending changes: %w", err)
	}

	var pending []*model.PendingChange
	for pendingRows.Next() {
		c, err := scanPendingChange(pendingRows)
		if err != nil {
			pendingRows.Close()
			return nil, fmt.Errorf("scanning pending change: %w", err)
		}
		pending = append(pending, c)
	}
	if err := pendingRows.Err(); err != nil {
		pendingRows.Close()
		return nil, err
	}
	pendingRows.Close()

	// Commits are never empty.
	if len(pending) == 0 {
		return nil, vc.ErrNoChanges
	}

	commit := &model.Commit{
		ID:             s.idgen.New(),
		ProjectID:      branch.ProjectID,
		BranchID:       branch.ID,
		AuthorID:       authorID,
		Message:        message,
		ParentCommitID: branch.HeadCommitID,
		CreatedAt:      now,
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO commits (id, project_id, branch_id, author_id, message, parent_commit_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		commit.ID, commit.ProjectID, commit.BranchID, commit.AuthorID, commit.Message, commit.ParentCommitID, commit.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting commit: %w", err)
	}

	for _, change := range pending {
		file, err := scanWorkingFile(tx.QueryRowContext(ctx,
			"SELECT "+fileColumns+" FROM working_files WHERE id = ?", change.FileID))
		if err != nil {
			return nil, fmt.Errorf("loading working file %s: %w", change.FileID, err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO file_snapshots (id, commit_id, file_id, name, content, content_hash, change_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			s.idgen.New(), commit.ID, file.ID, file.Name, file.Content, file.ContentHash, change.ChangeType, now)
		if err != nil {
			return nil, fmt.Errorf("inserting snapshot for %s: %w", file.Name, err)
		}

		// Next version = max existing + 1. The UNIQUE(file_id,
		// version_number) constraint turns any monotonicity violation
		// into a transaction abort instead of a partial write.
		var maxVersion int64
		err = tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(version_number), 0) FROM file_commit_versions WHERE file_id = ?",
			file.ID).Scan(&maxVersion)
		if err != nil {
			return nil, fmt.Errorf("finding max version for %s: %w", file.Name, err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO file_commit_versions (id, file_id, commit_id, version_number) VALUES (?, ?, ?, ?)",
			s.idgen.New(), file.ID, commit.ID, maxVersion+1)
		if err != nil {
			return nil, fmt.Errorf("inserting version ledger row for %s: %w", file.Name, err)
		}
	}

	// The head only ever advances here, inside the commit transaction,
	// so it cannot diverge from the version ledger.
	_, err = tx.ExecContext(ctx,
		"UPDATE branches SET head_commit_id = ? WHERE id = ?", commit.ID, branch.ID)
	if err != nil {
		return nil, fmt.Errorf("advancing branch head: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM pending_changes WHERE branch_id = ?", branchID)
	if err != nil {
		return nil, fmt.Errorf("clearing pending changes: %w", err)
	}

	// Outbox write shares the commit's transaction: a commit that lands
	// is guaranteed a queued push, and a rolled-back commit leaves no
	// stray queue entry.
	project, err := scanProject(tx.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", branch.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("finding project: %w", err)
	}

	if project.SyncEnabled && project.RepoURL != "" {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO push_queue (id, project_id, commit_id, attempts, max_attempts, last_error, status, created_at) VALUES (?, ?, ?, 0, ?, '', ?, ?)",
			s.idgen.New(), project.ID, commit.ID, maxAttempts, model.PushStatusPending, now)
		if err != nil {
			return nil, fmt.Errorf("enqueueing push: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return commit, nil
}

func (s *SQLiteStore) FindCommitByID(id string) (*model.Commit, error) {
	commit, err := scanCommit(s.db.QueryRow(
		"SELECT "+commitColumns+" FROM commits WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding commit by id: %w", err)
	}
	return commit, nil
}

func (s *SQLiteStore) FileHistory(fileID string) ([]*vc.FileHistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT v.version_number, v.commit_id, c.message, c.author_id, c.created_at, fs.content_hash, fs.change_type
		FROM file_commit_versions v
		JOIN commits c ON c.id = v.commit_id
		JOIN file_snapshots fs ON fs.commit_id = v.commit_id AND fs.file_id = v.file_id
		WHERE v.file_id = ?
		ORDER BY v.version_number DESC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("loading file history: %w", err)
	}
	defer rows.Close()

	var entries []*vc.FileHistoryEntry
	for rows.Next() {
		var e vc.FileHistoryEntry
		err := rows.Scan(&e.VersionNumber, &e.CommitID, &e.Message, &e.AuthorID, &e.CommittedAt, &e.ContentHash, &e.ChangeType)
		if err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) LoadCommitPayload(commitID string) (*vc.CommitPayload, *model.Project, error) {
	commit, err := s.FindCommitByID(commitID)
	if err != nil {
		return nil, nil, err
	}
	if commit == nil {
		return nil, nil, fmt.Errorf("commit %s: %w", commitID, vc.ErrNotFound)
	}

	project, err := s.FindProjectByID(commit.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if project == nil {
		return nil, nil, fmt.Errorf("project %s: %w", commit.ProjectID, vc.ErrNotFound)
	}

	rows, err := s.db.Query(
		"SELECT id, commit_id, file_id, name, content, content_hash, change_type, created_at FROM file_snapshots WHERE commit_id = ? ORDER BY name",
		commitID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading snapshots: %w", err)
	}
	defer rows.Close()

	payload := &vc.CommitPayload{
		Commit:       *commit,
		RemoteBranch: project.RemoteBranch,
	}
	for rows.Next() {
		var snap model.FileSnapshot
		err := rows.Scan(&snap.ID, &snap.CommitID, &snap.FileID, &snap.Name, &snap.Content, &snap.ContentHash, &snap.ChangeType, &snap.CreatedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		payload.Snapshots = append(payload.Snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return payload, project, nil
}
