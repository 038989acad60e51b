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

const fileColumns = "id, branch_id, folder_id, name, content, content_hash, is_deleted, created_at, updated_at"

func scanWorkingFile(r rowScanner) (*model.WorkingFile, error) {
	var f model.WorkingFile
	err := r.Scan(&f.ID, &f.BranchID, &f.FolderID, &f.Name, &f.Content, &f.ContentHash, &f.IsDeleted, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const pendingColumns = "id, branch_id, file_id, change_type, previous_hash, new_hash, updated_at"

func scanPendingChange(r rowScanner) (*model.PendingChange, error) {
	var p model.PendingChange
	err := r.Scan(&p.ID, &p.BranchID, &p.FileID, &p.ChangeType, &p.PreviousHash, &p.NewHash, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) CreateFolder(branchID, parentID, name string) (*model.WorkingFolder, error) {
	folder := &model.WorkingFolder{
		ID:        s.idgen.New(),
		BranchID:  branchID,
		ParentID:  parentID,
		Name:      name,
		CreatedAt: s.clock.Now(),
	}

	_, err := s.db.Exec(
		"INSERT INTO working_folders (id, branch_id, parent_id, name, is_deleted, created_at) VALUES (?, ?, ?, ?, FALSE, ?)",
		folder.ID, folder.BranchID, folder.ParentID, folder.Name, folder.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting folder: %w", err)
	}
	return folder, nil
}

func (s *SQLiteStore) DeleteFolder(folderID string, now time.Time) error {
	res, err := s.db.Exec(
		"UPDATE working_folders SET is_deleted = TRUE WHERE id = ?", folderID)
	if err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("folder %s: %w", folderID, vc.ErrNotFound)
	}
	return nil
}

// UpsertWorkingFile writes a working file and maintains its pending
// change in one transaction. The pending row is keyed by (branch, file)
// and upserted; when the new hash matches the hash at the branch's last
// commit, the pending row is deleted instead, so reverted edits drop
// out of the diff entirely.
func (s *SQLiteStore) UpsertWorkingFile(branchID, folderID, name string, content []byte, hash string, now time.Time) (*model.WorkingFile, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	file, err := scanWorkingFile(tx.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM working_files WHERE branch_id = ? AND folder_id = ? AND name = ?",
		branchID, folderID, name))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding working file: %w", err)
	}

	if file == nil {
		file = &model.WorkingFile{
			ID:          s.idgen.New(),
			BranchID:    branchID,
			FolderID:    folderID,
			Name:        name,
			Content:     content,
			ContentHash: hash,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO working_files (id, branch_id, folder_id, name, content, content_hash, is_deleted, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, FALSE, ?, ?)",
			file.ID, file.BranchID, file.FolderID, file.Name, file.Content, file.ContentHash, file.CreatedAt, file.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("inserting working file: %w", err)
		}

		if err := s.upsertPendingChange(ctx, tx, branchID, file.ID, model.ChangeCreate, "", hash, now); err != nil {
			return nil, err
		}

		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing transaction: %w", err)
		}
		return file, nil
	}

	// committedHash is what the branch's last commit recorded for this
	// file: the open pending row's previous hash if one exists, else
	// the file's current hash (which equals the committed hash when no
	// edit is pending).
	pending, err := scanPendingChange(tx.QueryRowContext(ctx,
		"SELECT "+pendingColumns+" FROM pending_changes WHERE branch_id = ? AND file_id = ?",
		branchID, file.ID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding pending change: %w", err)
	}

	switch {
	case pending == nil:
		if hash != file.ContentHash {
			if err := s.upsertPendingChange(ctx, tx, branchID, file.ID, model.ChangeUpdate, file.ContentHash, hash, now); err != nil {
				return nil, err
			}
		}
		// Hash unchanged: a no-op edit, no pending row is created.

	case pending.ChangeType != model.ChangeCreate && hash == pending.PreviousHash:
		// Edited back to the committed content: drop the pending change.
		if _, err := tx.ExecContext(ctx, "DELETE FROM pending_changes WHERE id = ?", pending.ID); err != nil {
			return nil, fmt.Errorf("deleting pending change: %w", err)
		}

	default:
		changeType := pending.ChangeType
		if changeType == model.ChangeDelete {
			// A save after a pending delete restores the file as an update.
			changeType = model.ChangeUpdate
		}
		if err := s.upsertPendingChange(ctx, tx, branchID, file.ID, changeType, pending.PreviousHash, hash, now); err != nil {
			return nil, err
		}
	}

	file.Content = content
	file.ContentHash = hash
	file.IsDeleted = false
	file.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		"UPDATE working_files SET content = ?, content_hash = ?, is_deleted = FALSE, updated_at = ? WHERE id = ?",
		file.Content, file.ContentHash, file.UpdatedAt, file.ID)
	if err != nil {
		return nil, fmt.Errorf("updating working file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return file, nil
}

// upsertPendingChange writes the single open pending row for (branch, file).
func (s *SQLiteStore) upsertPendingChange(ctx context.Context, tx *sql.Tx, branchID, fileID, changeType, previousHash, newHash string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pending_changes (id, branch_id, file_id, change_type, previous_hash, new_hash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (branch_id, file_id) DO UPDATE SET
			change_type = excluded.change_type,
			previous_hash = excluded.previous_hash,
			new_hash = excluded.new_hash,
			updated_at = excluded.updated_at`,
		s.idgen.New(), branchID, fileID, changeType, previousHash, newHash, now)
	if err != nil {
		return fmt.Errorf("upserting pending change: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SoftDeleteWorkingFile(fileID string, now time.Time) error {
	tx, ctx, err := s.begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	file, err := scanWorkingFile(tx.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM working_files WHERE id = ?", fileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("working file %s: %w", fileID, vc.ErrNotFound)
		}
		return fmt.Errorf("finding working file: %w", err)
	}

	if file.IsDeleted {
		return tx.Commit() // already deleted, no-op
	}

	pending, err := scanPendingChange(tx.QueryRowContext(ctx,
		"SELECT "+pendingColumns+" FROM pending_changes WHERE branch_id = ? AND file_id = ?",
		file.BranchID, fileID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("finding pending change: %w", err)
	}

	switch {
	case pending == nil:
		if err := s.upsertPendingChange(ctx, tx, file.BranchID, fileID, model.ChangeDelete, file.ContentHash, "", now); err != nil {
			return err
		}
	case pending.ChangeType == model.ChangeCreate:
		// Never committed: deleting it cancels the create outright.
		if _, err := tx.ExecContext(ctx, "DELETE FROM pending_changes WHERE id = ?", pending.ID); err != nil {
			return fmt.Errorf("deleting pending change: %w", err)
		}
	default:
		if err := s.upsertPendingChange(ctx, tx, file.BranchID, fileID, model.ChangeDelete, pending.PreviousHash, "", now); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE working_files SET is_deleted = TRUE, updated_at = ? WHERE id = ?", now, fileID)
	if err != nil {
		return fmt.Errorf("marking working file deleted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindWorkingFileByID(id string) (*model.WorkingFile, error) {
	file, err := scanWorkingFile(s.db.QueryRow(
		"SELECT "+fileColumns+" FROM working_files WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding working file by id: %w", err)
	}
	return file, nil
}

func (s *SQLiteStore) FindWorkingFileByName(branchID, folderID, name string) (*model.WorkingFile, error) {
	file, err := scanWorkingFile(s.db.QueryRow(
		"SELECT "+fileColumns+" FROM working_files WHERE branch_id = ? AND folder_id = ? AND name = ?",
		branchID, folderID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding working file by name: %w", err)
	}
	return file, nil
}

func (s *SQLiteStore) ListWorkingTree(branchID, parentID string) ([]*model.WorkingFolder, []*model.WorkingFile, error) {
	folderRows, err := s.db.Query(
		"SELECT id, branch_id, parent_id, name, is_deleted, created_at FROM working_folders WHERE branch_id = ? AND parent_id = ? AND NOT is_deleted ORDER BY name",
		branchID, parentID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing folders: %w", err)
	}
	defer folderRows.Close()

	var folders []*model.WorkingFolder
	for folderRows.Next() {
		var f model.WorkingFolder
		if err := folderRows.Scan(&f.ID, &f.BranchID, &f.ParentID, &f.Name, &f.IsDeleted, &f.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scanning folder: %w", err)
		}
		folders = append(folders, &f)
	}
	if err := folderRows.Err(); err != nil {
		return nil, nil, err
	}

	fileRows, err := s.db.Query(
		"SELECT "+fileColumns+" FROM working_files WHERE branch_id = ? AND folder_id = ? AND NOT is_deleted ORDER BY name",
		branchID, parentID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing files: %w", err)
	}
	defer fileRows.Close()

	var files []*model.WorkingFile
	for fileRows.Next() {
		f, err := scanWorkingFile(fileRows)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning file: %w", err)
		}
		files = append(files, f)
	}
	return folders, files, fileRows.Err()
}

func (s *SQLiteStore) ListPendingChanges(branchID string) ([]*model.PendingChange, error) {
	rows, err := s.db.Query(
		"SELECT "+pendingColumns+" FROM pending_changes WHERE branch_id = ? ORDER BY updated_at, id", branchID)
	if err != nil {
		return nil, fmt.Errorf("listing pending changes: %w", err)
	}
	defer rows.Close()

	var changes []*model.PendingChange
	for rows.Next() {
		c, err := scanPendingChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pending change: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// DiscardPendingChange drops the open pending change and restores the
// working file to its last committed state: reverted content for
// updates and deletes, row removal for never-committed creates.
func (s *SQLiteStore) DiscardPendingChange(branchID, fileID string, now time.Time) error {
	tx, ctx, err := s.begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	pending, err := scanPendingChange(tx.QueryRowContext(ctx,
		"SELECT "+pendingColumns+" FROM pending_changes WHERE branch_id = ? AND file_id = ?",
		branchID, fileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tx.Commit() // nothing to discard
		}
		return fmt.Errorf("finding pending change: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pending_changes WHERE id = ?", pending.ID); err != nil {
		return fmt.Errorf("deleting pending change: %w", err)
	}

	if pending.ChangeType == model.ChangeCreate {
		if _, err := tx.ExecContext(ctx, "DELETE FROM working_files WHERE id = ?", fileID); err != nil {
			return fmt.Errorf("deleting working file: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	}

	// Restore committed content from the snapshot matching the pending
	// change's previous hash.
	var content []byte
	err = tx.QueryRowContext(ctx,
		"SELECT content FROM file_snapshots WHERE file_id = ? AND content_hash = ? ORDER BY created_at DESC LIMIT 1",
		fileID, pending.PreviousHash).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no snapshot with hash %s for file %s: %w", pending.PreviousHash, fileID, vc.ErrNotFound)
		}
		return fmt.Errorf("loading snapshot content: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE working_files SET content = ?, content_hash = ?, is_deleted = FALSE, updated_at = ? WHERE id = ?",
		content, pending.PreviousHash, now, fileID)
	if err != nil {
		return fmt.Errorf("restoring working file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
