package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flowvc/internal/database/migrations"
	"flowvc/internal/model"
	"flowvc/internal/vc"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the vc.Store interface using SQLite. All
// multi-row operations run inside a transaction; SQLite's single-writer
// model serializes them, which is what enforces the engine's cross-row
// invariants (lock uniqueness, version monotonicity, commit atomicity).
type SQLiteStore struct {
	db    *sql.DB
	path  string
	clock vc.Clock
	idgen vc.IDGenerator
}

// NewSQLiteStore creates a new SQLite-backed store.
// path can be a file path or ":memory:" for an in-memory database.
// clock and idgen may be nil, in which case real implementations are used.
func NewSQLiteStore(path string, clock vc.Clock, idgen vc.IDGenerator) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if clock == nil {
		clock = vc.RealClock{}
	}
	if idgen == nil {
		idgen = vc.UUIDGenerator{}
	}

	return &SQLiteStore{
		db:    db,
		path:  path,
		clock: clock,
		idgen: idgen,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Multiple server processes may share the file; wait for writer locks
	// instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp brings the database schema to the latest version.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// begin starts a transaction with rollback-on-error semantics. Callers
// must defer tx.Rollback() and Commit explicitly.
func (s *SQLiteStore) begin() (*sql.Tx, context.Context, error) {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, ctx, nil
}

// nullTime converts an optional time to its SQL representation.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr converts a SQL nullable time back to an optional time.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// Project operations

const projectColumns = "id, name, repo_url, remote_branch, sync_enabled, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (*model.Project, error) {
	var p model.Project
	err := r.Scan(&p.ID, &p.Name, &p.RepoURL, &p.RemoteBranch, &p.SyncEnabled, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) CreateProject(name, repoURL, remoteBranch string, syncEnabled bool) (*model.Project, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := s.clock.Now()
	project := &model.Project{
		ID:           s.idgen.New(),
		Name:         name,
		RepoURL:      repoURL,
		RemoteBranch: remoteBranch,
		SyncEnabled:  syncEnabled,
		CreatedAt:    now,
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO projects (id, name, repo_url, remote_branch, sync_enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		project.ID, project.Name, project.RepoURL, project.RemoteBranch, project.SyncEnabled, project.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting project: %w", err)
	}

	// Every project starts with a default branch.
	_, err = tx.ExecContext(ctx,
		"INSERT INTO branches (id, project_id, user_id, name, base_commit_id, head_commit_id, is_default, created_at) VALUES (?, ?, '', 'main', '', '', TRUE, ?)",
		s.idgen.New(), project.ID, now)
	if err != nil {
		return nil, fmt.Errorf("inserting default branch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return project, nil
}

func (s *SQLiteStore) FindProjectByID(id string) (*model.Project, error) {
	project, err := scanProject(s.db.QueryRow(
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding project by id: %w", err)
	}
	return project, nil
}

func (s *SQLiteStore) FindProjectByName(name string) (*model.Project, error) {
	project, err := scanProject(s.db.QueryRow(
		"SELECT "+projectColumns+" FROM projects WHERE name = ?", name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding project by name: %w", err)
	}
	return project, nil
}

func (s *SQLiteStore) ListProjects() ([]*model.Project, error) {
	rows, err := s.db.Query("SELECT " + projectColumns + " FROM projects ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Branch operations

const branchColumns = "id, project_id, user_id, name, base_commit_id, head_commit_id, is_default, created_at"

func scanBranch(r rowScanner) (*model.Branch, error) {
	var b model.Branch
	err := r.Scan(&b.ID, &b.ProjectID, &b.UserID, &b.Name, &b.BaseCommitID, &b.HeadCommitID, &b.IsDefault, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *SQLiteStore) CreateBranch(projectID, userID, name, baseCommitID string) (*model.Branch, error) {
	branch := &model.Branch{
		ID:           s.idgen.New(),
		ProjectID:    projectID,
		UserID:       userID,
		Name:         name,
		BaseCommitID: baseCommitID,
		CreatedAt:    s.clock.Now(),
	}

	_, err := s.db.Exec(
		"INSERT INTO branches (id, project_id, user_id, name, base_commit_id, head_commit_id, is_default, created_at) VALUES (?, ?, ?, ?, ?, ?, FALSE, ?)",
		branch.ID, branch.ProjectID, branch.UserID, branch.Name, branch.BaseCommitID, branch.HeadCommitID, branch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting branch: %w", err)
	}
	return branch, nil
}

func (s *SQLiteStore) GetOrCreateUserBranch(projectID, userID string) (*model.Branch, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := scanBranch(tx.QueryRowContext(ctx,
		"SELECT "+branchColumns+" FROM branches WHERE project_id = ? AND user_id = ?", projectID, userID))
	if err == nil {
		return existing, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding user branch: %w", err)
	}

	// Fork from the default branch's current head.
	def, err := scanBranch(tx.QueryRowContext(ctx,
		"SELECT "+branchColumns+" FROM branches WHERE project_id = ? AND is_default", projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s has no default branch: %w", projectID, vc.ErrNotFound)
		}
		return nil, fmt.Errorf("finding default branch: %w", err)
	}

	branch := &model.Branch{
		ID:           s.idgen.New(),
		ProjectID:    projectID,
		UserID:       userID,
		Name:         "user/" + userID,
		BaseCommitID: def.HeadCommitID,
		HeadCommitID: def.HeadCommitID,
		CreatedAt:    s.clock.Now(),
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO branches (id, project_id, user_id, name, base_commit_id, head_commit_id, is_default, created_at) VALUES (?, ?, ?, ?, ?, ?, FALSE, ?)",
		branch.ID, branch.ProjectID, branch.UserID, branch.Name, branch.BaseCommitID, branch.HeadCommitID, branch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting user branch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return branch, nil
}

func (s *SQLiteStore) FindBranchByID(id string) (*model.Branch, error) {
	branch, err := scanBranch(s.db.QueryRow(
		"SELECT "+branchColumns+" FROM branches WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding branch by id: %w", err)
	}
	return branch, nil
}

func (s *SQLiteStore) ListBranches(projectID string) ([]*model.Branch, error) {
	rows, err := s.db.Query(
		"SELECT "+branchColumns+" FROM branches WHERE project_id = ? ORDER BY created_at", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	defer rows.Close()

	var branches []*model.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning branch: %w", err)
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// Lock operations

const lockColumns = "id, file_id, user_id, acquired_at, expires_at, heartbeat_at, released"

func scanLock(r rowScanner) (*model.GitLock, error) {
	var l model.GitLock
	err := r.Scan(&l.ID, &l.FileID, &l.UserID, &l.AcquiredAt, &l.ExpiresAt, &l.HeartbeatAt, &l.Released)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteStore) AcquireLock(fileID, userID string, now, expires time.Time) (*model.GitLock, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := scanLock(tx.QueryRowContext(ctx,
		"SELECT "+lockColumns+" FROM git_locks WHERE file_id = ? AND NOT released", fileID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding current lock: %w", err)
	}

	if current != nil {
		active := current.ExpiresAt.After(now)

		if active && current.UserID != userID {
			return nil, vc.ErrLockHeld
		}

		if active {
			// Same owner re-acquiring: renew the lease.
			_, err = tx.ExecContext(ctx,
				"UPDATE git_locks SET expires_at = ?, heartbeat_at = ? WHERE id = ?",
				expires, now, current.ID)
			if err != nil {
				return nil, fmt.Errorf("renewing lock: %w", err)
			}
			current.ExpiresAt = expires
			current.HeartbeatAt = now

			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("committing transaction: %w", err)
			}
			return current, nil
		}

		// Lapsed lease: retire the row so the old lock ID can no longer
		// be heartbeated, then grant a fresh lease below.
		_, err = tx.ExecContext(ctx, "UPDATE git_locks SET released = TRUE WHERE id = ?", current.ID)
		if err != nil {
			return nil, fmt.Errorf("retiring expired lock: %w", err)
		}
	}

	lock := &model.GitLock{
		ID:          s.idgen.New(),
		FileID:      fileID,
		UserID:      userID,
		AcquiredAt:  now,
		ExpiresAt:   expires,
		HeartbeatAt: now,
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO git_locks (id, file_id, user_id, acquired_at, expires_at, heartbeat_at, released) VALUES (?, ?, ?, ?, ?, ?, FALSE)",
		lock.ID, lock.FileID, lock.UserID, lock.AcquiredAt, lock.ExpiresAt, lock.HeartbeatAt)
	if err != nil {
		return nil, fmt.Errorf("inserting lock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return lock, nil
}

func (s *SQLiteStore) HeartbeatLock(lockID, userID string, now, expires time.Time) (*model.GitLock, error) {
	tx, ctx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lock, err := scanLock(tx.QueryRowContext(ctx,
		"SELECT "+lockColumns+" FROM git_locks WHERE id = ?", lockID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lock %s: %w", lockID, vc.ErrNotFound)
		}
		return nil, fmt.Errorf("finding lock: %w", err)
	}

	if lock.UserID != userID {
		return nil, vc.ErrLockForbidden
	}
	if lock.Released || !lock.ExpiresAt.After(now) {
		return nil, vc.ErrLockExpired
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE git_locks SET expires_at = ?, heartbeat_at = ? WHERE id = ?",
		expires, now, lockID)
	if err != nil {
		return nil, fmt.Errorf("updating lock: %w", err)
	}

	lock.ExpiresAt = expires
	lock.HeartbeatAt = now

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return lock, nil
}

func (s *SQLiteStore) ReleaseLock(lockID, userID string, now time.Time) error {
	tx, ctx, err := s.begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lock, err := scanLock(tx.QueryRowContext(ctx,
		"SELECT "+lockColumns+" FROM git_locks WHERE id = ?", lockID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock %s: %w", lockID, vc.ErrNotFound)
		}
		return fmt.Errorf("finding lock: %w", err)
	}

	// Releasing an already-released or expired lock is a no-op success.
	if lock.Released || !lock.ExpiresAt.After(now) {
		return tx.Commit()
	}

	if lock.UserID != userID {
		return vc.ErrLockForbidden
	}

	if _, err := tx.ExecContext(ctx, "UPDATE git_locks SET released = TRUE WHERE id = ?", lockID); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindActiveLock(fileID string, now time.Time) (*model.GitLock, error) {
	lock, err := scanLock(s.db.QueryRow(
		"SELECT "+lockColumns+" FROM git_locks WHERE file_id = ? AND NOT released AND expires_at > ?",
		fileID, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // File is free
		}
		return nil, fmt.Errorf("finding active lock: %w", err)
	}
	return lock, nil
}

func (s *SQLiteStore) PurgeLocks(before time.Time) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM git_locks WHERE released OR expires_at <= ?", before)
	if err != nil {
		return 0, fmt.Errorf("purging locks: %w", err)
	}
	return res.RowsAffected()
}

// Compile-time check that SQLiteStore implements the vc.Store interface
var _ vc.Store = (*SQLiteStore)(nil)
