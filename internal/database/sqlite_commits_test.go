package database

import (
	"errors"
	"fmt"
	"testing"

	"flowvc/internal/model"
	"flowvc/internal/vc"
)

// seqIDGen hands out predictable IDs so tests can pre-place rows that
// collide with a specific insert.
type seqIDGen struct{ n int }

func (g *seqIDGen) New() string {
	g.n++
	return fmt.Sprintf("seq-%d", g.n)
}

func TestSQLiteStore_CreateCommit(t *testing.T) {
	t.Run("commits pending changes and advances the head", func(t *testing.T) {
		store := newTestStore(t)
		_, branch := seedProject(t, store, "orders", false)

		fileA := putFile(t, store, branch.ID, "a.bpmn", "a1")
		fileB := putFile(t, store, branch.ID, "b.dmn", "b1")

		commit, err := store.CreateCommit(branch.ID, "alice", "initial", 5, wtNow)
		if err != nil {
			t.Fatalf("CreateCommit() error = %v", err)
		}
		if commit.ParentCommitID != "" {
			t.Errorf("ParentCommitID = %q, want empty for first commit", commit.ParentCommitID)
		}

		updated, _ := store.FindBranchByID(branch.ID)
		if updated.HeadCommitID != commit.ID {
			t.Errorf("HeadCommitID = %q, want %q", updated.HeadCommitID, commit.ID)
		}

		changes, _ := store.ListPendingChanges(branch.ID)
		if len(changes) != 0 {
			t.Errorf("len(changes) = %d, want 0 after commit", len(changes))
		}

		payload, _, err := store.LoadCommitPayload(commit.ID)
		if err != nil {
			t.Fatalf("LoadCommitPayload() error = %v", err)
		}
		if len(payload.Snapshots) != 2 {
			t.Fatalf("len(Snapshots) = %d, want 2", len(payload.Snapshots))
		}

		for _, fileID := range []string{fileA.ID, fileB.ID} {
			history, err := store.FileHistory(fileID)
			if err != nil {
				t.Fatalf("FileHistory(%s) error = %v", fileID, err)
			}
			if len(history) != 1 || history[0].VersionNumber != 1 {
				t.Errorf("FileHistory(%s) = %v, want one v1 entry", fileID, history)
			}
		}
	})

	t.Run("empty branch returns ErrNoChanges", func(t *testing.T) {
		store := newTestStore(t)
		_, branch := seedProject(t, store, "orders", false)

		_, err := store.CreateCommit(branch.ID, "alice", "nothing", 5, wtNow)
		if !errors.Is(err, vc.ErrNoChanges) {
			t.Errorf("CreateCommit() error = %v, want ErrNoChanges", err)
		}
	})

	t.Run("unknown branch", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.CreateCommit("nope", "alice", "msg", 5, wtNow)
		if !errors.Is(err, vc.ErrNotFound) {
			t.Errorf("CreateCommit(nope) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("versions increase per file across commits", func(t *testing.T) {
		store := newTestStore(t)
		_, branch := seedProject(t, store, "orders", false)

		file := putFile(t, store, branch.ID, "a.bpmn", "a1")
		first := commitBranch(t, store, branch.ID)

		putFile(t, store, branch.ID, "a.bpmn", "a2")
		second := commitBranch(t, store, branch.ID)

		if second.ParentCommitID != first.ID {
			t.Errorf("ParentCommitID = %q, want %q", second.ParentCommitID, first.ID)
		}

		history, err := store.FileHistory(file.ID)
		if err != nil {
			t.Fatalf("FileHistory() error = %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("len(history) = %d, want 2", len(history))
		}
		// Newest first.
		if history[0].VersionNumber != 2 || history[1].VersionNumber != 1 {
			t.Errorf("versions = [%d, %d], want [2, 1]", history[0].VersionNumber, history[1].VersionNumber)
		}
		if history[0].CommitID != second.ID {
			t.Errorf("newest entry commit = %q, want %q", history[0].CommitID, second.ID)
		}
	})

	t.Run("delete is committed as a delete snapshot", func(t *testing.T) {
		store := newTestStore(t)
		_, branch := seedProject(t, store, "orders", false)

		file := putFile(t, store, branch.ID, "a.bpmn", "a1")
		commitBranch(t, store, branch.ID)

		if err := store.SoftDeleteWorkingFile(file.ID, wtNow); err != nil {
			t.Fatalf("SoftDeleteWorkingFile() error = %v", err)
		}
		commit := commitBranch(t, store, branch.ID)

		payload, _, err := store.LoadCommitPayload(commit.ID)
		if err != nil {
			t.Fatalf("LoadCommitPayload() error = %v", err)
		}
		if len(payload.Snapshots) != 1 {
			t.Fatalf("len(Snapshots) = %d, want 1", len(payload.Snapshots))
		}
		if payload.Snapshots[0].ChangeType != model.ChangeDelete {
			t.Errorf("ChangeType = %q, want delete", payload.Snapshots[0].ChangeType)
		}
	})

	t.Run("enqueues a push for sync-enabled projects", func(t *testing.T) {
		store := newTestStore(t)
		_, branch := seedProject(t, store, "orders", true)

		putFile(t, store, branch.ID, "a.bpmn", "a1")
		commit := commitBranch(t, store, branch.ID)

		entries, err := store.ListPushEntries("", "", 0)
		if err != nil {
			t.Fatalf("ListPushEntries() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("len(entries) = %d, want 1", len(entries))
		}
		if entries[0].CommitID != commit.ID {
			t.Errorf("CommitID = %q, want %q", entries[0].CommitID, commit.ID)
		}
		if entries[0].Status != model.PushStatusPending {
			t.Errorf("Status = %q, want pending", entries[0].Status)
		}
	})

	t.Run("no push entry when sync is disabled", func(t *testing.T) {
		store := newTestStore(t)
		_, branch := seedProject(t, store, "orders", false)

		putFile(t, store, branch.ID, "a.bpmn", "a1")
		commitBranch(t, store, branch.ID)

		entries, _ := store.ListPushEntries("", "", 0)
		if len(entries) != 0 {
			t.Errorf("len(entries) = %d, want 0", len(entries))
		}
	})

	t.Run("failure rolls back the whole commit", func(t *testing.T) {
		gen := &seqIDGen{}
		store, err := NewSQLiteStore(":memory:", nil, gen)
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		t.Cleanup(func() { store.Close() })
		if err := store.MigrateUp(); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}

		project, branch := seedProject(t, store, "orders", false)
		file := putFile(t, store, branch.ID, "a.bpmn", "a1")

		// CreateCommit draws three IDs in order: commit, snapshot, ledger
		// row. Seed a ledger row under the third one so the transaction
		// writes the commit and the snapshot, then aborts on the ledger
		// insert.
		_, err = store.db.Exec(
			"INSERT INTO commits (id, project_id, branch_id, author_id, message, created_at) VALUES ('ghost', ?, ?, 'alice', 'seed', ?)",
			project.ID, branch.ID, wtNow)
		if err != nil {
			t.Fatalf("seeding ghost commit: %v", err)
		}
		ledgerID := fmt.Sprintf("seq-%d", gen.n+3)
		_, err = store.db.Exec(
			"INSERT INTO file_commit_versions (id, file_id, commit_id, version_number) VALUES (?, ?, 'ghost', 99)",
			ledgerID, file.ID)
		if err != nil {
			t.Fatalf("seeding ledger row: %v", err)
		}

		_, err = store.CreateCommit(branch.ID, "alice", "doomed", 5, wtNow)
		if err == nil {
			t.Fatal("CreateCommit() expected error from ledger conflict")
		}

		// Nothing from the failed commit may remain.
		updated, _ := store.FindBranchByID(branch.ID)
		if updated.HeadCommitID != "" {
			t.Errorf("HeadCommitID = %q, want empty after rollback", updated.HeadCommitID)
		}
		changes, _ := store.ListPendingChanges(branch.ID)
		if len(changes) != 1 {
			t.Errorf("len(changes) = %d, want 1 after rollback", len(changes))
		}
		var commits int
		store.db.QueryRow("SELECT COUNT(*) FROM commits").Scan(&commits)
		if commits != 1 {
			t.Errorf("commits = %d, want only the seeded row after rollback", commits)
		}
		var snapshots int
		store.db.QueryRow("SELECT COUNT(*) FROM file_snapshots").Scan(&snapshots)
		if snapshots != 0 {
			t.Errorf("snapshots = %d, want 0 after rollback", snapshots)
		}
	})
}

func TestSQLiteStore_FindCommitByID(t *testing.T) {
	store := newTestStore(t)
	_, branch := seedProject(t, store, "orders", false)

	putFile(t, store, branch.ID, "a.bpmn", "a1")
	commit := commitBranch(t, store, branch.ID)

	found, err := store.FindCommitByID(commit.ID)
	if err != nil {
		t.Fatalf("FindCommitByID() error = %v", err)
	}
	if found == nil || found.Message != "checkpoint" {
		t.Errorf("FindCommitByID() = %v, want message checkpoint", found)
	}

	missing, err := store.FindCommitByID("nope")
	if err != nil {
		t.Fatalf("FindCommitByID(nope) error = %v", err)
	}
	if missing != nil {
		t.Errorf("FindCommitByID(nope) = %v, want nil", missing)
	}
}
