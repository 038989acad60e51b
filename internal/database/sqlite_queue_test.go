package database

import (
	"errors"
	"testing"
	"time"

	"flowvc/internal/model"
	"flowvc/internal/vc"
)

var qNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seedCommit creates a synced project with one committed file and
// returns the project, branch and commit. The commit transaction
// enqueues a push entry.
func seedCommit(t *testing.T, store *SQLiteStore) (*model.Project, *model.Branch, *model.Commit) {
	t.Helper()
	project, branch := seedProject(t, store, "orders", true)
	putFile(t, store, branch.ID, "flow.bpmn", "v1")
	commit := commitBranch(t, store, branch.ID)
	return project, branch, commit
}

func queuedEntry(t *testing.T, store *SQLiteStore) *model.PushQueueEntry {
	t.Helper()
	entries, err := store.ListPushEntries("", "", 0)
	if err != nil {
		t.Fatalf("ListPushEntries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	return entries[0]
}

func TestSQLiteStore_EnqueuePush(t *testing.T) {
	t.Run("enqueueing the same commit twice returns the existing entry", func(t *testing.T) {
		store := newTestStore(t)
		project, _, commit := seedCommit(t, store)

		existing := queuedEntry(t, store)
		again, err := store.EnqueuePush(project.ID, commit.ID, 5, qNow)
		if err != nil {
			t.Fatalf("EnqueuePush() error = %v", err)
		}
		if again.ID != existing.ID {
			t.Errorf("EnqueuePush() created new entry %s, want %s", again.ID, existing.ID)
		}
	})
}

func TestSQLiteStore_DequeuePush(t *testing.T) {
	t.Run("claims the oldest pending entry", func(t *testing.T) {
		store := newTestStore(t)
		seedCommit(t, store)

		entry, err := store.DequeuePush(qNow)
		if err != nil {
			t.Fatalf("DequeuePush() error = %v", err)
		}
		if entry == nil {
			t.Fatal("DequeuePush() = nil, want entry")
		}
		if entry.Status != model.PushStatusInProgress {
			t.Errorf("Status = %q, want in_progress", entry.Status)
		}
		if entry.LastAttemptAt == nil {
			t.Error("LastAttemptAt not set")
		}
	})

	t.Run("empty queue returns nil", func(t *testing.T) {
		store := newTestStore(t)

		entry, err := store.DequeuePush(qNow)
		if err != nil {
			t.Fatalf("DequeuePush() error = %v", err)
		}
		if entry != nil {
			t.Errorf("DequeuePush() = %v, want nil", entry)
		}
	})

	t.Run("succeeded entries are never claimed", func(t *testing.T) {
		store := newTestStore(t)
		seedCommit(t, store)

		entry, _ := store.DequeuePush(qNow)
		if err := store.CompletePush(entry.ID, qNow); err != nil {
			t.Fatalf("CompletePush() error = %v", err)
		}

		again, err := store.DequeuePush(qNow)
		if err != nil {
			t.Fatalf("second DequeuePush() error = %v", err)
		}
		if again != nil {
			t.Errorf("DequeuePush() = %v, want nil after success", again)
		}
	})
}

func TestSQLiteStore_CompletePush(t *testing.T) {
	t.Run("marks succeeded and records the push in sync state", func(t *testing.T) {
		store := newTestStore(t)
		_, branch, commit := seedCommit(t, store)

		entry, _ := store.DequeuePush(qNow)
		if err := store.CompletePush(entry.ID, qNow); err != nil {
			t.Fatalf("CompletePush() error = %v", err)
		}

		updated, _ := store.FindPushEntry(entry.ID)
		if updated.Status != model.PushStatusSucceeded {
			t.Errorf("Status = %q, want succeeded", updated.Status)
		}

		state, err := store.GetSyncState(branch.ID)
		if err != nil {
			t.Fatalf("GetSyncState() error = %v", err)
		}
		if state == nil {
			t.Fatal("GetSyncState() = nil, want state")
		}
		if state.LastPushCommitID != commit.ID {
			t.Errorf("LastPushCommitID = %q, want %q", state.LastPushCommitID, commit.ID)
		}
		if state.SyncStatus != model.SyncStatusSynced {
			t.Errorf("SyncStatus = %q, want synced", state.SyncStatus)
		}
	})

	t.Run("completing twice is a no-op", func(t *testing.T) {
		store := newTestStore(t)
		seedCommit(t, store)

		entry, _ := store.DequeuePush(qNow)
		if err := store.CompletePush(entry.ID, qNow); err != nil {
			t.Fatalf("first CompletePush() error = %v", err)
		}
		if err := store.CompletePush(entry.ID, qNow); err != nil {
			t.Errorf("second CompletePush() error = %v, want nil", err)
		}
	})

	t.Run("push after an earlier pull reports synced", func(t *testing.T) {
		store := newTestStore(t)
		_, branch, commit := seedCommit(t, store)

		entry, _ := store.DequeuePush(qNow)
		if err := store.CompletePush(entry.ID, qNow); err != nil {
			t.Fatalf("CompletePush() error = %v", err)
		}
		if _, err := store.RecordPull(branch.ID, commit.ID, qNow); err != nil {
			t.Fatalf("RecordPull() error = %v", err)
		}

		// A new local commit pushed after the pull must supersede the
		// remote tip the pull observed.
		putFile(t, store, branch.ID, "flow.bpmn", "v2")
		second := commitBranch(t, store, branch.ID)

		entry, _ = store.DequeuePush(qNow)
		if err := store.CompletePush(entry.ID, qNow); err != nil {
			t.Fatalf("second CompletePush() error = %v", err)
		}

		state, _ := store.GetSyncState(branch.ID)
		if state.SyncStatus != model.SyncStatusSynced {
			t.Errorf("SyncStatus = %q, want synced", state.SyncStatus)
		}
		if state.LastPullCommitID != second.ID {
			t.Errorf("LastPullCommitID = %q, want %q", state.LastPullCommitID, second.ID)
		}
	})

	t.Run("stale push leaves the branch ahead", func(t *testing.T) {
		store := newTestStore(t)
		_, branch, _ := seedCommit(t, store)

		entry, _ := store.DequeuePush(qNow)

		// A second commit lands while the first is in flight.
		putFile(t, store, branch.ID, "flow.bpmn", "v2")
		commitBranch(t, store, branch.ID)

		if err := store.CompletePush(entry.ID, qNow); err != nil {
			t.Fatalf("CompletePush() error = %v", err)
		}

		state, _ := store.GetSyncState(branch.ID)
		if state.SyncStatus != model.SyncStatusAhead {
			t.Errorf("SyncStatus = %q, want ahead", state.SyncStatus)
		}
	})
}

func TestSQLiteStore_RecordPushFailure(t *testing.T) {
	t.Run("requeues while attempts remain", func(t *testing.T) {
		store := newTestStore(t)
		seedCommit(t, store)

		entry, _ := store.DequeuePush(qNow)
		updated, err := store.RecordPushFailure(entry.ID, "connection refused", qNow)
		if err != nil {
			t.Fatalf("RecordPushFailure() error = %v", err)
		}
		if updated.Status != model.PushStatusPending {
			t.Errorf("Status = %q, want pending", updated.Status)
		}
		if updated.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", updated.Attempts)
		}
		if updated.LastError != "connection refused" {
			t.Errorf("LastError = %q, want connection refused", updated.LastError)
		}
	})

	t.Run("fails terminally once the budget is spent", func(t *testing.T) {
		store := newTestStore(t)
		seedCommit(t, store)

		var last *model.PushQueueEntry
		for i := 0; i < 5; i++ {
			entry, err := store.DequeuePush(qNow)
			if err != nil || entry == nil {
				t.Fatalf("DequeuePush() attempt %d: entry=%v err=%v", i+1, entry, err)
			}
			last, err = store.RecordPushFailure(entry.ID, "auth failed", qNow)
			if err != nil {
				t.Fatalf("RecordPushFailure() attempt %d error = %v", i+1, err)
			}
		}

		if last.Status != model.PushStatusFailed {
			t.Errorf("Status = %q, want failed after 5 attempts", last.Status)
		}

		// Terminal entries are not claimed again.
		again, _ := store.DequeuePush(qNow)
		if again != nil {
			t.Errorf("DequeuePush() = %v, want nil for failed entry", again)
		}
	})
}

func TestSQLiteStore_ReenqueuePush(t *testing.T) {
	t.Run("resets a failed entry", func(t *testing.T) {
		store := newTestStore(t)
		seedCommit(t, store)

		var entryID string
		for i := 0; i < 5; i++ {
			entry, _ := store.DequeuePush(qNow)
			entryID = entry.ID
			store.RecordPushFailure(entry.ID, "auth failed", qNow)
		}

		reset, err := store.ReenqueuePush(entryID, qNow)
		if err != nil {
			t.Fatalf("ReenqueuePush() error = %v", err)
		}
		if reset.Status != model.PushStatusPending {
			t.Errorf("Status = %q, want pending", reset.Status)
		}
		if reset.Attempts != 0 {
			t.Errorf("Attempts = %d, want 0", reset.Attempts)
		}
		if reset.LastError != "" {
			t.Errorf("LastError = %q, want empty", reset.LastError)
		}
	})

	t.Run("rejects non-failed entries", func(t *testing.T) {
		store := newTestStore(t)
		seedCommit(t, store)

		entry := queuedEntry(t, store)
		if _, err := store.ReenqueuePush(entry.ID, qNow); err == nil {
			t.Error("ReenqueuePush() expected error for pending entry")
		}
	})
}

func TestSQLiteStore_RecordPull(t *testing.T) {
	t.Run("remote ahead classifies as behind", func(t *testing.T) {
		store := newTestStore(t)
		_, branch, commit := seedCommit(t, store)

		entry, _ := store.DequeuePush(qNow)
		store.CompletePush(entry.ID, qNow)

		state, err := store.RecordPull(branch.ID, "remote-abc", qNow)
		if err != nil {
			t.Fatalf("RecordPull() error = %v", err)
		}
		if state.LastPullCommitID != "remote-abc" {
			t.Errorf("LastPullCommitID = %q, want remote-abc", state.LastPullCommitID)
		}
		if state.SyncStatus != model.SyncStatusBehind {
			t.Errorf("SyncStatus = %q, want behind", state.SyncStatus)
		}

		// Pull matching the pushed commit flips back to synced.
		state, err = store.RecordPull(branch.ID, commit.ID, qNow)
		if err != nil {
			t.Fatalf("second RecordPull() error = %v", err)
		}
		if state.SyncStatus != model.SyncStatusSynced {
			t.Errorf("SyncStatus = %q, want synced", state.SyncStatus)
		}
	})

	t.Run("both sides ahead classifies as diverged", func(t *testing.T) {
		store := newTestStore(t)
		_, branch, _ := seedCommit(t, store)

		entry, _ := store.DequeuePush(qNow)
		store.CompletePush(entry.ID, qNow)

		// Local commit the remote has not seen.
		putFile(t, store, branch.ID, "flow.bpmn", "v2")
		commitBranch(t, store, branch.ID)

		state, err := store.RecordPull(branch.ID, "remote-abc", qNow)
		if err != nil {
			t.Fatalf("RecordPull() error = %v", err)
		}
		if state.SyncStatus != model.SyncStatusDiverged {
			t.Errorf("SyncStatus = %q, want diverged", state.SyncStatus)
		}
	})

	t.Run("unknown branch", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.RecordPull("nope", "remote-abc", qNow)
		if !errors.Is(err, vc.ErrNotFound) {
			t.Errorf("RecordPull(nope) error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_MarkSyncConflict(t *testing.T) {
	store := newTestStore(t)
	_, branch, _ := seedCommit(t, store)

	if err := store.MarkSyncConflict(branch.ID, qNow); err != nil {
		t.Fatalf("MarkSyncConflict() error = %v", err)
	}

	state, _ := store.GetSyncState(branch.ID)
	if state == nil || state.SyncStatus != model.SyncStatusConflict {
		t.Errorf("state = %v, want conflict", state)
	}
}

func TestSQLiteStore_Operations(t *testing.T) {
	t.Run("create, finish and list", func(t *testing.T) {
		store := newTestStore(t)

		op, err := store.CreateOperation("Commit", "branch-1", qNow)
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		if op.ID == 0 {
			t.Error("ID = 0, want auto-increment ID")
		}

		if err := store.FinishOperation(op.ID, "success", qNow.Add(time.Second)); err != nil {
			t.Fatalf("FinishOperation() error = %v", err)
		}

		ops, err := store.ListOperations(10)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 1 {
			t.Fatalf("len(ops) = %d, want 1", len(ops))
		}
		if ops[0].Status != "success" {
			t.Errorf("Status = %q, want success", ops[0].Status)
		}
		if ops[0].FinishedAt == nil {
			t.Error("FinishedAt not set")
		}
	})

	t.Run("list is newest first and limited", func(t *testing.T) {
		store := newTestStore(t)

		store.CreateOperation("A", "", qNow)
		store.CreateOperation("B", "", qNow)
		store.CreateOperation("C", "", qNow)

		ops, _ := store.ListOperations(2)
		if len(ops) != 2 {
			t.Fatalf("len(ops) = %d, want 2", len(ops))
		}
		if ops[0].Operation != "C" || ops[1].Operation != "B" {
			t.Errorf("ops = [%s, %s], want [C, B]", ops[0].Operation, ops[1].Operation)
		}
	})
}
