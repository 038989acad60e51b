package database

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"flowvc/internal/model"
	"flowvc/internal/vc"
)

// newTestStore creates a new in-memory store with migrations applied.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:", nil, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := store.MigrateUp(); err != nil {
		store.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// seedProject creates a project and returns it with its default branch.
func seedProject(t *testing.T, store *SQLiteStore, name string, syncEnabled bool) (*model.Project, *model.Branch) {
	t.Helper()

	repoURL := ""
	if syncEnabled {
		repoURL = "https://example.com/" + name + ".git"
	}
	project, err := store.CreateProject(name, repoURL, "main", syncEnabled)
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	branches, err := store.ListBranches(project.ID)
	if err != nil {
		t.Fatalf("ListBranches() error = %v", err)
	}
	for _, b := range branches {
		if b.IsDefault {
			return project, b
		}
	}
	t.Fatalf("project %s has no default branch", name)
	return nil, nil
}

func TestSQLiteStore_CreateProject(t *testing.T) {
	t.Run("creates project with default branch", func(t *testing.T) {
		store := newTestStore(t)

		project, err := store.CreateProject("orders", "https://example.com/orders.git", "main", true)
		if err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}
		if project.ID == "" {
			t.Error("ID is empty")
		}
		if !project.SyncEnabled {
			t.Error("SyncEnabled = false, want true")
		}

		branches, err := store.ListBranches(project.ID)
		if err != nil {
			t.Fatalf("ListBranches() error = %v", err)
		}
		if len(branches) != 1 {
			t.Fatalf("len(branches) = %d, want 1", len(branches))
		}
		if !branches[0].IsDefault {
			t.Error("default branch not marked as default")
		}
		if branches[0].Name != "main" {
			t.Errorf("default branch name = %q, want main", branches[0].Name)
		}
	})

	t.Run("fails on duplicate name", func(t *testing.T) {
		store := newTestStore(t)

		if _, err := store.CreateProject("orders", "", "", false); err != nil {
			t.Fatalf("first CreateProject() error = %v", err)
		}
		if _, err := store.CreateProject("orders", "", "", false); err == nil {
			t.Error("second CreateProject() expected error for duplicate name")
		}
	})

	t.Run("find by name", func(t *testing.T) {
		store := newTestStore(t)
		created, _ := seedProject(t, store, "orders", false)

		found, err := store.FindProjectByName("orders")
		if err != nil {
			t.Fatalf("FindProjectByName() error = %v", err)
		}
		if found == nil || found.ID != created.ID {
			t.Errorf("FindProjectByName() = %v, want %v", found, created)
		}

		missing, err := store.FindProjectByName("nope")
		if err != nil {
			t.Fatalf("FindProjectByName() error = %v", err)
		}
		if missing != nil {
			t.Errorf("FindProjectByName(nope) = %v, want nil", missing)
		}
	})
}

func TestSQLiteStore_GetOrCreateUserBranch(t *testing.T) {
	t.Run("creates branch forked from default head", func(t *testing.T) {
		store := newTestStore(t)
		project, _ := seedProject(t, store, "orders", false)

		branch, err := store.GetOrCreateUserBranch(project.ID, "alice")
		if err != nil {
			t.Fatalf("GetOrCreateUserBranch() error = %v", err)
		}
		if branch.Name != "user/alice" {
			t.Errorf("Name = %q, want user/alice", branch.Name)
		}
		if branch.IsDefault {
			t.Error("user branch marked as default")
		}
	})

	t.Run("returns existing branch on second call", func(t *testing.T) {
		store := newTestStore(t)
		project, _ := seedProject(t, store, "orders", false)

		first, err := store.GetOrCreateUserBranch(project.ID, "alice")
		if err != nil {
			t.Fatalf("first GetOrCreateUserBranch() error = %v", err)
		}
		second, err := store.GetOrCreateUserBranch(project.ID, "alice")
		if err != nil {
			t.Fatalf("second GetOrCreateUserBranch() error = %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("second call created new branch %s, want %s", second.ID, first.ID)
		}
	})

	t.Run("different users get different branches", func(t *testing.T) {
		store := newTestStore(t)
		project, _ := seedProject(t, store, "orders", false)

		alice, _ := store.GetOrCreateUserBranch(project.ID, "alice")
		bob, _ := store.GetOrCreateUserBranch(project.ID, "bob")
		if alice.ID == bob.ID {
			t.Error("alice and bob share a branch")
		}
	})
}

func TestSQLiteStore_AcquireLock(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	t.Run("acquires free file", func(t *testing.T) {
		store := newTestStore(t)

		lock, err := store.AcquireLock("file-1", "alice", now, now.Add(ttl))
		if err != nil {
			t.Fatalf("AcquireLock() error = %v", err)
		}
		if lock.UserID != "alice" {
			t.Errorf("UserID = %q, want alice", lock.UserID)
		}
		if !lock.ExpiresAt.Equal(now.Add(ttl)) {
			t.Errorf("ExpiresAt = %v, want %v", lock.ExpiresAt, now.Add(ttl))
		}
	})

	t.Run("rejects second user while active", func(t *testing.T) {
		store := newTestStore(t)

		if _, err := store.AcquireLock("file-1", "alice", now, now.Add(ttl)); err != nil {
			t.Fatalf("AcquireLock(alice) error = %v", err)
		}

		_, err := store.AcquireLock("file-1", "bob", now.Add(time.Minute), now.Add(time.Minute+ttl))
		if !errors.Is(err, vc.ErrLockHeld) {
			t.Errorf("AcquireLock(bob) error = %v, want ErrLockHeld", err)
		}
	})

	t.Run("same owner re-acquire renews lease", func(t *testing.T) {
		store := newTestStore(t)

		first, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))
		later := now.Add(2 * time.Minute)
		renewed, err := store.AcquireLock("file-1", "alice", later, later.Add(ttl))
		if err != nil {
			t.Fatalf("re-acquire error = %v", err)
		}
		if renewed.ID != first.ID {
			t.Errorf("re-acquire created new lock %s, want %s", renewed.ID, first.ID)
		}
		if !renewed.ExpiresAt.Equal(later.Add(ttl)) {
			t.Errorf("ExpiresAt = %v, want %v", renewed.ExpiresAt, later.Add(ttl))
		}
	})

	t.Run("exactly one winner under concurrent acquisition", func(t *testing.T) {
		store := newTestStore(t)
		// A single pooled connection keeps every goroutine on the one
		// in-memory database.
		store.db.SetMaxOpenConns(1)

		const users = 8
		results := make(chan error, users)
		var wg sync.WaitGroup
		for i := 0; i < users; i++ {
			userID := fmt.Sprintf("user-%d", i)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.AcquireLock("file-1", userID, now, now.Add(ttl))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var granted, held int
		for err := range results {
			switch {
			case err == nil:
				granted++
			case errors.Is(err, vc.ErrLockHeld):
				held++
			default:
				t.Errorf("AcquireLock() error = %v, want nil or ErrLockHeld", err)
			}
		}
		if granted != 1 {
			t.Errorf("granted = %d, want exactly 1", granted)
		}
		if held != users-1 {
			t.Errorf("held = %d, want %d", held, users-1)
		}
	})

	t.Run("expired lock is taken over", func(t *testing.T) {
		store := newTestStore(t)

		old, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))

		after := now.Add(ttl + time.Second)
		taken, err := store.AcquireLock("file-1", "bob", after, after.Add(ttl))
		if err != nil {
			t.Fatalf("takeover error = %v", err)
		}
		if taken.UserID != "bob" {
			t.Errorf("UserID = %q, want bob", taken.UserID)
		}
		if taken.ID == old.ID {
			t.Error("takeover reused the lapsed lock row")
		}

		// The lapsed lock can no longer be heartbeated.
		_, err = store.HeartbeatLock(old.ID, "alice", after, after.Add(ttl))
		if !errors.Is(err, vc.ErrLockExpired) {
			t.Errorf("HeartbeatLock(old) error = %v, want ErrLockExpired", err)
		}
	})
}

func TestSQLiteStore_HeartbeatLock(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	t.Run("extends active lease", func(t *testing.T) {
		store := newTestStore(t)
		lock, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))

		later := now.Add(4 * time.Minute)
		extended, err := store.HeartbeatLock(lock.ID, "alice", later, later.Add(ttl))
		if err != nil {
			t.Fatalf("HeartbeatLock() error = %v", err)
		}
		if !extended.ExpiresAt.Equal(later.Add(ttl)) {
			t.Errorf("ExpiresAt = %v, want %v", extended.ExpiresAt, later.Add(ttl))
		}
	})

	t.Run("rejects other user", func(t *testing.T) {
		store := newTestStore(t)
		lock, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))

		_, err := store.HeartbeatLock(lock.ID, "bob", now, now.Add(ttl))
		if !errors.Is(err, vc.ErrLockForbidden) {
			t.Errorf("HeartbeatLock(bob) error = %v, want ErrLockForbidden", err)
		}
	})

	t.Run("rejects expired lease", func(t *testing.T) {
		store := newTestStore(t)
		lock, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))

		after := now.Add(ttl + time.Second)
		_, err := store.HeartbeatLock(lock.ID, "alice", after, after.Add(ttl))
		if !errors.Is(err, vc.ErrLockExpired) {
			t.Errorf("HeartbeatLock() error = %v, want ErrLockExpired", err)
		}
	})

	t.Run("unknown lock", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.HeartbeatLock("nope", "alice", now, now.Add(ttl))
		if !errors.Is(err, vc.ErrNotFound) {
			t.Errorf("HeartbeatLock(nope) error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_ReleaseLock(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	t.Run("release frees the file", func(t *testing.T) {
		store := newTestStore(t)
		lock, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))

		if err := store.ReleaseLock(lock.ID, "alice", now); err != nil {
			t.Fatalf("ReleaseLock() error = %v", err)
		}

		active, err := store.FindActiveLock("file-1", now)
		if err != nil {
			t.Fatalf("FindActiveLock() error = %v", err)
		}
		if active != nil {
			t.Errorf("FindActiveLock() = %v, want nil", active)
		}

		// Another user can now acquire.
		if _, err := store.AcquireLock("file-1", "bob", now, now.Add(ttl)); err != nil {
			t.Errorf("AcquireLock(bob) after release error = %v", err)
		}
	})

	t.Run("double release is a no-op", func(t *testing.T) {
		store := newTestStore(t)
		lock, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))

		if err := store.ReleaseLock(lock.ID, "alice", now); err != nil {
			t.Fatalf("first ReleaseLock() error = %v", err)
		}
		if err := store.ReleaseLock(lock.ID, "alice", now); err != nil {
			t.Errorf("second ReleaseLock() error = %v, want nil", err)
		}
	})

	t.Run("releasing expired lock is a no-op", func(t *testing.T) {
		store := newTestStore(t)
		lock, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))

		after := now.Add(ttl + time.Second)
		if err := store.ReleaseLock(lock.ID, "alice", after); err != nil {
			t.Errorf("ReleaseLock(expired) error = %v, want nil", err)
		}
	})

	t.Run("rejects other user's active lock", func(t *testing.T) {
		store := newTestStore(t)
		lock, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))

		err := store.ReleaseLock(lock.ID, "bob", now)
		if !errors.Is(err, vc.ErrLockForbidden) {
			t.Errorf("ReleaseLock(bob) error = %v, want ErrLockForbidden", err)
		}
	})
}

func TestSQLiteStore_FindActiveLock(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	t.Run("expired lock reads as free", func(t *testing.T) {
		store := newTestStore(t)
		store.AcquireLock("file-1", "alice", now, now.Add(ttl))

		active, err := store.FindActiveLock("file-1", now.Add(ttl+time.Second))
		if err != nil {
			t.Fatalf("FindActiveLock() error = %v", err)
		}
		if active != nil {
			t.Errorf("FindActiveLock() = %v, want nil after expiry", active)
		}
	})
}

func TestSQLiteStore_PurgeLocks(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	store := newTestStore(t)

	released, _ := store.AcquireLock("file-1", "alice", now, now.Add(ttl))
	store.ReleaseLock(released.ID, "alice", now)
	store.AcquireLock("file-2", "bob", now, now.Add(ttl)) // expires before purge
	store.AcquireLock("file-3", "carol", now, now.Add(24*time.Hour))

	purged, err := store.PurgeLocks(now.Add(ttl + time.Minute))
	if err != nil {
		t.Fatalf("PurgeLocks() error = %v", err)
	}
	if purged != 2 {
		t.Errorf("purged = %d, want 2", purged)
	}

	active, err := store.FindActiveLock("file-3", now.Add(ttl+time.Minute))
	if err != nil {
		t.Fatalf("FindActiveLock() error = %v", err)
	}
	if active == nil {
		t.Error("active lock was purged")
	}
}

func TestSQLiteStore_CheckMigrations(t *testing.T) {
	t.Run("fails on empty database", func(t *testing.T) {
		store, err := NewSQLiteStore(":memory:", nil, nil)
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		defer store.Close()

		if err := store.CheckMigrations(); err == nil {
			t.Error("CheckMigrations() expected error on unmigrated database")
		}
	})

	t.Run("passes after MigrateUp", func(t *testing.T) {
		store := newTestStore(t)

		if err := store.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})
}
