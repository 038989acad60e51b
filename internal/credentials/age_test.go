package credentials

import (
	"path/filepath"
	"testing"

	"flowvc/internal/vc"
)

func TestAgeSource(t *testing.T) {
	t.Run("setup then unlock round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "git-credentials.age")
		src := NewAgeSource(path)

		if src.IsConfigured() {
			t.Error("IsConfigured() = true before setup")
		}

		want := vc.Credentials{Username: "alice", Token: "tok-123"}
		if err := src.Setup("passphrase", want); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !src.IsConfigured() {
			t.Error("IsConfigured() = false after setup")
		}

		// A fresh source simulates a new process; it must be unlocked first.
		fresh := NewAgeSource(path)
		if _, err := fresh.Resolve("project-1"); err == nil {
			t.Error("Resolve() before unlock expected error")
		}

		if err := fresh.Unlock("passphrase"); err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		got, err := fresh.Resolve("project-1")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got != want {
			t.Errorf("Resolve() = %+v, want %+v", got, want)
		}
	})

	t.Run("wrong passphrase fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "git-credentials.age")
		src := NewAgeSource(path)

		if err := src.Setup("correct", vc.Credentials{Token: "tok"}); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if err := NewAgeSource(path).Unlock("wrong"); err == nil {
			t.Error("Unlock() with wrong passphrase expected error")
		}
	})

	t.Run("unlock without file fails", func(t *testing.T) {
		src := NewAgeSource(filepath.Join(t.TempDir(), "missing.age"))
		if err := src.Unlock("passphrase"); err == nil {
			t.Error("Unlock() without file expected error")
		}
	})
}

func TestStaticSource(t *testing.T) {
	want := vc.Credentials{Username: "ci", Token: "tok"}
	src := NewStaticSource(want)

	got, err := src.Resolve("any-project")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
}
