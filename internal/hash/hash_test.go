package hash

import (
	"testing"

	"flowvc/internal/config"
)

func TestXXH3Hasher(t *testing.T) {
	h := XXH3Hasher{}

	t.Run("deterministic", func(t *testing.T) {
		a := h.Sum([]byte("workflow content"))
		b := h.Sum([]byte("workflow content"))
		if a != b {
			t.Errorf("same input hashed differently: %q vs %q", a, b)
		}
	})

	t.Run("different content differs", func(t *testing.T) {
		a := h.Sum([]byte("v1"))
		b := h.Sum([]byte("v2"))
		if a == b {
			t.Errorf("different inputs collided: %q", a)
		}
	})

	t.Run("128-bit hex digest", func(t *testing.T) {
		sum := h.Sum([]byte("x"))
		if len(sum) != 32 {
			t.Errorf("len(sum) = %d, want 32 hex chars", len(sum))
		}
	})
}

func TestSHA256Hasher(t *testing.T) {
	h := SHA256Hasher{}

	sum := h.Sum([]byte(""))
	// SHA-256 of the empty string is a well-known constant.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if sum != want {
		t.Errorf("Sum(empty) = %q, want %q", sum, want)
	}
}

func TestNewHasherFromConfig(t *testing.T) {
	tests := []struct {
		algorithm string
		wantName  string
		wantErr   bool
	}{
		{"", "xxh3", false},
		{"xxh3", "xxh3", false},
		{"sha256", "sha256", false},
		{"md5", "", true},
	}

	for _, tt := range tests {
		t.Run("algorithm "+tt.algorithm, func(t *testing.T) {
			h, err := NewHasherFromConfig(config.HashConfig{Algorithm: tt.algorithm})
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewHasherFromConfig(%q) expected error", tt.algorithm)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHasherFromConfig(%q) error = %v", tt.algorithm, err)
			}
			if h.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", h.Name(), tt.wantName)
			}
		})
	}
}
