package gitremote

import (
	"context"
	"sync"

	"flowvc/internal/vc"
)

// MemoryTransport is an in-memory implementation of the Transport
// interface for tests. It records pushed payloads and can be primed to
// fail a number of times.
type MemoryTransport struct {
	mu        sync.Mutex
	pushes    []*vc.CommitPayload
	remoteTip string
	failures  int
	pushErr   error
	pullCalls int
}

var _ vc.Transport = (*MemoryTransport)(nil)

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

// FailNext makes the next n Push calls return err.
func (t *MemoryTransport) FailNext(n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = n
	t.pushErr = err
}

// SetRemoteTip sets the commit ID returned by Pull.
func (t *MemoryTransport) SetRemoteTip(commitID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remoteTip = commitID
}

func (t *MemoryTransport) Push(ctx context.Context, repoURL string, creds vc.Credentials, payload *vc.CommitPayload) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures > 0 {
		t.failures--
		return t.pushErr
	}
	t.pushes = append(t.pushes, payload)
	t.remoteTip = payload.Commit.ID
	return nil
}

func (t *MemoryTransport) Pull(ctx context.Context, repoURL string, creds vc.Credentials, remoteBranch string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pullCalls++
	return t.remoteTip, nil
}

// Pushes returns the payloads pushed so far.
func (t *MemoryTransport) Pushes() []*vc.CommitPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*vc.CommitPayload, len(t.pushes))
	copy(out, t.pushes)
	return out
}

// PullCalls returns how many times Pull was invoked.
func (t *MemoryTransport) PullCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pullCalls
}
