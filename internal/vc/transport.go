package vc

import (
	"context"

	"flowvc/internal/model"
)

// Credentials carries decrypted transport credentials for a git remote.
// Exactly one of Token or SSHKeyPath is typically set.
type Credentials struct {
	Username   string
	Token      string
	SSHKeyPath string
}

// CredentialSource resolves transport credentials for a project's
// remote. Resolution failures surface as transport errors on the push
// queue, not as engine errors.
type CredentialSource interface {
	Resolve(projectID string) (Credentials, error)
}

// CommitPayload is the unit of work shipped to a git remote: one commit
// plus the snapshots it created. The transport decides how to express
// it on the wire (tree of files, bundle, API call).
type CommitPayload struct {
	Commit       model.Commit
	Snapshots    []model.FileSnapshot
	RemoteBranch string
}

// Transport performs the actual git remote interaction. Each call is
// treated as an atomic success/failure by the push queue; retry and
// backoff live in the queue, not here. Implementations must bound their
// own network timeouts via ctx.
type Transport interface {
	// Push ships one commit payload to the remote.
	Push(ctx context.Context, repoURL string, creds Credentials, payload *CommitPayload) error

	// Pull returns the remote head commit ID for the given branch.
	Pull(ctx context.Context, repoURL string, creds Credentials, remoteBranch string) (string, error)
}
