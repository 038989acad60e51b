// Package gitremote moves commits between the engine and real git
// remotes by shelling out to the git binary.
package gitremote

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"flowvc/internal/model"
	"flowvc/internal/vc"
)

// ShellTransport implements vc.Transport using the git CLI. Each remote
// gets a persistent checkout under workDir, reused across pushes.
type ShellTransport struct {
	workDir     string
	authorName  string
	authorEmail string
}

var _ vc.Transport = (*ShellTransport)(nil)

// NewShellTransport creates a transport keeping checkouts under workDir.
func NewShellTransport(workDir, authorName, authorEmail string) (*ShellTransport, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("creating checkout directory: %w", err)
	}
	if authorName == "" {
		authorName = "flowvc"
	}
	if authorEmail == "" {
		authorEmail = "flowvc@localhost"
	}
	return &ShellTransport{
		workDir:     workDir,
		authorName:  authorName,
		authorEmail: authorEmail,
	}, nil
}

// Push materializes the payload's snapshots in a checkout of the remote
// branch, commits them, and pushes. Pushing an already-pushed commit
// produces an empty git commit attempt, which is skipped.
func (t *ShellTransport) Push(ctx context.Context, repoURL string, creds vc.Credentials, payload *vc.CommitPayload) error {
	authURL, env, err := t.authorize(repoURL, creds)
	if err != nil {
		return err
	}

	dir, err := t.checkout(ctx, authURL, env, payload.RemoteBranch)
	if err != nil {
		return err
	}

	for _, snap := range payload.Snapshots {
		dest := filepath.Join(dir, snap.Name)
		if snap.ChangeType == model.ChangeDelete {
			if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing %s: %w", snap.Name, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", snap.Name, err)
		}
		if err := os.WriteFile(dest, snap.Content, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", snap.Name, err)
		}
	}

	if _, err := t.git(ctx, dir, env, "add", "-A"); err != nil {
		return fmt.Errorf("staging files: %w", err)
	}

	// Nothing staged means this commit already reached the remote.
	if out, _ := t.git(ctx, dir, env, "status", "--porcelain"); strings.TrimSpace(out) == "" {
		return nil
	}

	_, err = t.git(ctx, dir, env,
		"-c", "user.name="+t.authorName,
		"-c", "user.email="+t.authorEmail,
		"commit", "-m", payload.Commit.Message)
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	if _, err := t.git(ctx, dir, env, "push", "origin", "HEAD:"+payload.RemoteBranch); err != nil {
		return fmt.Errorf("pushing to %s: %w", payload.RemoteBranch, err)
	}
	return nil
}

// Pull returns the remote branch tip without touching the working tree.
func (t *ShellTransport) Pull(ctx context.Context, repoURL string, creds vc.Credentials, remoteBranch string) (string, error) {
	authURL, env, err := t.authorize(repoURL, creds)
	if err != nil {
		return "", err
	}

	out, err := t.gitBare(ctx, env, "ls-remote", authURL, "refs/heads/"+remoteBranch)
	if err != nil {
		return "", fmt.Errorf("querying remote: %w", err)
	}

	line := strings.TrimSpace(out)
	if line == "" {
		return "", fmt.Errorf("remote branch %s not found", remoteBranch)
	}
	fields := strings.Fields(line)
	return fields[0], nil
}

// checkout clones the remote on first use and resets an existing
// checkout to the remote branch tip on subsequent pushes.
func (t *ShellTransport) checkout(ctx context.Context, authURL string, env []string, branch string) (string, error) {
	dir := filepath.Join(t.workDir, checkoutName(authURL))

	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		if _, err := t.gitBare(ctx, env, "clone", "--branch", branch, authURL, dir); err != nil {
			// The remote branch may not exist yet; clone the default and
			// create it locally.
			if _, err := t.gitBare(ctx, env, "clone", authURL, dir); err != nil {
				return "", fmt.Errorf("cloning remote: %w", err)
			}
			if _, err := t.git(ctx, dir, env, "checkout", "-B", branch); err != nil {
				return "", fmt.Errorf("creating branch %s: %w", branch, err)
			}
		}
		return dir, nil
	}

	if _, err := t.git(ctx, dir, env, "fetch", "origin"); err != nil {
		return "", fmt.Errorf("fetching remote: %w", err)
	}
	if _, err := t.git(ctx, dir, env, "checkout", "-B", branch); err != nil {
		return "", fmt.Errorf("checking out %s: %w", branch, err)
	}
	// Reset to the remote tip if the branch exists there.
	if _, err := t.git(ctx, dir, env, "rev-parse", "--verify", "origin/"+branch); err == nil {
		if _, err := t.git(ctx, dir, env, "reset", "--hard", "origin/"+branch); err != nil {
			return "", fmt.Errorf("resetting to remote tip: %w", err)
		}
	}
	return dir, nil
}

// authorize embeds token credentials into https URLs and sets up the ssh
// command for key-based remotes.
func (t *ShellTransport) authorize(repoURL string, creds vc.Credentials) (string, []string, error) {
	env := append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	if creds.SSHKeyPath != "" {
		env = append(env, "GIT_SSH_COMMAND=ssh -i "+creds.SSHKeyPath+" -o IdentitiesOnly=yes")
		return repoURL, env, nil
	}

	if creds.Token == "" {
		return repoURL, env, nil
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return "", nil, fmt.Errorf("parsing repo url: %w", err)
	}
	username := creds.Username
	if username == "" {
		username = "git"
	}
	u.User = url.UserPassword(username, creds.Token)
	return u.String(), env, nil
}

func (t *ShellTransport) git(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = env
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

func (t *ShellTransport) gitBare(ctx context.Context, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = env
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// checkoutName derives a stable directory name for a remote URL,
// stripping credentials so rotated tokens reuse the same checkout.
func checkoutName(authURL string) string {
	u, err := url.Parse(authURL)
	if err == nil {
		u.User = nil
		authURL = u.String()
	}
	name := strings.NewReplacer("://", "-", "/", "-", ":", "-", "@", "-").Replace(authURL)
	return strings.Trim(name, "-")
}
