package vc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"flowvc/internal/model"
)

// PushOutcome classifies the result of processing one queue entry.
type PushOutcome int

const (
	// PushIdle means the queue had no pending entries.
	PushIdle PushOutcome = iota
	// PushSucceeded means the remote acknowledged the commit.
	PushSucceeded
	// PushRetry means the attempt failed and the entry was requeued.
	PushRetry
	// PushExhausted means the attempt failed and the entry reached its
	// attempt budget; it is now terminal and needs an operator.
	PushExhausted
)

func (o PushOutcome) String() string {
	switch o {
	case PushIdle:
		return "idle"
	case PushSucceeded:
		return "succeeded"
	case PushRetry:
		return "retry"
	case PushExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("PushOutcome(%d)", int(o))
	}
}

// PushResult reports what happened to one queue entry. Entry is nil
// when the outcome is PushIdle.
type PushResult struct {
	Outcome PushOutcome
	Entry   *model.PushQueueEntry
}

// Pusher drains the durable push outbox. Each ProcessNext call claims
// the oldest pending entry, archives its commit bundle, and attempts
// one transport push. Scheduling and backoff between invocations belong
// to the caller (a cron-like driver or a post-commit kick), not here.
type Pusher struct {
	store     Store
	transport Transport
	archive   Archive
	creds     CredentialSource
	clock     Clock
	logger    Logger
}

func NewPusher(store Store, transport Transport, archive Archive, creds CredentialSource, clock Clock, logger Logger) *Pusher {
	return &Pusher{
		store:     store,
		transport: transport,
		archive:   archive,
		creds:     creds,
		clock:     clock,
		logger:    logger,
	}
}

// Enqueue adds a push outbox entry for (project, commit). Enqueueing an
// already-queued commit returns the existing entry unchanged.
func (p *Pusher) Enqueue(projectID, commitID string, maxAttempts int64) (*model.PushQueueEntry, error) {
	entry, err := p.store.EnqueuePush(projectID, commitID, maxAttempts, p.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("enqueueing push: %w", err)
	}
	return entry, nil
}

// ProcessNext claims and processes the oldest pending entry. Succeeded
// entries are never claimed again, so an acknowledged commit is never
// double-pushed. Transport, credential and archive failures all count
// against the entry's attempt budget; only storage faults are returned
// as errors.
func (p *Pusher) ProcessNext(ctx context.Context) (*PushResult, error) {
	entry, err := p.store.DequeuePush(p.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("claiming push entry: %w", err)
	}
	if entry == nil {
		return &PushResult{Outcome: PushIdle}, nil
	}

	if pushErr := p.attempt(ctx, entry); pushErr != nil {
		return p.fail(entry, pushErr)
	}

	if err := p.store.CompletePush(entry.ID, p.clock.Now()); err != nil {
		return nil, fmt.Errorf("recording push success: %w", err)
	}

	p.logger.Info("commit pushed", "commit", entry.CommitID, "project", entry.ProjectID, "attempts", entry.Attempts+1)

	entry.Status = model.PushStatusSucceeded
	return &PushResult{Outcome: PushSucceeded, Entry: entry}, nil
}

// attempt performs one push: load payload, archive the bundle, resolve
// credentials, call the transport.
func (p *Pusher) attempt(ctx context.Context, entry *model.PushQueueEntry) error {
	payload, project, err := p.store.LoadCommitPayload(entry.CommitID)
	if err != nil {
		return fmt.Errorf("loading commit payload: %w", err)
	}

	bundle, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding commit bundle: %w", err)
	}
	if err := p.archive.PutBundle(entry.CommitID, bytes.NewReader(bundle), int64(len(bundle))); err != nil {
		return fmt.Errorf("archiving commit bundle: %w", err)
	}

	creds, err := p.creds.Resolve(project.ID)
	if err != nil {
		return fmt.Errorf("resolving credentials: %w", err)
	}

	if err := p.transport.Push(ctx, project.RepoURL, creds, payload); err != nil {
		return fmt.Errorf("pushing to %s: %w", project.RepoURL, err)
	}

	return nil
}

// fail records a failed attempt and reports whether the entry will be
// retried or is exhausted.
func (p *Pusher) fail(entry *model.PushQueueEntry, pushErr error) (*PushResult, error) {
	updated, err := p.store.RecordPushFailure(entry.ID, pushErr.Error(), p.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("recording push failure: %w", err)
	}

	if updated.Status == model.PushStatusFailed {
		p.logger.Error("push attempts exhausted",
			"commit", updated.CommitID,
			"attempts", updated.Attempts,
			"error", pushErr,
		)
		return &PushResult{Outcome: PushExhausted, Entry: updated}, nil
	}

	p.logger.Warn("push failed, will retry",
		"commit", updated.CommitID,
		"attempts", updated.Attempts,
		"max_attempts", updated.MaxAttempts,
		"error", pushErr,
	)
	return &PushResult{Outcome: PushRetry, Entry: updated}, nil
}

// Drain processes pending entries until the queue is idle or ctx is
// cancelled, returning the per-entry results.
func (p *Pusher) Drain(ctx context.Context) ([]*PushResult, error) {
	var results []*PushResult

	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := p.ProcessNext(ctx)
		if err != nil {
			return results, err
		}
		if res.Outcome == PushIdle {
			return results, nil
		}
		results = append(results, res)
	}
}

// Reenqueue resets a failed entry to pending with a fresh attempt
// budget. This is the operator path for exhausted entries.
func (p *Pusher) Reenqueue(entryID string) (*model.PushQueueEntry, error) {
	entry, err := p.store.ReenqueuePush(entryID, p.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("re-enqueueing push entry: %w", err)
	}

	p.logger.Info("push entry re-enqueued", "entry", entry.ID, "commit", entry.CommitID)
	return entry, nil
}
