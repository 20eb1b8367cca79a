package services

import (
	"context"
	"log/slog"
	"time"

	"promptdesk/internal/api"
	"promptdesk/internal/models"
)

type PollStatus string

const (
	PollFound     PollStatus = "found"
	PollTimeout   PollStatus = "timeout"
	PollError     PollStatus = "error"
	PollCancelled PollStatus = "cancelled"
)

// PollResult is the terminal state of one poll loop.
type PollResult struct {
	Status   PollStatus
	Snapshot *models.Session
	Attempts int
	Err      error
}

type PollOptions struct {
	MaxAttempts int
	Interval    time.Duration
}

func (o PollOptions) withDefaults() PollOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 30
	}
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	return o
}

type snapshotFetch func(ctx context.Context, sessionID string) (*models.Session, error)

// ResponsePoller repeatedly fetches a session snapshot until an assistant
// message newer than a reference timestamp appears, attempts run out, or the
// loop is cancelled. It never mutates store state; callers apply results.
type ResponsePoller struct {
	fetch  snapshotFetch
	logger *slog.Logger
}

func NewResponsePoller(client *api.Client, logger *slog.Logger) *ResponsePoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponsePoller{fetch: client.GetSession, logger: logger}
}

// PollHandle owns one running poll loop. Cancel guarantees that no further
// scheduled attempt executes; Wait blocks until the loop settles.
type PollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	result PollResult
}

func (h *PollHandle) Wait() PollResult {
	<-h.done
	return h.result
}

func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

func (h *PollHandle) Cancel() {
	h.cancel()
}

// Start launches the bounded-retry loop for one session.
func (p *ResponsePoller) Start(ctx context.Context, sessionID string, since time.Time, opts PollOptions) *PollHandle {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	handle := &PollHandle{cancel: cancel, done: make(chan struct{})}
	go p.run(ctx, handle, sessionID, since, opts)
	return handle
}

func (p *ResponsePoller) run(ctx context.Context, handle *PollHandle, sessionID string, since time.Time, opts PollOptions) {
	defer close(handle.done)

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			handle.result = PollResult{Status: PollCancelled, Attempts: attempt - 1, Err: ctx.Err()}
			return
		}

		snapshot, err := p.fetch(ctx, sessionID)
		if err != nil {
			if ctx.Err() != nil {
				handle.result = PollResult{Status: PollCancelled, Attempts: attempt, Err: ctx.Err()}
				return
			}
			// A hard failure is not retried; indefinite retry would mask a
			// permanent backend fault.
			p.logger.Warn("response poll failed", "session_id", sessionID, "attempt", attempt, "error", err)
			handle.result = PollResult{Status: PollError, Attempts: attempt, Err: err}
			return
		}

		if hasAssistantMessageAfter(snapshot, since) {
			handle.result = PollResult{Status: PollFound, Snapshot: snapshot, Attempts: attempt}
			return
		}

		if attempt == opts.MaxAttempts {
			break
		}

		timer := time.NewTimer(opts.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			handle.result = PollResult{Status: PollCancelled, Attempts: attempt, Err: ctx.Err()}
			return
		}
	}

	handle.result = PollResult{Status: PollTimeout, Attempts: opts.MaxAttempts}
}

// hasAssistantMessageAfter reports whether the snapshot contains an assistant
// message created strictly after since. Assistant timestamps are strictly
// greater than the triggering user message's, which makes this the "new
// response" predicate.
func hasAssistantMessageAfter(snapshot *models.Session, since time.Time) bool {
	if snapshot == nil {
		return false
	}
	for i := range snapshot.Messages {
		msg := &snapshot.Messages[i]
		if msg.Role == models.RoleAssistant && msg.CreatedAt.After(since) {
			return true
		}
	}
	return false
}
