package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"promptdesk/internal/models"
)

func snapshotWith(messages ...models.Message) *models.Session {
	return &models.Session{ID: "s1", Title: "test", Messages: messages}
}

func TestPollerResolvesOnFirstQualifyingSnapshot(t *testing.T) {
	since := time.Now()
	var calls atomic.Int32
	p := &ResponsePoller{
		logger: discardLogger(),
		fetch: func(ctx context.Context, sessionID string) (*models.Session, error) {
			calls.Add(1)
			return snapshotWith(
				models.Message{ID: "u1", Role: models.RoleUser, CreatedAt: since},
				models.Message{ID: "a1", Role: models.RoleAssistant, CreatedAt: since.Add(time.Second)},
			), nil
		},
	}

	result := p.Start(context.Background(), "s1", since, PollOptions{MaxAttempts: 3, Interval: 10 * time.Millisecond}).Wait()

	require.Equal(t, PollFound, result.Status)
	require.Equal(t, 1, result.Attempts)
	require.EqualValues(t, 1, calls.Load())
	require.NotNil(t, result.Snapshot)
	require.Len(t, result.Snapshot.Messages, 2)
}

func TestPollerTimesOutAfterExactAttempts(t *testing.T) {
	since := time.Now()
	var calls atomic.Int32
	p := &ResponsePoller{
		logger: discardLogger(),
		fetch: func(ctx context.Context, sessionID string) (*models.Session, error) {
			calls.Add(1)
			// Only an assistant message older than the reference: never qualifies.
			return snapshotWith(
				models.Message{ID: "a0", Role: models.RoleAssistant, CreatedAt: since.Add(-time.Minute)},
			), nil
		},
	}

	result := p.Start(context.Background(), "s1", since, PollOptions{MaxAttempts: 3, Interval: 10 * time.Millisecond}).Wait()

	require.Equal(t, PollTimeout, result.Status)
	require.Equal(t, 3, result.Attempts)
	require.EqualValues(t, 3, calls.Load(), "timeout must happen after exactly MaxAttempts fetches")
}

func TestPollerResolvesErrorImmediately(t *testing.T) {
	var calls atomic.Int32
	p := &ResponsePoller{
		logger: discardLogger(),
		fetch: func(ctx context.Context, sessionID string) (*models.Session, error) {
			calls.Add(1)
			return nil, fmt.Errorf("backend unreachable")
		},
	}

	result := p.Start(context.Background(), "s1", time.Now(), PollOptions{MaxAttempts: 5, Interval: 10 * time.Millisecond}).Wait()

	require.Equal(t, PollError, result.Status)
	require.Error(t, result.Err)
	require.EqualValues(t, 1, calls.Load(), "a hard failure is not retried")
}

func TestPollerCancelClearsScheduledAttempts(t *testing.T) {
	since := time.Now()
	var calls atomic.Int32
	firstFetch := make(chan struct{})
	p := &ResponsePoller{
		logger: discardLogger(),
		fetch: func(ctx context.Context, sessionID string) (*models.Session, error) {
			if calls.Add(1) == 1 {
				close(firstFetch)
			}
			return snapshotWith(), nil
		},
	}

	handle := p.Start(context.Background(), "s1", since, PollOptions{MaxAttempts: 10, Interval: time.Minute})
	<-firstFetch
	handle.Cancel()
	result := handle.Wait()

	require.Equal(t, PollCancelled, result.Status)
	require.EqualValues(t, 1, calls.Load(), "no attempt may run after cancellation")
}

func TestPollerUserMessagesNeverQualify(t *testing.T) {
	since := time.Now()
	p := &ResponsePoller{
		logger: discardLogger(),
		fetch: func(ctx context.Context, sessionID string) (*models.Session, error) {
			return snapshotWith(
				models.Message{ID: "u2", Role: models.RoleUser, CreatedAt: since.Add(time.Second)},
			), nil
		},
	}

	result := p.Start(context.Background(), "s1", since, PollOptions{MaxAttempts: 2, Interval: 5 * time.Millisecond}).Wait()

	require.Equal(t, PollTimeout, result.Status)
}
