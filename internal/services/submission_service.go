package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"promptdesk/internal/api"
	"promptdesk/internal/events"
	"promptdesk/internal/models"
)

type SubmissionStatus string

const (
	SubmissionSuccess   SubmissionStatus = "success"
	SubmissionTimeout   SubmissionStatus = "timeout"
	SubmissionError     SubmissionStatus = "error"
	SubmissionCancelled SubmissionStatus = "cancelled"
)

// SubmissionOutcome is the settled state of one submission pipeline run.
type SubmissionOutcome struct {
	Status    SubmissionStatus `json:"status"`
	SessionID string           `json:"sessionId"`
	Detail    string           `json:"detail,omitempty"`
}

const (
	sentinelPrefix     = "pending-"
	derivedTitleMaxLen = 30
)

// SubmissionService orchestrates a message submission:
// ensure-session-exists -> optimistic append -> backend submit -> response poll.
type SubmissionService struct {
	sessions *SessionService
	api      *api.Client
	poller   *ResponsePoller
	pollOpts PollOptions
	logger   *slog.Logger
	now      func() time.Time

	tracer      trace.Tracer
	submissions metric.Int64Counter
	timeouts    metric.Int64Counter

	mu     sync.Mutex
	active map[string]*PollHandle // sessionID -> in-flight poll
}

func NewSubmissionService(sessions *SessionService, apiClient *api.Client, poller *ResponsePoller, pollOpts PollOptions, logger *slog.Logger) *SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionService{
		sessions: sessions,
		api:      apiClient,
		poller:   poller,
		pollOpts: pollOpts,
		logger:   logger,
		now:      time.Now,
		active:   make(map[string]*PollHandle),
	}
}

// InitTelemetry attaches the tracer and counters; without it the pipeline
// runs untraced.
func (s *SubmissionService) InitTelemetry(tracer trace.Tracer, meter metric.Meter) error {
	s.tracer = tracer
	if meter == nil {
		return nil
	}
	var err error
	if s.submissions, err = meter.Int64Counter("promptdesk.submissions"); err != nil {
		return err
	}
	if s.timeouts, err = meter.Int64Counter("promptdesk.poll_timeouts"); err != nil {
		return err
	}
	return nil
}

// Submit runs the whole pipeline and blocks until it settles. The optimistic
// user message is never rolled back once appended: the user's intent was real
// even if delivery failed, and retrying is the caller's affordance.
func (s *SubmissionService) Submit(ctx context.Context, content, modelID, agentID string) (*SubmissionOutcome, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is required")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, fmt.Errorf("model id is required")
	}

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "submission.pipeline",
			trace.WithAttributes(attribute.String("model_id", modelID)))
		defer span.End()
	}
	if s.submissions != nil {
		s.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("model_id", modelID)))
	}

	// EnsuringSession: the backend associates messages with a session id, so
	// one must exist before anything is submitted.
	sessionID := s.sessions.ActiveID()
	if sessionID == "" {
		created, err := s.sessions.Create(ctx, deriveTitle(content))
		if err != nil {
			events.Emit(ctx, events.TopicNotice, events.NewError("Could not start a new conversation."))
			return nil, err
		}
		sessionID = created.ID
	}
	ctx = events.WithSession(ctx, sessionID)

	userMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   content,
		ModelID:   modelID,
		AgentID:   strings.TrimSpace(agentID),
		CreatedAt: s.now(),
	}
	if err := s.sessions.Append(sessionID, userMsg); err != nil {
		return nil, err
	}

	// Submitting: a failure here leaves the optimistic user message in place.
	if err := s.api.SubmitMessage(ctx, sessionID, content, modelID, userMsg.AgentID); err != nil {
		s.logger.Error("message submit failed", "session_id", sessionID, "error", err)
		events.Emit(ctx, events.TopicNotice, events.NewError("Your message could not be delivered."))
		return &SubmissionOutcome{Status: SubmissionError, SessionID: sessionID, Detail: "submit failed"}, err
	}

	// Transient sentinel drives the typing indicator; it is never persisted.
	sentinel := models.Message{
		ID:        sentinelPrefix + uuid.NewString(),
		Role:      models.RoleAssistant,
		CreatedAt: s.now(),
	}
	if err := s.sessions.Append(sessionID, sentinel); err != nil {
		s.logger.Warn("sentinel append failed", "session_id", sessionID, "error", err)
	}

	handle := s.poller.Start(ctx, sessionID, userMsg.CreatedAt, s.pollOpts)
	s.track(sessionID, handle)
	result := handle.Wait()
	s.untrack(sessionID, handle)

	switch result.Status {
	case PollFound:
		// The snapshot replace also removes the sentinel.
		s.sessions.ApplySnapshot(*result.Snapshot)
		events.Emit(ctx, events.TopicSessionUpdated, events.NewSuccess("Response received."))
		return &SubmissionOutcome{Status: SubmissionSuccess, SessionID: sessionID}, nil

	case PollTimeout:
		if s.timeouts != nil {
			s.timeouts.Add(ctx, 1)
		}
		s.sessions.RemoveMessage(sessionID, sentinel.ID)
		events.Emit(ctx, events.TopicNotice, events.NewWarn("The assistant is taking too long. Please try again."))
		return &SubmissionOutcome{Status: SubmissionTimeout, SessionID: sessionID, Detail: "no response within the polling window"}, nil

	case PollCancelled:
		s.sessions.RemoveMessage(sessionID, sentinel.ID)
		return &SubmissionOutcome{Status: SubmissionCancelled, SessionID: sessionID}, nil

	default:
		s.sessions.RemoveMessage(sessionID, sentinel.ID)
		s.logger.Error("response poll errored", "session_id", sessionID, "error", result.Err)
		events.Emit(ctx, events.TopicNotice, events.NewError("Fetching the response failed."))
		return &SubmissionOutcome{Status: SubmissionError, SessionID: sessionID, Detail: "poll failed"}, result.Err
	}
}

// track registers the in-flight poll for a session. A new submission for the
// same session interrupts the previous poll.
func (s *SubmissionService) track(sessionID string, handle *PollHandle) {
	s.mu.Lock()
	prev := s.active[sessionID]
	s.active[sessionID] = handle
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
}

func (s *SubmissionService) untrack(sessionID string, handle *PollHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[sessionID] == handle {
		delete(s.active, sessionID)
	}
}

// CancelSession tears down the in-flight poll for one session, e.g. when the
// session is deleted.
func (s *SubmissionService) CancelSession(sessionID string) {
	s.mu.Lock()
	handle := s.active[sessionID]
	delete(s.active, sessionID)
	s.mu.Unlock()
	if handle != nil {
		handle.Cancel()
	}
}

// CancelAll tears down every in-flight poll; called on shutdown so no timer
// fires after the owning context is gone.
func (s *SubmissionService) CancelAll() {
	s.mu.Lock()
	handles := make([]*PollHandle, 0, len(s.active))
	for id, handle := range s.active {
		handles = append(handles, handle)
		delete(s.active, id)
	}
	s.mu.Unlock()
	for _, handle := range handles {
		handle.Cancel()
	}
}

// deriveTitle builds an untitled session's title from the first message.
func deriveTitle(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= derivedTitleMaxLen {
		return string(runes)
	}
	return string(runes[:derivedTitleMaxLen])
}
