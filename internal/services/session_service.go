package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"promptdesk/internal/api"
	"promptdesk/internal/models"
)

// SessionService is the single source of truth for the session list and the
// active session's message sequence. No other component mutates the graph
// directly; they submit intents and this service applies the transition.
type SessionService struct {
	api     *api.Client
	logger  *slog.Logger
	ownerID string

	mu           sync.RWMutex
	sessions     []models.Session // most-recent-first
	loaded       map[string]bool  // full message sequence resident
	activeID     string
	selectGen    uint64 // bumped on every selection intent; stale fetches are discarded
	placeholders map[string]bool
	buffered     map[string][]models.Message
}

func NewSessionService(apiClient *api.Client, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		api:          apiClient,
		logger:       logger,
		loaded:       make(map[string]bool),
		placeholders: make(map[string]bool),
		buffered:     make(map[string][]models.Message),
	}
}

// SetOwner records the user id stamped on sessions created by this client.
func (s *SessionService) SetOwner(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerID = strings.TrimSpace(userID)
}

// Startup performs the one full-list fetch; all later changes are applied
// incrementally.
func (s *SessionService) Startup(ctx context.Context) error {
	sessions, err := s.api.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("load session list: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = sessions
	return nil
}

// Sessions returns the cached session list, most recent first.
func (s *SessionService) Sessions() []models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// ActiveID returns the id of the active session, or "" when none is active.
func (s *SessionService) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns a copy of the active session, or nil when none is active.
func (s *SessionService) Active() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOfLocked(s.activeID)
	if idx < 0 {
		return nil
	}
	sess := s.sessions[idx]
	sess.Messages = append([]models.Message(nil), sess.Messages...)
	return &sess
}

// Select activates a session. A resident session activates synchronously;
// otherwise the full session is fetched first. If another selection starts
// before the fetch resolves, the stale result is discarded.
func (s *SessionService) Select(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	s.mu.Lock()
	if s.indexOfLocked(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("session %s not found", id)
	}
	s.selectGen++
	gen := s.selectGen
	if s.loaded[id] {
		s.activeID = id
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	snapshot, err := s.api.GetSession(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectGen != gen {
		// A later selection won; this result is no longer of interest.
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch session %s: %w", id, err)
	}
	s.applySnapshotLocked(*snapshot)
	s.activeID = id
	return nil
}

// Create assigns a fresh client-side id, registers it with the backend, and
// on success prepends the session and activates it. On failure nothing is
// mutated locally.
func (s *SessionService) Create(ctx context.Context, title string) (*models.Session, error) {
	id := uuid.NewString()

	s.mu.Lock()
	s.placeholders[id] = true
	ownerID := s.ownerID
	s.mu.Unlock()

	created, err := s.api.CreateSession(ctx, id, ownerID, title)
	if err != nil {
		s.mu.Lock()
		delete(s.placeholders, id)
		delete(s.buffered, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := *created
	// Messages appended while creation was in flight land first.
	if pending := s.buffered[id]; len(pending) > 0 {
		sess.Messages = append(pending, sess.Messages...)
	}
	delete(s.placeholders, id)
	delete(s.buffered, id)
	s.sessions = append([]models.Session{sess}, s.sessions...)
	s.loaded[sess.ID] = true
	s.selectGen++ // activation supersedes any in-flight selection
	s.activeID = sess.ID

	out := sess
	out.Messages = append([]models.Message(nil), sess.Messages...)
	return &out, nil
}

// Append inserts a message into the matching session's sequence. Appends to a
// placeholder that the backend has not yet confirmed are buffered until the
// creation resolves.
func (s *SessionService) Append(sessionID string, msg models.Message) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placeholders[sessionID] {
		s.buffered[sessionID] = append(s.buffered[sessionID], msg)
		return nil
	}
	idx := s.indexOfLocked(sessionID)
	if idx < 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.sessions[idx].Messages = append(s.sessions[idx].Messages, msg)
	return nil
}

// RemoveMessage deletes a message by id, used to strip sentinel placeholders.
// Removing from a session that no longer exists is a no-op.
func (s *SessionService) RemoveMessage(sessionID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(sessionID)
	if idx < 0 {
		return
	}
	messages := s.sessions[idx].Messages
	for i := range messages {
		if messages[i].ID == messageID {
			s.sessions[idx].Messages = append(messages[:i:i], messages[i+1:]...)
			return
		}
	}
}

// ApplySnapshot replaces a session's cached messages and title with a polled
// backend snapshot. It applies to that session's entry by id, not to
// whatever is active at resolution time.
func (s *SessionService) ApplySnapshot(snapshot models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applySnapshotLocked(snapshot)
}

func (s *SessionService) applySnapshotLocked(snapshot models.Session) {
	idx := s.indexOfLocked(snapshot.ID)
	if idx < 0 {
		return
	}
	s.sessions[idx].Messages = snapshot.Messages
	if snapshot.Title != "" {
		s.sessions[idx].Title = snapshot.Title
	}
	s.loaded[snapshot.ID] = true
}

// Rename updates a session's title locally.
func (s *SessionService) Rename(sessionID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(sessionID)
	if idx < 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.sessions[idx].Title = title
	return nil
}

// Delete removes a session after the backend confirms deletion. It reports
// whether the deleted session was active so the caller can navigate away.
func (s *SessionService) Delete(ctx context.Context, id string) (wasActive bool, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("session id is required")
	}
	if err := s.api.DeleteSession(ctx, id); err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(id)
	if idx >= 0 {
		s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)
	}
	delete(s.loaded, id)
	delete(s.placeholders, id)
	delete(s.buffered, id)
	if s.activeID == id {
		s.activeID = ""
		s.selectGen++
		return true, nil
	}
	return false, nil
}

func (s *SessionService) indexOfLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}
