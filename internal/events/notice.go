package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type NoticeType string

const (
	NoticeInfo    NoticeType = "info"
	NoticeWarn    NoticeType = "warn"
	NoticeSuccess NoticeType = "success"
	NoticeError   NoticeType = "error"
)

// Frontend event topics.
const (
	TopicNotice         = "events:chat:notice"
	TopicSessionUpdated = "events:chat:session"
	TopicProviderStatus = "events:provider:status"
	TopicAttachments    = "events:chat:attachments"
)

// Notice is a user-visible, non-blocking message emitted by the engine.
type Notice struct {
	ID        string            `json:"id"`
	Type      NoticeType        `json:"type"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	SessionID string            `json:"sessionId,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type contextKey string

const sessionContextKey contextKey = "promptdesk/events/session"

// WithSession returns a derived context annotated with the given session id
// so notice emitters can automatically scope payloads.
func WithSession(ctx context.Context, sessionID string) context.Context {
	if strings.TrimSpace(sessionID) == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey, sessionID)
}

// SessionFromContext extracts the session id associated with ctx.
func SessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(sessionContextKey).(string); ok {
		return v
	}
	return ""
}

func newNotice(noticeType NoticeType, message string) Notice {
	return Notice{
		ID:        uuid.NewString(),
		Type:      noticeType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewInfo creates an info Notice.
func NewInfo(message string) Notice {
	return newNotice(NoticeInfo, message)
}

// NewWarn creates a warn Notice.
func NewWarn(message string) Notice {
	return newNotice(NoticeWarn, message)
}

// NewError creates an error Notice.
func NewError(message string) Notice {
	return newNotice(NoticeError, message)
}

// NewSuccess creates a success Notice.
func NewSuccess(message string) Notice {
	return newNotice(NoticeSuccess, message)
}
