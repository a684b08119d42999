package session

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/abelmekonnen/portfolio-livechat/internal/models"
)

// ErrNotFound is returned by Get when no session exists for the id.
// An unknown or expired session is an expected outcome, not a failure;
// callers degrade to automated behavior instead of surfacing it.
var ErrNotFound = errors.New("session not found")

// Fields is the immutable snapshot captured when a session is created.
type Fields struct {
	VisitorName string
	Email       string
	PageURL     string
	Message     string
}

// Store is the keyed persistence layer for live-chat sessions.
// Save is an idempotent upsert: it refreshes LastActivityAt and the
// record's TTL, then notifies the publisher best-effort.
type Store interface {
	Create(ctx context.Context, fields Fields) (string, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Save(ctx context.Context, sess *models.Session) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]*models.Session, error)
}

// Publisher receives session state changes after every successful Save.
// Delivery is best-effort; missed updates are recovered by widget polling.
type Publisher interface {
	Publish(sessionID string, sess *models.Session, event string)
}

// Session change events fanned out to push subscribers.
const (
	EventUpdate = "session_update"
	EventEnded  = "session_ended"
)

// NopPublisher is used when no push broker is wired in.
type NopPublisher struct{}

func (NopPublisher) Publish(string, *models.Session, string) {}

// NewSessionID generates an unguessable session identifier.
func NewSessionID() string {
	return "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// newSession builds the initial record for Create. The originating message
// is also the first transcript entry so both sides see it.
func newSession(fields Fields) *models.Session {
	now := models.NowMillis()
	name := fields.VisitorName
	if name == "" {
		name = "Website Visitor"
	}
	return &models.Session{
		SessionID:      NewSessionID(),
		VisitorName:    name,
		Email:          fields.Email,
		PageURL:        fields.PageURL,
		Message:        fields.Message,
		CreatedAt:      now,
		LastActivityAt: now,
		Accepted:       false,
		UserMessages:   []models.ChatEntry{{Text: fields.Message, At: now, Name: name}},
		OwnerMessages:  []models.ChatEntry{},
	}
}

// eventFor picks the broadcast event for a saved session. Ending a session
// is announced distinctly so the widget stops forwarding to the operator.
func eventFor(sess *models.Session) string {
	if sess.EndedAt != 0 {
		return EventEnded
	}
	return EventUpdate
}
