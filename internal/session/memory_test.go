package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelmekonnen/portfolio-livechat/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type recordingPublisher struct {
	events   []string
	sessions []*models.Session
}

func (p *recordingPublisher) Publish(_ string, sess *models.Session, event string) {
	p.events = append(p.events, event)
	p.sessions = append(p.sessions, sess)
}

func newTestStore(t *testing.T, pub Publisher) *MemoryStore {
	t.Helper()
	store := NewMemoryStore(time.Hour, pub, testLogger())
	t.Cleanup(store.Close)
	return store
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	id, err := store.Create(ctx, Fields{
		VisitorName: "Dana",
		Email:       "dana@example.com",
		PageURL:     "https://example.com/projects",
		Message:     "I want to talk to a human",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "sess_"))

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dana", sess.VisitorName)
	assert.Equal(t, models.StatusPending, sess.Status())
	assert.Equal(t, sess.CreatedAt, sess.LastActivityAt)
	require.Len(t, sess.UserMessages, 1, "originating message seeds the transcript")
	assert.Equal(t, "I want to talk to a human", sess.UserMessages[0].Text)
}

func TestMemoryStore_CreateDefaultsVisitorName(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	id, err := store.Create(ctx, Fields{Message: "hello"})
	require.NoError(t, err)

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Website Visitor", sess.VisitorName)
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store := newTestStore(t, nil)

	_, err := store.Get(context.Background(), "sess_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetExpired(t *testing.T) {
	store := NewMemoryStore(time.Millisecond, nil, testLogger())
	defer store.Close()
	ctx := context.Background()

	id, err := store.Create(ctx, Fields{Message: "hi"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions, "expired sessions are filtered from listings")
}

func TestMemoryStore_GetReturnsACopy(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	id, err := store.Create(ctx, Fields{VisitorName: "Dana", Message: "hi"})
	require.NoError(t, err)

	first, err := store.Get(ctx, id)
	require.NoError(t, err)
	first.VisitorName = "Mallory"
	first.AppendUserMessage("injected", "Mallory")

	second, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dana", second.VisitorName, "mutations must go through Save")
	assert.Len(t, second.UserMessages, 1)
}

func TestMemoryStore_SavePublishesAndTouches(t *testing.T) {
	pub := &recordingPublisher{}
	store := newTestStore(t, pub)
	ctx := context.Background()

	id, err := store.Create(ctx, Fields{Message: "hi"})
	require.NoError(t, err)

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	before := sess.LastActivityAt

	sess.Accepted = true
	sess.AcceptedBy = &models.AcceptedBy{OperatorChatID: "111", AcceptedAt: models.NowMillis()}
	require.NoError(t, store.Save(ctx, sess))

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventUpdate, pub.events[0])
	assert.True(t, pub.sessions[0].Accepted)
	assert.GreaterOrEqual(t, sess.LastActivityAt, before, "Save refreshes activity")

	sess.EndedAt = models.NowMillis()
	require.NoError(t, store.Save(ctx, sess))
	require.Len(t, pub.events, 2)
	assert.Equal(t, EventEnded, pub.events[1], "ending a session is announced distinctly")
}

func TestMemoryStore_Delete(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	id, err := store.Create(ctx, Fields{Message: "hi"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(ctx, id), "deleting twice is a no-op")
}

func TestNewSessionID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		assert.True(t, strings.HasPrefix(id, "sess_"))
		assert.NotContains(t, id, "-")
		_, dup := seen[id]
		assert.False(t, dup, "ids must be unique")
		seen[id] = struct{}{}
	}
}
