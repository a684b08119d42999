package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_Status(t *testing.T) {
	sess := &Session{SessionID: "sess_1"}
	assert.Equal(t, StatusPending, sess.Status())

	sess.Accepted = true
	sess.AcceptedBy = &AcceptedBy{OperatorChatID: "111", AcceptedAt: NowMillis()}
	assert.Equal(t, StatusAccepted, sess.Status())

	sess.EndedAt = NowMillis()
	assert.Equal(t, StatusEnded, sess.Status(), "ended wins over accepted")
}

func TestSession_Live(t *testing.T) {
	sess := &Session{SessionID: "sess_1"}
	assert.False(t, sess.Live(), "pending session is not live")

	sess.Accepted = true
	assert.False(t, sess.Live(), "accepted without operator identity is not live")

	sess.AcceptedBy = &AcceptedBy{OperatorChatID: "111"}
	assert.True(t, sess.Live())

	sess.EndedAt = NowMillis()
	assert.False(t, sess.Live(), "ended session is not live")
}

func TestSession_TouchIsMonotone(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	sess := &Session{SessionID: "sess_1", LastActivityAt: future}

	sess.Touch()
	assert.Equal(t, future, sess.LastActivityAt, "Touch must never move LastActivityAt backwards")

	sess.LastActivityAt = 0
	sess.Touch()
	assert.Greater(t, sess.LastActivityAt, int64(0))
}

func TestSession_AppendMessages(t *testing.T) {
	sess := &Session{SessionID: "sess_1"}

	sess.AppendUserMessage("hello", "Visitor")
	sess.AppendOwnerMessage("hi there", "Abel")

	assert.Len(t, sess.UserMessages, 1)
	assert.Len(t, sess.OwnerMessages, 1)
	assert.Equal(t, "hello", sess.UserMessages[0].Text)
	assert.Equal(t, "Abel", sess.OwnerMessages[0].Name)
	assert.Greater(t, sess.LastActivityAt, int64(0), "appending touches the session")
}
