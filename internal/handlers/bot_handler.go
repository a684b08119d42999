// Package handlers processes inbound Telegram updates from the operator.
package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/sirupsen/logrus"

	"github.com/abelmekonnen/portfolio-livechat/internal/models"
	"github.com/abelmekonnen/portfolio-livechat/internal/session"
	"github.com/abelmekonnen/portfolio-livechat/internal/telegram"
)

// recencyWindow bounds the "most recently active session" fallback when an
// operator reply carries no reply-to threading. Two sessions active inside
// the window are indistinguishable; attribution is best-effort by design.
const recencyWindow = 15 * time.Minute

// HandlerDependencies contains everything the bot handler needs.
type HandlerDependencies struct {
	Store    session.Store
	Notifier *telegram.Notifier
	Logger   *logrus.Logger
}

// BotHandler dispatches operator actions and free-text replies.
type BotHandler struct {
	Deps HandlerDependencies
}

// NewBotHandler validates dependencies and builds the handler.
func NewBotHandler(deps HandlerDependencies) *BotHandler {
	if deps.Store == nil || deps.Notifier == nil || deps.Logger == nil {
		panic("handlers: missing BotHandler dependencies")
	}
	return &BotHandler{Deps: deps}
}

// HandleUpdate routes a Telegram update to the right handler.
func (bh *BotHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		bh.HandleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		bh.HandleOperatorMessage(ctx, update.Message)
	}
}

// HandleCallback processes a join/away/end button press.
func (bh *BotHandler) HandleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	log := bh.Deps.Logger.WithFields(logrus.Fields{
		"from": query.From.UserName,
		"data": query.Data,
	})

	action, sessionID, ok := strings.Cut(query.Data, ":")
	if !ok || sessionID == "" {
		log.Warn("Malformed callback data")
		bh.Deps.Notifier.AnswerCallback(query.ID, "Invalid session data")
		return
	}

	sess, err := bh.Deps.Store.Get(ctx, sessionID)
	if err != nil {
		// Expired or unknown sessions are a normal outcome of the TTL.
		if !errors.Is(err, session.ErrNotFound) {
			log.WithError(err).Warn("Session lookup failed")
		}
		bh.Deps.Notifier.AnswerCallback(query.ID, "Session not found or expired.")
		return
	}

	switch action {
	case telegram.ActionJoin:
		bh.handleJoin(ctx, query, sess)
	case telegram.ActionAway:
		bh.handleAway(ctx, query, sess)
	case telegram.ActionEnd:
		bh.handleEnd(ctx, query, sess)
	default:
		log.Warn("Unknown callback action")
		bh.Deps.Notifier.AnswerCallback(query.ID, "Unknown action")
	}
}

func (bh *BotHandler) handleJoin(ctx context.Context, query *tgbotapi.CallbackQuery, sess *models.Session) {
	operatorChatID := strconv.FormatInt(query.From.ID, 10)

	// First operator wins; a later join on a claimed session is refused
	// instead of silently overwriting acceptedBy.
	if sess.Accepted && sess.AcceptedBy != nil && sess.AcceptedBy.OperatorChatID != operatorChatID {
		bh.Deps.Notifier.AnswerCallback(query.ID, "This chat was already claimed by another operator.")
		return
	}
	if sess.EndedAt != 0 {
		bh.Deps.Notifier.AnswerCallback(query.ID, "This chat has already ended.")
		return
	}

	if !sess.Accepted {
		sess.Accepted = true
		sess.AcceptedBy = &models.AcceptedBy{
			OperatorChatID: operatorChatID,
			OperatorName:   operatorName(query.From),
			AcceptedAt:     models.NowMillis(),
		}
		if err := bh.Deps.Store.Save(ctx, sess); err != nil {
			bh.Deps.Logger.WithError(err).WithField("session_id", sess.SessionID).Error("Failed to persist accepted session")
			bh.Deps.Notifier.AnswerCallback(query.ID, "Something went wrong, please try again.")
			return
		}
		bh.Deps.Logger.WithFields(logrus.Fields{
			"session_id": sess.SessionID,
			"operator":   sess.AcceptedBy.OperatorName,
		}).Info("Session accepted")
	}

	bh.Deps.Notifier.AnswerCallback(query.ID, "You joined the visitor chat. Send messages here to communicate.")
	bh.Deps.Notifier.SendJoinFollowUp(query.From.ID, sess.SessionID)
}

func (bh *BotHandler) handleAway(ctx context.Context, query *tgbotapi.CallbackQuery, sess *models.Session) {
	// Idempotent: declining a session that nobody accepted is a no-op save.
	sess.Accepted = false
	if err := bh.Deps.Store.Save(ctx, sess); err != nil {
		bh.Deps.Logger.WithError(err).WithField("session_id", sess.SessionID).Warn("Failed to persist declined session")
	}
	bh.Deps.Notifier.AnswerCallback(query.ID, "Marked as away. The visitor will be notified.")
}

func (bh *BotHandler) handleEnd(ctx context.Context, query *tgbotapi.CallbackQuery, sess *models.Session) {
	bh.endSession(ctx, sess, operatorName(query.From))
	bh.Deps.Notifier.AnswerCallback(query.ID, "Chat ended. The visitor is back with the assistant.")
}

// endSession reverts the session to automated mode and broadcasts the
// distinguished ended event via Save.
func (bh *BotHandler) endSession(ctx context.Context, sess *models.Session, endedBy string) {
	sess.Accepted = false
	sess.EndedAt = models.NowMillis()
	sess.EndedBy = endedBy
	if err := bh.Deps.Store.Save(ctx, sess); err != nil {
		bh.Deps.Logger.WithError(err).WithField("session_id", sess.SessionID).Error("Failed to persist ended session")
		return
	}
	bh.Deps.Logger.WithFields(logrus.Fields{
		"session_id": sess.SessionID,
		"ended_by":   endedBy,
	}).Info("Session ended")
}

// HandleOperatorMessage attributes operator free text to a session and
// appends it to the transcript. Attribution prefers explicit reply
// threading and falls back to the operator's most recently active session
// within the recency window. Unattributable text is dropped with a log line.
func (bh *BotHandler) HandleOperatorMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	operatorChatID := strconv.FormatInt(msg.From.ID, 10)
	log := bh.Deps.Logger.WithField("operator_chat_id", operatorChatID)

	// "/end" closes the operator's current session without a button.
	if strings.HasPrefix(text, "/end") {
		arg := strings.TrimSpace(strings.TrimPrefix(text, "/end"))
		bh.handleEndCommand(ctx, msg, operatorChatID, arg)
		return
	}
	if strings.HasPrefix(text, "/") {
		return
	}

	sess := bh.resolveSession(ctx, msg, operatorChatID)
	if sess == nil {
		log.Warn("Dropping operator message: no session could be attributed")
		return
	}

	sess.AppendOwnerMessage(text, operatorName(msg.From))
	if err := bh.Deps.Store.Save(ctx, sess); err != nil {
		log.WithError(err).WithField("session_id", sess.SessionID).Error("Failed to persist operator message")
		return
	}
	log.WithField("session_id", sess.SessionID).Debug("Operator message appended")
}

func (bh *BotHandler) handleEndCommand(ctx context.Context, msg *tgbotapi.Message, operatorChatID, sessionID string) {
	var sess *models.Session
	if sessionID != "" {
		var err error
		if sess, err = bh.Deps.Store.Get(ctx, sessionID); err != nil {
			sess = nil
		}
	} else {
		sess = bh.mostRecentAcceptedSession(ctx, operatorChatID, 0)
	}
	if sess == nil {
		bh.reply(msg.Chat.ID, "No active chat session to end.")
		return
	}
	bh.endSession(ctx, sess, operatorName(msg.From))
	bh.reply(msg.Chat.ID, "Chat ended. The visitor is back with the assistant.")
}

// resolveSession implements the two-step attribution rule.
func (bh *BotHandler) resolveSession(ctx context.Context, msg *tgbotapi.Message, operatorChatID string) *models.Session {
	if msg.ReplyToMessage != nil {
		if sessionID, ok := bh.Deps.Notifier.SessionForMessage(msg.ReplyToMessage.MessageID); ok {
			if sess, err := bh.Deps.Store.Get(ctx, sessionID); err == nil {
				return sess
			}
		}
	}
	return bh.mostRecentAcceptedSession(ctx, operatorChatID, recencyWindow)
}

// mostRecentAcceptedSession returns the newest un-ended session accepted by
// this operator. A non-zero window drops sessions idle for longer.
func (bh *BotHandler) mostRecentAcceptedSession(ctx context.Context, operatorChatID string, window time.Duration) *models.Session {
	all, err := bh.Deps.Store.List(ctx)
	if err != nil {
		bh.Deps.Logger.WithError(err).Warn("Failed to list sessions for attribution")
		return nil
	}
	now := models.NowMillis()
	var best *models.Session
	for _, sess := range all {
		if !sess.Live() || sess.AcceptedBy.OperatorChatID != operatorChatID {
			continue
		}
		if window > 0 && now-sess.LastActivityAt > window.Milliseconds() {
			continue
		}
		if best == nil || sess.LastActivityAt > best.LastActivityAt {
			best = sess
		}
	}
	return best
}

func (bh *BotHandler) reply(chatID int64, text string) {
	if _, err := bh.Deps.Notifier.Send(chatID, text); err != nil {
		bh.Deps.Logger.WithError(err).Warn("Failed to reply to operator")
	}
}

func operatorName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if name == "" {
		name = user.UserName
	}
	return name
}
