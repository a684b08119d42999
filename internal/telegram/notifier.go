package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"sync"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/sirupsen/logrus"

	"github.com/abelmekonnen/portfolio-livechat/internal/session"
)

// Callback actions carried in inline keyboard button data as "<action>:<sessionId>".
const (
	ActionJoin = "join"
	ActionAway = "away"
	ActionEnd  = "end"
)

// NotifyResult is what RequestHuman reports back to the orchestrator.
// Failures are carried in the struct, never as a panic or a thrown error.
type NotifyResult struct {
	Success   bool
	SessionID string
	MessageID int
	Error     string
}

// Notifier sends escalation requests and visitor messages to the operator
// channel and keeps the message-id to session mapping used for reply
// attribution.
type Notifier struct {
	bot         Sender
	adminChatID int64
	store       session.Store
	logger      *logrus.Logger

	mu           sync.Mutex
	msgToSession map[int]string
}

// NewNotifier wires the notifier. adminChatID is the default operator
// destination for new escalations.
func NewNotifier(bot Sender, adminChatID int64, store session.Store, logger *logrus.Logger) *Notifier {
	return &Notifier{
		bot:          bot,
		adminChatID:  adminChatID,
		store:        store,
		logger:       logger,
		msgToSession: make(map[int]string),
	}
}

// Configured reports whether the notifier can actually reach an operator.
func (n *Notifier) Configured() bool {
	return n != nil && n.bot != nil && n.adminChatID != 0
}

// RememberMessage maps a sent channel message id to a session so a later
// reply to that message can be attributed without ambiguity.
func (n *Notifier) RememberMessage(messageID int, sessionID string) {
	if messageID == 0 {
		return
	}
	n.mu.Lock()
	n.msgToSession[messageID] = sessionID
	n.mu.Unlock()
}

// SessionForMessage resolves a reply-to message id back to its session.
func (n *Notifier) SessionForMessage(messageID int) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	sessionID, ok := n.msgToSession[messageID]
	return sessionID, ok
}

// RequestHuman creates a pending session and notifies the operator with
// join/decline actions. On transport failure the just-created session is
// deleted so no orphaned pending session is left behind.
func (n *Notifier) RequestHuman(ctx context.Context, fields session.Fields) NotifyResult {
	if !n.Configured() {
		return NotifyResult{Success: false, Error: "operator channel not configured"}
	}

	sessionID, err := n.store.Create(ctx, fields)
	if err != nil {
		n.logger.WithError(err).Error("Failed to create live chat session")
		return NotifyResult{Success: false, Error: "failed to create session"}
	}

	email := fields.Email
	if email == "" {
		email = "not provided"
	}
	pageURL := fields.PageURL
	if pageURL == "" {
		pageURL = "unknown"
	}
	visitorName := fields.VisitorName
	if visitorName == "" {
		visitorName = "Website Visitor"
	}

	text := fmt.Sprintf(
		"📩 <b>Live chat request</b>\n\nFrom: <b>%s</b>\nEmail: %s\nPage: %s\n\nMessage:\n%s\n\nSession ID: <code>%s</code>",
		html.EscapeString(visitorName),
		html.EscapeString(email),
		html.EscapeString(pageURL),
		html.EscapeString(fields.Message),
		sessionID,
	)

	msg := tgbotapi.NewMessage(n.adminChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Join Chat", ActionJoin+":"+sessionID),
			tgbotapi.NewInlineKeyboardButtonData("Away / Not now", ActionAway+":"+sessionID),
		),
	)

	sent, err := n.bot.Send(msg)
	if err != nil {
		if delErr := n.store.Delete(ctx, sessionID); delErr != nil {
			n.logger.WithError(delErr).WithField("session_id", sessionID).Warn("Failed to clean up session after send failure")
		}
		n.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to notify operator")
		return NotifyResult{Success: false, Error: err.Error()}
	}

	n.RememberMessage(sent.MessageID, sessionID)
	n.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"message_id": sent.MessageID,
		"chat_id":    n.adminChatID,
	}).Info("Escalation sent to operator")

	return NotifyResult{Success: true, SessionID: sessionID, MessageID: sent.MessageID}
}

// ForwardToOperator sends the visitor's text verbatim to the operator who
// accepted the session.
func (n *Notifier) ForwardToOperator(operatorChatID, visitorName, sessionID, text string) error {
	chatID, err := strconv.ParseInt(operatorChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid operator chat id %q: %w", operatorChatID, err)
	}
	if visitorName == "" {
		visitorName = "Website Visitor"
	}
	payload := fmt.Sprintf("💬 Message from %s (session: %s):\n\n%s", visitorName, sessionID, text)
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, payload)); err != nil {
		return fmt.Errorf("failed to forward message to operator: %w", err)
	}
	return nil
}

// SendJoinFollowUp confirms the join to the operator with a force-reply
// prompt. Replies to that prompt are attributed to this session.
func (n *Notifier) SendJoinFollowUp(operatorChatID int64, sessionID string) {
	msg := tgbotapi.NewMessage(operatorChatID,
		fmt.Sprintf("✅ You joined session <code>%s</code>. Reply to this message to send text to the visitor.", sessionID))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true}

	sent, err := n.bot.Send(msg)
	if err != nil {
		n.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to send join follow-up")
		return
	}
	n.RememberMessage(sent.MessageID, sessionID)
}

// SendPendingReminder nudges the default operator chat about a session
// nobody has joined yet. Used by the delayed-workflow endpoint.
func (n *Notifier) SendPendingReminder(sessionID, visitorName string) error {
	if !n.Configured() {
		return fmt.Errorf("operator channel not configured")
	}
	msg := tgbotapi.NewMessage(n.adminChatID,
		fmt.Sprintf("⏰ Reminder: %s is still waiting in session <code>%s</code>.",
			html.EscapeString(visitorName), sessionID))
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.bot.Send(msg)
	return err
}

// Send delivers a plain text message to a chat.
func (n *Notifier) Send(chatID int64, text string) (tgbotapi.Message, error) {
	return n.bot.Send(tgbotapi.NewMessage(chatID, text))
}

// AnswerCallback acknowledges an inline button press. Errors are logged
// and swallowed; an unanswered callback only leaves a spinner on the
// operator's client.
func (n *Notifier) AnswerCallback(callbackQueryID, text string) {
	if _, err := n.bot.Request(tgbotapi.NewCallback(callbackQueryID, text)); err != nil {
		n.logger.WithError(err).Warn("Failed to answer callback query")
	}
}
