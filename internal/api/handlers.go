package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/abelmekonnen/portfolio-livechat/internal/chat"
	"github.com/abelmekonnen/portfolio-livechat/internal/models"
	"github.com/abelmekonnen/portfolio-livechat/internal/session"
)

// jsonResponse is the standard envelope for admin/debug endpoints.
// Visitor-facing endpoints return their own shapes.
type jsonResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, jsonResponse{Status: "error", Message: message})
}

func writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, jsonResponse{Status: "success", Message: message, Data: data})
}

// Chat is the visitor-facing entry point for one conversation turn.
func (h *apiHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	result := h.deps.Orchestrator.Chat(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

// SessionStatus reports the lifecycle state of a session for the widget's
// fallback polling.
func (h *apiHandler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	sess, err := h.deps.Store.Get(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  models.StatusNotFound,
			"message": "Session not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  sess.Status(),
		"session": sess,
	})
}

type notifyAdminRequest struct {
	VisitorName string `json:"visitorName"`
	Message     string `json:"message"`
	PageURL     string `json:"pageUrl"`
	Email       string `json:"email"`
}

// NotifyAdmin escalates directly, bypassing the orchestrator's phrase
// detection. Used by the widget's explicit "talk to a human" button.
func (h *apiHandler) NotifyAdmin(w http.ResponseWriter, r *http.Request) {
	var req notifyAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if !h.deps.Notifier.Configured() {
		writeJSONError(w, http.StatusServiceUnavailable, "Operator channel not configured")
		return
	}

	res := h.deps.Notifier.RequestHuman(r.Context(), session.Fields{
		VisitorName: req.VisitorName,
		Email:       req.Email,
		PageURL:     req.PageURL,
		Message:     req.Message,
	})
	if !res.Success {
		writeJSONError(w, http.StatusInternalServerError, "Failed to send notification: "+res.Error)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"message":   "Notification sent to admin",
		"sessionId": res.SessionID,
		"messageId": res.MessageID,
	})
}

type sendToOwnerRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Name      string `json:"name"`
}

// SendToOwner forwards visitor text on an accepted session without going
// through the orchestrator.
func (h *apiHandler) SendToOwner(w http.ResponseWriter, r *http.Request) {
	var req sendToOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	}

	if !h.deps.Notifier.Configured() {
		writeJSONError(w, http.StatusServiceUnavailable, "Operator channel not configured")
		return
	}

	sess, err := h.deps.Store.Get(r.Context(), req.SessionID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	if !sess.Live() {
		writeJSONError(w, http.StatusBadRequest, "session not accepted or operator not available")
		return
	}

	visitorName := req.Name
	if visitorName == "" {
		visitorName = sess.VisitorName
	}
	if err := h.deps.Notifier.ForwardToOperator(sess.AcceptedBy.OperatorChatID, visitorName, sess.SessionID, req.Text); err != nil {
		h.deps.Logger.WithError(err).WithField("session_id", sess.SessionID).Error("Failed to forward message to operator")
		writeJSONError(w, http.StatusInternalServerError, "failed to send message to owner")
		return
	}

	sess.AppendUserMessage(req.Text, visitorName)
	if err := h.deps.Store.Save(r.Context(), sess); err != nil {
		h.deps.Logger.WithError(err).WithField("session_id", sess.SessionID).Warn("Failed to persist forwarded message")
	}

	writeJSONSuccess(w, "forwarded", nil)
}

// TelegramWebhook receives operator-channel events. It always answers 200,
// even on garbage input, so the provider does not retry-storm us.
func (h *apiHandler) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	defer w.Write([]byte("OK"))

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.deps.Logger.WithError(err).Warn("Undecodable webhook payload")
		return
	}
	if h.deps.BotHandler == nil {
		return
	}
	h.deps.BotHandler.HandleUpdate(r.Context(), update)
}

func (h *apiHandler) TelegramWebhookStatus(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("Telegram webhook is running"))
}

// SetWebhook registers our public webhook URL with Telegram.
func (h *apiHandler) SetWebhook(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Bot == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Telegram bot not configured")
		return
	}
	if h.deps.Config.PublicBaseURL == "" {
		writeJSONError(w, http.StatusBadRequest, "PUBLIC_BASE_URL is not set")
		return
	}
	if err := h.deps.Bot.RegisterWebhook(h.deps.Config.PublicBaseURL); err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSONSuccess(w, "Webhook set successfully", map[string]string{
		"webhookUrl": h.deps.Config.PublicBaseURL + "/api/telegram-webhook",
	})
}

// WebhookInfo reports what Telegram currently has registered.
func (h *apiHandler) WebhookInfo(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Bot == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Telegram bot not configured")
		return
	}
	info, err := h.deps.Bot.WebhookInfo()
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSONSuccess(w, "", map[string]interface{}{"webhookInfo": info})
}

type workflowRequest struct {
	SessionID string `json:"sessionId"`
}

// Workflow is the delayed callback target for scheduled jobs: if the
// session is still pending, nudge the operator once.
func (h *apiHandler) Workflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	sess, err := h.deps.Store.Get(r.Context(), req.SessionID)
	if err != nil {
		// Expired or already cleaned up; nothing to remind about.
		writeJSONSuccess(w, "session gone, no reminder sent", nil)
		return
	}
	if sess.Status() != models.StatusPending {
		writeJSONSuccess(w, "session no longer pending, no reminder sent", nil)
		return
	}
	if !h.deps.Notifier.Configured() {
		writeJSONError(w, http.StatusServiceUnavailable, "Operator channel not configured")
		return
	}

	if err := h.deps.Notifier.SendPendingReminder(sess.SessionID, sess.VisitorName); err != nil {
		h.deps.Logger.WithError(err).WithField("session_id", sess.SessionID).Warn("Failed to send pending reminder")
		writeJSONError(w, http.StatusInternalServerError, "failed to send reminder")
		return
	}
	writeJSONSuccess(w, "reminder sent", nil)
}

// DebugSessions lists sessions, fetches one, or runs a storage round-trip
// probe (?action=test).
func (h *apiHandler) DebugSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("action") == "test" {
		sessionID, err := h.deps.Store.Create(r.Context(), session.Fields{
			VisitorName: "Test User",
			Email:       "test@example.com",
			PageURL:     "https://example.com/test",
			Message:     "Test message",
		})
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"test": "session_storage", "created": false, "error": err.Error()})
			return
		}
		retrieved, err := h.deps.Store.Get(r.Context(), sessionID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"test":      "session_storage",
			"created":   true,
			"retrieved": err == nil,
			"sessionId": sessionID,
			"session":   retrieved,
		})
		return
	}

	if sessionID := query.Get("sessionId"); sessionID != "" {
		sess, err := h.deps.Store.Get(r.Context(), sessionID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessionId": sessionID,
			"found":     err == nil,
			"session":   sess,
		})
		return
	}

	sessions, err := h.deps.Store.List(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(sessions), "sessions": sessions})
}

// DeleteSession removes a session record. Administrative cleanup only.
func (h *apiHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if err := h.deps.Store.Delete(r.Context(), sessionID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONSuccess(w, "session deleted", nil)
}

// ValidateSession reports a session's age and validity window. Debug aid
// for diagnosing clock/TTL issues.
func (h *apiHandler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	sess, err := h.deps.Store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"valid": false, "reason": "Session not found"})
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := models.NowMillis()
	age := now - sess.CreatedAt
	maxAge := h.deps.Config.SessionTTL.Milliseconds()
	reason := "Valid"
	switch {
	case age < 0:
		reason = "Future timestamp"
	case age > maxAge:
		reason = "Expired"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": sess.SessionID,
		"valid":     reason == "Valid",
		"reason":    reason,
		"details": map[string]interface{}{
			"createdAt":   time.UnixMilli(sess.CreatedAt).UTC().Format(time.RFC3339),
			"currentTime": time.UnixMilli(now).UTC().Format(time.RFC3339),
			"ageMs":       age,
			"ageReadable": fmt.Sprintf("%.1f seconds ago", float64(age)/1000),
			"accepted":    sess.Accepted,
			"visitorName": sess.VisitorName,
		},
	})
}
