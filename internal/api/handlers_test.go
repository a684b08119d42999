package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelmekonnen/portfolio-livechat/internal/chat"
	"github.com/abelmekonnen/portfolio-livechat/internal/config"
	"github.com/abelmekonnen/portfolio-livechat/internal/events"
	"github.com/abelmekonnen/portfolio-livechat/internal/handlers"
	"github.com/abelmekonnen/portfolio-livechat/internal/livechat"
	"github.com/abelmekonnen/portfolio-livechat/internal/llm"
	"github.com/abelmekonnen/portfolio-livechat/internal/models"
	"github.com/abelmekonnen/portfolio-livechat/internal/session"
	"github.com/abelmekonnen/portfolio-livechat/internal/telegram"
)

type fakeProvider struct{}

func (fakeProvider) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return "generated answer", nil
}

type fakeSender struct {
	nextID   int
	messages []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.nextID++
	if mc, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, mc)
	}
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type apiFixture struct {
	router chi.Router
	store  *session.MemoryStore
	sender *fakeSender
	broker *events.Broker
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	broker := events.NewBroker(logger)
	store := session.NewMemoryStore(time.Hour, broker, logger)
	t.Cleanup(store.Close)

	sender := &fakeSender{}
	notifier := telegram.NewNotifier(sender, 999, store, logger)
	botHandler := handlers.NewBotHandler(handlers.HandlerDependencies{Store: store, Notifier: notifier, Logger: logger})

	orch := chat.NewOrchestrator(chat.Config{
		Store:         store,
		Notifier:      notifier,
		Detector:      livechat.NewDetector(nil),
		Provider:      fakeProvider{},
		PrimaryModel:  "primary-model",
		FallbackModel: "fallback-model",
		Logger:        logger,
	})

	router := chi.NewRouter()
	SetupRoutes(router, ApiDependencies{
		Config:       &config.Config{SessionTTL: time.Hour},
		Orchestrator: orch,
		Store:        store,
		Notifier:     notifier,
		BotHandler:   botHandler,
		Broker:       broker,
		Logger:       logger,
	})
	return &apiFixture{router: router, store: store, sender: sender, broker: broker}
}

func (f *apiFixture) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChatEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "what do you charge?"})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "generated answer", body["response"])
}

func TestChatEndpoint_Escalation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", map[string]string{
		"message":     "I want to talk to a human",
		"visitorName": "Dana",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["escalated"])
	sessionID, _ := body["sessionId"].(string)
	assert.True(t, strings.HasPrefix(sessionID, "sess_"))
}

func TestChatEndpoint_BadBody(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/session-status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/session-status?sessionId=sess_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.StatusNotFound, decodeBody(t, rec)["status"])

	id, err := f.store.Create(context.Background(), session.Fields{Message: "hi"})
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/api/session-status?sessionId="+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, models.StatusPending, body["status"])
	require.NotNil(t, body["session"])
}

func TestNotifyAdmin(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/notify-admin", map[string]string{
		"visitorName": "Dana",
		"message":     "please get in touch",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	sessionID, _ := body["sessionId"].(string)
	assert.NotEmpty(t, sessionID)

	sess, err := f.store.Get(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, sess.Status())
}

func TestNotifyAdmin_MissingMessage(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/notify-admin", map[string]string{"visitorName": "Dana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendToOwner(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	id, err := f.store.Create(ctx, session.Fields{VisitorName: "Dana", Message: "hi"})
	require.NoError(t, err)

	// Not accepted yet.
	rec := f.do(t, http.MethodPost, "/api/send-to-owner", map[string]string{"sessionId": id, "text": "hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sess, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	sess.Accepted = true
	sess.AcceptedBy = &models.AcceptedBy{OperatorChatID: "111", AcceptedAt: models.NowMillis()}
	require.NoError(t, f.store.Save(ctx, sess))

	rec = f.do(t, http.MethodPost, "/api/send-to-owner", map[string]string{"sessionId": id, "text": "hello"})
	assert.Equal(t, http.StatusOK, rec.Code)

	saved, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, saved.UserMessages, 2)
	assert.Equal(t, "hello", saved.UserMessages[1].Text)

	require.NotEmpty(t, f.sender.messages)
	assert.Equal(t, int64(111), f.sender.messages[len(f.sender.messages)-1].ChatID)
}

func TestSendToOwner_UnknownSession(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/send-to-owner", map[string]string{"sessionId": "sess_gone", "text": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTelegramWebhook_AlwaysAnswers200(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/telegram-webhook", strings.NewReader("not json at all"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestTelegramWebhook_ProcessesCallback(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	id, err := f.store.Create(ctx, session.Fields{VisitorName: "Dana", Message: "hi"})
	require.NoError(t, err)

	update := tgbotapi.Update{
		UpdateID: 1,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			From: &tgbotapi.User{ID: 111, FirstName: "Abel"},
			Data: telegram.ActionJoin + ":" + id,
		},
	}
	rec := f.do(t, http.MethodPost, "/api/telegram-webhook", update)
	assert.Equal(t, http.StatusOK, rec.Code)

	sess, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, sess.Accepted)
}

func TestWorkflow(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	id, err := f.store.Create(ctx, session.Fields{VisitorName: "Dana", Message: "hi"})
	require.NoError(t, err)

	before := len(f.sender.messages)
	rec := f.do(t, http.MethodPost, "/api/workflow", map[string]string{"sessionId": id})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Greater(t, len(f.sender.messages), before, "pending session triggers a reminder")

	// Accepted sessions are not reminded about.
	sess, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	sess.Accepted = true
	sess.AcceptedBy = &models.AcceptedBy{OperatorChatID: "111", AcceptedAt: models.NowMillis()}
	require.NoError(t, f.store.Save(ctx, sess))

	before = len(f.sender.messages)
	rec = f.do(t, http.MethodPost, "/api/workflow", map[string]string{"sessionId": id})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before, len(f.sender.messages))

	// A vanished session is not an error either.
	rec = f.do(t, http.MethodPost, "/api/workflow", map[string]string{"sessionId": "sess_gone"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateSession(t *testing.T) {
	f := newAPIFixture(t)

	id, err := f.store.Create(context.Background(), session.Fields{Message: "hi"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/validate-session?sessionId="+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["valid"])

	rec = f.do(t, http.MethodGet, "/api/validate-session?sessionId=sess_gone", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["valid"])
}

func TestDebugSessions(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/debug-sessions?action=test", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["created"])
	assert.Equal(t, true, body["retrieved"])

	rec = f.do(t, http.MethodGet, "/api/debug-sessions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])
}

func TestDeleteSession(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	id, err := f.store.Create(ctx, session.Fields{Message: "hi"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodDelete, "/api/debug-sessions?sessionId="+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = f.store.Get(ctx, id)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSessionEvents_InitFrame(t *testing.T) {
	f := newAPIFixture(t)

	id, err := f.store.Create(context.Background(), session.Fields{VisitorName: "Dana", Message: "hi"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // handler sends the init frame, then observes the closed context

	req := httptest.NewRequest(http.MethodGet, "/api/session-events?sessionId="+id, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"type":"init"`)
	assert.Contains(t, rec.Body.String(), id)
	assert.Equal(t, 0, f.broker.SubscriberCount(), "subscription is released on disconnect")
}

func TestSessionEvents_MissingParam(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/api/session-events", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
