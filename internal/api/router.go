package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/abelmekonnen/portfolio-livechat/internal/chat"
	"github.com/abelmekonnen/portfolio-livechat/internal/config"
	"github.com/abelmekonnen/portfolio-livechat/internal/events"
	"github.com/abelmekonnen/portfolio-livechat/internal/handlers"
	"github.com/abelmekonnen/portfolio-livechat/internal/metrics"
	"github.com/abelmekonnen/portfolio-livechat/internal/session"
	"github.com/abelmekonnen/portfolio-livechat/internal/telegram"
)

// ApiDependencies contains the collaborators the HTTP handlers need.
// Bot and Notifier may be nil when the Telegram side is unconfigured.
type ApiDependencies struct {
	Config       *config.Config
	Orchestrator *chat.Orchestrator
	Store        session.Store
	Notifier     *telegram.Notifier
	Bot          *telegram.BotClient
	BotHandler   *handlers.BotHandler
	Broker       *events.Broker
	Metrics      *metrics.Metrics
	Logger       *logrus.Logger
}

// SetupRoutes wires all API routes onto the router.
func SetupRoutes(r chi.Router, deps ApiDependencies) {
	h := &apiHandler{deps: deps}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Get("/session-status", h.SessionStatus)
		r.Post("/notify-admin", h.NotifyAdmin)
		r.Post("/send-to-owner", h.SendToOwner)
		r.Get("/session-events", h.SessionEvents)
		r.Get("/validate-session", h.ValidateSession)

		r.Post("/telegram-webhook", h.TelegramWebhook)
		r.Get("/telegram-webhook", h.TelegramWebhookStatus)
		r.Get("/set-webhook", h.SetWebhook)
		r.Post("/set-webhook", h.WebhookInfo)

		r.Post("/workflow", h.Workflow)

		// Debug-only surface, not for production traffic.
		r.Get("/debug-sessions", h.DebugSessions)
		r.Delete("/debug-sessions", h.DeleteSession)
	})
}

type apiHandler struct {
	deps ApiDependencies
}

func (h *apiHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
