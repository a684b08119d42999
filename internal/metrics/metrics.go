package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChatTurns            *prometheus.CounterVec
	EscalationsTriggered *prometheus.CounterVec
	SessionsCreated      prometheus.Counter
	CompletionDuration   *prometheus.HistogramVec
	TelegramSendFailures prometheus.Counter
	PushSubscribers      prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		ChatTurns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livechat_chat_turns_total",
			Help: "Total chat turns handled, labeled by orchestrator branch",
		}, []string{"branch"}),
		EscalationsTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livechat_escalations_total",
			Help: "Total escalation attempts, labeled by outcome",
		}, []string{"outcome"}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livechat_sessions_created_total",
			Help: "Total live chat sessions created",
		}),
		CompletionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livechat_completion_duration_seconds",
			Help:    "Time taken for generative-text completions",
			Buckets: prometheus.DefBuckets,
		}, []string{"model", "outcome"}),
		TelegramSendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livechat_telegram_send_failures_total",
			Help: "Total failed sends to the operator channel",
		}),
		PushSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livechat_push_subscribers",
			Help: "Current number of live push-event subscriptions",
		}),
	}
}
