// Package chat decides, per visitor turn, between forwarding to a human,
// escalating, and answering with the generative model.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/abelmekonnen/portfolio-livechat/internal/jobs"
	"github.com/abelmekonnen/portfolio-livechat/internal/livechat"
	"github.com/abelmekonnen/portfolio-livechat/internal/llm"
	"github.com/abelmekonnen/portfolio-livechat/internal/metrics"
	"github.com/abelmekonnen/portfolio-livechat/internal/session"
	"github.com/abelmekonnen/portfolio-livechat/internal/telegram"
)

// Canned responses. The orchestrator never returns an error to its caller;
// every failure path ends in one of these.
const (
	emptyPrompt = "Please ask me a question about the environmental consultant's expertise, services, or projects."

	escalationAck = "I've just sent a notification to Abel! He will join this chat shortly to provide personalized assistance. " +
		"In the meantime, is there anything specific about Abel's environmental services I can help with?"

	operatorUnavailable = "Abel is not available at the moment. Please send him an e-mail directly, or ask me your question."

	forwardedAck = "Your message was forwarded to the expert. They will reply here shortly."

	apology = "I apologize, but I'm having trouble responding right now. Please try again or contact the expert directly."
)

// Request is one visitor turn.
type Request struct {
	Message     string `json:"message"`
	VisitorName string `json:"visitorName,omitempty"`
	Email       string `json:"email,omitempty"`
	PageURL     string `json:"pageUrl,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
}

// Result is what the widget receives. Error is diagnostic only and never
// shown verbatim to the visitor.
type Result struct {
	Response  string `json:"response"`
	Escalated bool   `json:"escalated,omitempty"`
	Forwarded bool   `json:"forwarded,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Orchestrator owns the per-turn state machine.
type Orchestrator struct {
	store         session.Store
	notifier      *telegram.Notifier
	detector      *livechat.Detector
	provider      llm.Provider
	primaryModel  string
	fallbackModel string
	jobs          *jobs.Client
	metrics       *metrics.Metrics
	logger        *logrus.Logger
}

// Config wires an Orchestrator. Notifier, jobs and metrics may be nil;
// the corresponding features degrade silently.
type Config struct {
	Store         session.Store
	Notifier      *telegram.Notifier
	Detector      *livechat.Detector
	Provider      llm.Provider
	PrimaryModel  string
	FallbackModel string
	Jobs          *jobs.Client
	Metrics       *metrics.Metrics
	Logger        *logrus.Logger
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Store == nil || cfg.Detector == nil || cfg.Provider == nil || cfg.Logger == nil {
		panic("chat: missing Orchestrator dependencies")
	}
	return &Orchestrator{
		store:         cfg.Store,
		notifier:      cfg.Notifier,
		detector:      cfg.Detector,
		provider:      cfg.Provider,
		primaryModel:  cfg.PrimaryModel,
		fallbackModel: cfg.FallbackModel,
		jobs:          cfg.Jobs,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// Chat evaluates one visitor turn. Branches, in priority order: empty
// input, forward to an accepted session, escalate, generative answer.
func (o *Orchestrator) Chat(ctx context.Context, req Request) Result {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		o.countTurn("empty")
		return Result{Response: emptyPrompt}
	}

	if req.SessionID != "" {
		if result, handled := o.tryForward(ctx, req, message); handled {
			return result
		}
	}

	if o.detector.ShouldEscalate(message) {
		return o.escalate(ctx, req, message)
	}

	o.countTurn("answer")
	return o.answer(ctx, message, "")
}

// tryForward handles the accepted-session branch. Returns handled=false
// when the session is unknown, ended, or not yet accepted, in which case
// the turn falls through to escalation/answering.
func (o *Orchestrator) tryForward(ctx context.Context, req Request, message string) (Result, bool) {
	sess, err := o.store.Get(ctx, req.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			o.logger.WithError(err).WithField("session_id", req.SessionID).Warn("Session lookup failed, continuing without it")
		}
		return Result{}, false
	}
	if !sess.Live() || !o.notifier.Configured() {
		return Result{}, false
	}

	visitorName := req.VisitorName
	if visitorName == "" {
		visitorName = sess.VisitorName
	}

	if err := o.notifier.ForwardToOperator(sess.AcceptedBy.OperatorChatID, visitorName, sess.SessionID, message); err != nil {
		o.logger.WithError(err).WithField("session_id", sess.SessionID).Error("Failed to forward visitor message, degrading to automated answer")
		if o.metrics != nil {
			o.metrics.TelegramSendFailures.Inc()
		}
		o.countTurn("forward_degraded")
		return o.answer(ctx, message, err.Error()), true
	}

	sess.AppendUserMessage(message, visitorName)
	if err := o.store.Save(ctx, sess); err != nil {
		// The operator already has the text; losing the transcript entry
		// is non-fatal.
		o.logger.WithError(err).WithField("session_id", sess.SessionID).Warn("Failed to persist forwarded message")
	}

	o.countTurn("forward")
	return Result{
		Response:  forwardedAck,
		Escalated: true,
		Forwarded: true,
		SessionID: sess.SessionID,
	}, true
}

func (o *Orchestrator) escalate(ctx context.Context, req Request, message string) Result {
	o.countTurn("escalate")

	if !o.notifier.Configured() {
		o.countEscalation("unconfigured")
		return Result{Response: operatorUnavailable}
	}

	res := o.notifier.RequestHuman(ctx, session.Fields{
		VisitorName: req.VisitorName,
		Email:       req.Email,
		PageURL:     req.PageURL,
		Message:     message,
	})
	if !res.Success {
		o.countEscalation("failed")
		return Result{Response: operatorUnavailable, Error: res.Error}
	}

	o.countEscalation("sent")
	if o.metrics != nil {
		o.metrics.SessionsCreated.Inc()
	}
	o.scheduleReminder(ctx, res.SessionID)

	return Result{
		Response:  escalationAck,
		Escalated: true,
		SessionID: res.SessionID,
	}
}

// scheduleReminder asks the job trigger to call back later so a pending
// session nobody joined gets one nudge. Best-effort, skipped when the
// trigger is unconfigured.
func (o *Orchestrator) scheduleReminder(ctx context.Context, sessionID string) {
	if o.jobs == nil {
		return
	}
	if err := o.jobs.Trigger(ctx, "/api/workflow", map[string]string{"sessionId": sessionID}); err != nil {
		o.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to schedule operator reminder")
	}
}

// answer calls the generative model. A decommissioned primary model gets
// exactly one retry on the fallback; any other failure returns the apology.
func (o *Orchestrator) answer(ctx context.Context, message, diagnostic string) Result {
	text, err := o.complete(ctx, o.primaryModel, message)
	if err != nil {
		if llm.IsDecommissioned(err) && o.fallbackModel != "" {
			o.logger.WithField("model", o.primaryModel).Warn("Primary model decommissioned, retrying with fallback")
			if text, err = o.complete(ctx, o.fallbackModel, message); err == nil {
				return Result{Response: text, Error: diagnostic}
			}
		}
		o.logger.WithError(err).Error("Completion failed")
		return Result{Response: apology, Error: firstNonEmpty(diagnostic, err.Error())}
	}
	return Result{Response: text, Error: diagnostic}
}

func (o *Orchestrator) complete(ctx context.Context, model, message string) (string, error) {
	start := time.Now()
	text, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Model:       model,
		System:      portfolioContext,
		Prompt:      message,
		Temperature: 0.7,
	})
	if o.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		o.metrics.CompletionDuration.With(prometheus.Labels{"model": model, "outcome": outcome}).
			Observe(time.Since(start).Seconds())
	}
	return text, err
}

func (o *Orchestrator) countTurn(branch string) {
	if o.metrics != nil {
		o.metrics.ChatTurns.WithLabelValues(branch).Inc()
	}
}

func (o *Orchestrator) countEscalation(outcome string) {
	if o.metrics != nil {
		o.metrics.EscalationsTriggered.WithLabelValues(outcome).Inc()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
