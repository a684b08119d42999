// Package events fans session state changes out to push subscribers.
package events

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/abelmekonnen/portfolio-livechat/internal/models"
)

// Frame is one push event as serialized to a subscriber.
type Frame struct {
	Type    string          `json:"type"`
	Session *models.Session `json:"session"`
}

// Broker is an in-process, best-effort publish/subscribe hub keyed by
// session id. It implements session.Publisher. Frames to slow subscribers
// are dropped; the widget's fallback polling recovers missed updates.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[chan Frame]struct{}
	logger *logrus.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *logrus.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[chan Frame]struct{}),
		logger: logger,
	}
}

// Subscribe registers for updates on one session. The returned cancel
// function must be called when the subscriber goes away.
func (b *Broker) Subscribe(sessionID string) (<-chan Frame, func()) {
	ch := make(chan Frame, 8)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan Frame]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[sessionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, sessionID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a session update to all subscribers of that session.
// Non-blocking: a full subscriber buffer loses the frame.
func (b *Broker) Publish(sessionID string, sess *models.Session, event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- Frame{Type: event, Session: sess}:
		default:
			b.logger.WithField("session_id", sessionID).Debug("Dropped push frame for slow subscriber")
		}
	}
}

// SubscriberCount reports the number of live subscriptions across sessions.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, set := range b.subs {
		total += len(set)
	}
	return total
}
