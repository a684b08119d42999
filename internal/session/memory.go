package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abelmekonnen/portfolio-livechat/internal/models"
)

// MemoryStore keeps sessions in a mutex-guarded map for the process
// lifetime. It is the fallback when no Redis URL is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*memoryEntry
	ttl       time.Duration
	publisher Publisher
	logger    *logrus.Logger
	stopOnce  sync.Once
	stop      chan struct{}
}

type memoryEntry struct {
	sess      *models.Session
	expiresAt time.Time
}

// NewMemoryStore creates a memory-backed store with the given record TTL
// and starts a janitor that evicts expired sessions.
func NewMemoryStore(ttl time.Duration, publisher Publisher, logger *logrus.Logger) *MemoryStore {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	s := &MemoryStore{
		sessions:  make(map[string]*memoryEntry),
		ttl:       ttl,
		publisher: publisher,
		logger:    logger,
		stop:      make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) Create(_ context.Context, fields Fields) (string, error) {
	sess := newSession(fields)
	s.mu.Lock()
	s.sessions[sess.SessionID] = &memoryEntry{sess: sess, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	s.logger.WithField("session_id", sess.SessionID).Info("Session created")
	return sess.SessionID, nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	cp := cloneSession(entry.sess)
	return cp, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *models.Session) error {
	sess.Touch()
	cp := cloneSession(sess)
	s.mu.Lock()
	s.sessions[sess.SessionID] = &memoryEntry{sess: cp, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	s.publisher.Publish(sess.SessionID, cp, eventFor(cp))
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.Session, error) {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Session, 0, len(s.sessions))
	for _, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			continue
		}
		out = append(out, cloneSession(entry.sess))
	}
	return out, nil
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, entry := range s.sessions {
				if now.After(entry.expiresAt) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// cloneSession copies a session so callers cannot mutate stored state
// without going through Save.
func cloneSession(sess *models.Session) *models.Session {
	cp := *sess
	if sess.AcceptedBy != nil {
		ab := *sess.AcceptedBy
		cp.AcceptedBy = &ab
	}
	cp.UserMessages = append([]models.ChatEntry(nil), sess.UserMessages...)
	cp.OwnerMessages = append([]models.ChatEntry(nil), sess.OwnerMessages...)
	return &cp
}
