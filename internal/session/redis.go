package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/abelmekonnen/portfolio-livechat/internal/models"
)

const redisKeyPrefix = "livechat:session:"

// RedisStore persists sessions as JSON blobs with Redis-native expiration,
// giving sessions cross-process durability between deploys.
type RedisStore struct {
	rdb       *redis.Client
	ttl       time.Duration
	publisher Publisher
	logger    *logrus.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(url string, ttl time.Duration, publisher Publisher, logger *logrus.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if publisher == nil {
		publisher = NopPublisher{}
	}
	logger.Info("Successfully connected to Redis")
	return &RedisStore{rdb: rdb, ttl: ttl, publisher: publisher, logger: logger}, nil
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) Create(ctx context.Context, fields Fields) (string, error) {
	sess := newSession(fields)
	if err := s.write(ctx, sess); err != nil {
		return "", err
	}
	s.logger.WithField("session_id", sess.SessionID).Info("Session created")
	return sess.SessionID, nil
}

// Get returns ErrNotFound for missing keys and for transient Redis
// failures: a degraded cache must not fail the caller's flow.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("Redis get failed, treating as not found")
		return nil, ErrNotFound
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("Corrupt session record, treating as not found")
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *models.Session) error {
	sess.Touch()
	if err := s.write(ctx, sess); err != nil {
		return err
	}
	s.publisher.Publish(sess.SessionID, sess, eventFor(sess))
	return nil
}

func (s *RedisStore) write(ctx context.Context, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", sess.SessionID, err)
	}
	if err := s.rdb.Set(ctx, redisKey(sess.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, redisKey(sessionID)).Err()
}

// List scans all session keys. SCAN-based, debug surface only.
func (s *RedisStore) List(ctx context.Context) ([]*models.Session, error) {
	var out []*models.Session
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var sess models.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		out = append(out, &sess)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
