package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"aiconsole/internal/config"
	"aiconsole/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SessionRecord is the server-side half of a login session. It carries only
// the user reference; account state is re-read on every request.
type SessionRecord struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps sessions keyed by session ID. Implementations must be
// safe for concurrent use. Get returns ErrSessionNotFound for unknown or
// expired sessions; Delete of a missing session is not an error.
type SessionStore interface {
	Create(ctx context.Context, rec SessionRecord) error
	Get(ctx context.Context, id string) (*SessionRecord, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// NewSessionStore builds the backend selected in the config.
func NewSessionStore(cfg *config.Config, db *gorm.DB) (SessionStore, error) {
	switch cfg.Session.Store {
	case config.SessionStoreMemory, "":
		return NewMemorySessionStore(), nil
	case config.SessionStoreDatabase:
		return NewDBSessionStore(db), nil
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisSessionStore(client, cfg.Redis.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Session.Store)
	}
}

// MemorySessionStore holds sessions for the lifetime of the process.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionRecord
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]SessionRecord),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Create(_ context.Context, rec SessionRecord) error {
	m.mu.Lock()
	m.sessions[rec.ID] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	rec, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !m.now().Before(rec.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Ping(context.Context) error { return nil }

// Len reports the number of stored sessions, expired ones included.
func (m *MemorySessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// DBSessionStore persists sessions in the sessions table so they survive
// restarts.
type DBSessionStore struct {
	db *gorm.DB
}

func NewDBSessionStore(db *gorm.DB) *DBSessionStore {
	return &DBSessionStore{db: db}
}

func (s *DBSessionStore) Create(ctx context.Context, rec SessionRecord) error {
	session := &models.Session{
		ID:        rec.ID,
		UserID:    rec.UserID,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *DBSessionStore) Get(ctx context.Context, id string) (*SessionRecord, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).Where("id = ? AND expires_at > ?", id, time.Now().UTC()).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &SessionRecord{
		ID:        session.ID,
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *DBSessionStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{}).Error
}

func (s *DBSessionStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// DeleteExpired removes expired sessions
func (s *DBSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", time.Now().UTC()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// RedisSessionStore keeps each session under its own key with a TTL equal
// to the remaining session lifetime.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisSessionStore) Create(ctx context.Context, rec SessionRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, s.key(rec.ID), payload, ttl).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*SessionRecord, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var rec SessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
