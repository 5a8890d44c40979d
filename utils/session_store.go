package utils

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notice categories understood by the templates.
const (
	NoticeInfo    = "info"
	NoticeSuccess = "success"
	NoticeWarning = "warning"
	NoticeDanger  = "danger"
)

// ErrSessionNotFound is returned by SessionStore.Load for unknown or expired ids.
var ErrSessionNotFound = errors.New("session not found")

// Notice is a one-time message shown on the next rendered page.
type Notice struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the server-side state bound to a client cookie.
type Session struct {
	ID      string   `json:"id"`
	UserID  uint     `json:"user_id,omitempty"`
	Notices []Notice `json:"notices,omitempty"`

	dirty bool
}

// Authenticated reports whether a principal is bound to the session.
func (s *Session) Authenticated() bool {
	return s.UserID != 0
}

// AddNotice queues a notice for the next rendered page.
func (s *Session) AddNotice(category, message string) {
	s.Notices = append(s.Notices, Notice{Category: category, Message: message})
	s.dirty = true
}

// TakeNotices returns and clears the queued notices.
func (s *Session) TakeNotices() []Notice {
	if len(s.Notices) == 0 {
		return nil
	}
	out := s.Notices
	s.Notices = nil
	s.dirty = true
	return out
}

// MarkDirty forces the session to be persisted at the end of the request.
func (s *Session) MarkDirty() { s.dirty = true }

// Dirty reports whether the session changed during the request.
func (s *Session) Dirty() bool { return s.dirty }

// SessionStore persists sessions between requests.
type SessionStore interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory (single-instance only).
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemorySessionStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupExpiredLocked()

	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	var s Session
	if err := json.Unmarshal(entry.data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MemorySessionStore) Save(_ context.Context, s *Session, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[s.ID] = memoryEntry{data: b, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	s.dirty = false
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) cleanupExpiredLocked() {
	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, id)
		}
	}
}

// RedisSessionStore keeps sessions in Redis with a TTL per key.
type RedisSessionStore struct {
	rc     *redis.Client
	prefix string
}

// NewRedisSessionStore creates a store on top of an existing client.
func NewRedisSessionStore(rc *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rc: rc, prefix: "session:"}
}

func (r *RedisSessionStore) Load(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := r.rc.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.rc.Set(ctx, r.prefix+s.ID, b, ttl).Err(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.rc.Del(ctx, r.prefix+id).Err()
}
