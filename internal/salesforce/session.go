package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Session is the CRM connection shared by every request of the service.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	InstanceURL  string    `json:"instance_url"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Valid reports whether the session can be used for API calls.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && s.InstanceURL != ""
}

// SessionStore persists the CRM session.
type SessionStore interface {
	Get(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context) error
}

// MemorySessionStore keeps the session in process memory.
type MemorySessionStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewMemorySessionStore returns an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Get(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.session.Valid() {
		return nil, ErrNoSession
	}
	copied := *m.session
	return &copied, nil
}

func (m *MemorySessionStore) Save(ctx context.Context, session *Session) error {
	if !session.Valid() {
		return errors.New("salesforce: refusing to store incomplete session")
	}
	copied := *session
	m.mu.Lock()
	m.session = &copied
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}

const defaultSessionKey = "salesforce:session"

var sessionTracer = otel.Tracer("supplier-onboarding.internal.salesforce.session")

// RedisSessionStore shares the session between API replicas through Redis.
type RedisSessionStore struct {
	client *redis.Client
	key    string
	tracer trace.Tracer
}

// NewRedisSessionStore creates a Redis-backed store. An empty key selects
// "salesforce:session".
func NewRedisSessionStore(client *redis.Client, key string) *RedisSessionStore {
	if client == nil {
		panic("salesforce: redis client cannot be nil")
	}
	if strings.TrimSpace(key) == "" {
		key = defaultSessionKey
	}
	return &RedisSessionStore{client: client, key: key, tracer: sessionTracer}
}

func (r *RedisSessionStore) Get(ctx context.Context) (*Session, error) {
	ctx, span := r.tracer.Start(ctx, "salesforce.session.get", trace.WithAttributes(attribute.String("redis.key", r.key)))
	defer span.End()

	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("salesforce: load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("salesforce: decode session: %w", err)
	}
	if !session.Valid() {
		return nil, ErrNoSession
	}
	return &session, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	ctx, span := r.tracer.Start(ctx, "salesforce.session.save")
	defer span.End()

	if !session.Valid() {
		return errors.New("salesforce: refusing to store incomplete session")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("salesforce: encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, payload, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("salesforce: save session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("salesforce: clear session: %w", err)
	}
	return nil
}

var (
	_ SessionStore = (*MemorySessionStore)(nil)
	_ SessionStore = (*RedisSessionStore)(nil)
)
