// Package drafts keeps wizard progress server-side so a supplier can resume
// from another device.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

const (
	defaultPrefix = "supplier:draft:"
	defaultTTL    = 30 * 24 * time.Hour
)

// ErrNotFound is returned for unknown or expired drafts.
var ErrNotFound = errors.New("drafts: not found")

var draftTracer = otel.Tracer("supplier-onboarding.internal.drafts")

// Store persists drafts in Redis with a sliding TTL.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	tracer trace.Tracer
}

// NewStore creates a Redis-backed draft store. A non-positive ttl selects 30 days.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if client == nil {
		panic("drafts: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, prefix: defaultPrefix, ttl: ttl, tracer: draftTracer}
}

func (s *Store) key(id string) string {
	return s.prefix + strings.ToLower(id)
}

// Get loads a draft and extends its lifetime.
func (s *Store) Get(ctx context.Context, id string) (*supplierapi.Draft, error) {
	ctx, span := s.tracer.Start(ctx, "drafts.get", trace.WithAttributes(attribute.String("draft.id", id)))
	defer span.End()

	raw, err := s.client.GetEx(ctx, s.key(id), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "redis get failed")
		return nil, fmt.Errorf("drafts: load %s: %w", id, err)
	}
	var d supplierapi.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("drafts: decode %s: %w", id, err)
	}
	return &d, nil
}

// Put replaces a draft.
func (s *Store) Put(ctx context.Context, id string, d *supplierapi.Draft) error {
	ctx, span := s.tracer.Start(ctx, "drafts.put", trace.WithAttributes(attribute.String("draft.id", id)))
	defer span.End()

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("drafts: encode %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), payload, s.ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "redis set failed")
		return fmt.Errorf("drafts: save %s: %w", id, err)
	}
	return nil
}

// Delete removes a draft. Deleting an unknown draft is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "drafts.delete", trace.WithAttributes(attribute.String("draft.id", id)))
	defer span.End()

	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("drafts: delete %s: %w", id, err)
	}
	return nil
}
