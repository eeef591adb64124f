// Package store wraps the shared Redis key-value service: checkout and
// subscription session records, the processed-event ledger and best-effort
// metric counters. Every key carries a TTL; consistency comes from idempotent
// writes, not transactions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/payhub/internal/common"
)

// Session kinds.
const (
	KindCheckout     = "checkout"
	KindSubscription = "subscription"
)

// Session is the minimal metadata persisted per checkout or subscription,
// keyed by the processor-issued session id. Immutable once written.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Amount    int64     `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Product   string    `json:"product,omitempty"`
	PlanID    string    `json:"planId,omitempty"`
	Provider  string    `json:"provider"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventMarker records that a (provider, event id) pair has been handled.
type EventMarker struct {
	EventType   string    `json:"eventType"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Store provides typed access to the Redis-backed state.
type Store struct {
	R *redis.Client
}

func sessionKey(id string) string { return "session:" + id }

func eventKey(provider, eventID string) string {
	return fmt.Sprintf("evt:%s:%s", provider, eventID)
}

func metricKey(category string, day time.Time) string {
	return fmt.Sprintf("metrics:%s:%s", category, day.UTC().Format("2006-01-02"))
}

// SaveSession writes the session record under its processor-issued id.
func (s *Store) SaveSession(ctx context.Context, session Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, sessionKey(session.ID), payload, ttl).Err()
}

// GetSession loads a session record. A missing or expired key yields a
// NOT_FOUND error distinct from a processor-side failure.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	raw, err := s.R.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, common.NotFoundError("session not found")
	}
	if err != nil {
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// DeleteSession removes a session record.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.R.Del(ctx, sessionKey(id)).Err()
}

// MarkEventProcessed records the (provider, event id) marker with SETNX and
// reports whether this call was the first to do so. The atomic check-and-set
// closes the race between concurrent deliveries of the same event id: at most
// one caller observes first == true.
func (s *Store) MarkEventProcessed(ctx context.Context, provider, eventID, eventType string, ttl time.Duration) (bool, error) {
	marker := EventMarker{EventType: eventType, ProcessedAt: time.Now().UTC()}
	payload, err := json.Marshal(marker)
	if err != nil {
		return false, err
	}
	return s.R.SetNX(ctx, eventKey(provider, eventID), payload, ttl).Result()
}

// EventProcessed reports whether the marker for (provider, event id) exists.
func (s *Store) EventProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := s.R.Exists(ctx, eventKey(provider, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrMetric bumps the daily counter for a category. Callers treat failures
// as best-effort; correctness never gates on the result.
func (s *Store) IncrMetric(ctx context.Context, category string, ttl time.Duration) error {
	key := metricKey(category, time.Now())
	pipe := s.R.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// MetricValue reads the current daily counter for a category.
func (s *Store) MetricValue(ctx context.Context, category string) (int64, error) {
	v, err := s.R.Get(ctx, metricKey(category, time.Now())).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Ping probes the Redis connection for readiness checks.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.R.Ping(ctx).Err()
}
