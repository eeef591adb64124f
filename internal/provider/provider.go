// Package provider contains the adapters that translate generic checkout,
// subscription and webhook operations into each payment processor's API.
package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// CheckoutParams captures the information required to open a hosted checkout
// session with a processor. Amount is in minor currency units.
type CheckoutParams struct {
	UserID     string
	Email      string
	Amount     int64
	Currency   string
	Product    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// SubscriptionParams mirrors CheckoutParams for recurring billing; the plan
// or price identifier replaces the amount.
type SubscriptionParams struct {
	UserID     string
	Email      string
	PlanID     string
	SuccessURL string
	CancelURL  string
}

// CheckoutResult is the minimal information returned when a processor creates
// a checkout or subscription session.
type CheckoutResult struct {
	SessionID   string
	CheckoutURL string
	Provider    string
}

// WebhookEvent is the normalised form of a verified processor callback. It is
// transient: only its (provider, event id) identity is ever persisted.
type WebhookEvent struct {
	Provider   string
	EventID    string
	EventType  string
	Payload    map[string]any
	Raw        json.RawMessage
	ReceivedAt time.Time
}

// Adapter abstracts the operations required from an upstream payment
// processor. Name is a dispatch and log key, never a security boundary.
type Adapter interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutResult, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookEvent, error)
	GetSession(ctx context.Context, sessionID string) (json.RawMessage, error)
	CreateSubscription(ctx context.Context, p SubscriptionParams) (CheckoutResult, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
