// Package gateway hosts the use-case level procedures of the edge service:
// checkout and subscription creation, receipt lookup and webhook intake.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/payhub/internal/common"
	"github.com/noah-isme/payhub/internal/notify"
	"github.com/noah-isme/payhub/internal/obs"
	"github.com/noah-isme/payhub/internal/provider"
	"github.com/noah-isme/payhub/internal/store"
)

// CheckoutRequest is the payload accepted by POST /api/checkout.
type CheckoutRequest struct {
	Provider    string            `json:"provider" validate:"required"`
	UserID      string            `json:"userId" validate:"required"`
	Email       string            `json:"email" validate:"required,email"`
	Amount      int64             `json:"amount" validate:"required,gt=0"`
	Currency    string            `json:"currency"`
	ProductName string            `json:"productName" validate:"required"`
	SuccessURL  string            `json:"successUrl" validate:"omitempty,url"`
	CancelURL   string            `json:"cancelUrl" validate:"omitempty,url"`
	Metadata    map[string]string `json:"metadata"`
}

// SubscriptionRequest is the payload accepted by POST /api/subscription.
// planId and priceId are aliases; exactly one must be present.
type SubscriptionRequest struct {
	Provider   string `json:"provider" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	PlanID     string `json:"planId"`
	PriceID    string `json:"priceId"`
	SuccessURL string `json:"successUrl" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl" validate:"omitempty,url"`
}

// CheckoutData is returned for a created checkout session.
type CheckoutData struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
	Provider    string `json:"provider"`
}

// SubscriptionData is returned for a created subscription.
type SubscriptionData struct {
	SubscriptionID string `json:"subscriptionId"`
	CheckoutURL    string `json:"checkoutUrl"`
	Provider       string `json:"provider"`
}

// ReceiptData merges the locally stored session with live processor detail.
type ReceiptData struct {
	Session         store.Session   `json:"session"`
	ProviderDetails json.RawMessage `json:"providerDetails"`
}

// Service composes the registry, the store and the notifier per request.
type Service struct {
	Registry *provider.Registry
	Store    *store.Store
	Notifier *notify.Notifier
	Validate *validator.Validate
	Logger   zerolog.Logger

	DefaultCurrency string
	SessionTTL      time.Duration
	SubscriptionTTL time.Duration
	EventTTL        time.Duration
	MetricsTTL      time.Duration
}

// Checkout validates the request, creates a processor checkout session and
// persists its metadata under the processor-issued id. Validation happens
// before any network call.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutData, error) {
	if err := s.validateStruct(req); err != nil {
		return CheckoutData{}, err
	}
	adapter, err := s.Registry.Resolve(req.Provider)
	if err != nil {
		return CheckoutData{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.DefaultCurrency
	}

	result, err := adapter.CreateCheckoutSession(ctx, provider.CheckoutParams{
		UserID:     req.UserID,
		Email:      req.Email,
		Amount:     req.Amount,
		Currency:   currency,
		Product:    req.ProductName,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Metadata:   req.Metadata,
	})
	if err != nil {
		s.countCheckout(adapter.Name(), "error")
		return CheckoutData{}, err
	}

	session := store.Session{
		ID:        result.SessionID,
		UserID:    req.UserID,
		Email:     req.Email,
		Amount:    req.Amount,
		Currency:  currency,
		Product:   req.ProductName,
		Provider:  adapter.Name(),
		Kind:      store.KindCheckout,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.SaveSession(ctx, session, s.SessionTTL); err != nil {
		s.countCheckout(adapter.Name(), "error")
		return CheckoutData{}, fmt.Errorf("persist session: %w", err)
	}

	s.countCheckout(adapter.Name(), "created")
	s.bumpMetric(ctx, "checkout")
	return CheckoutData{SessionID: result.SessionID, CheckoutURL: result.CheckoutURL, Provider: result.Provider}, nil
}

// Receipt loads the stored session and merges it with live processor detail.
// A missing local record is a 404-class failure distinct from a processor
// failure.
func (s *Service) Receipt(ctx context.Context, sessionID string) (ReceiptData, error) {
	if strings.TrimSpace(sessionID) == "" {
		return ReceiptData{}, common.ValidationError("sessionId is required", nil)
	}
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return ReceiptData{}, err
	}
	adapter, err := s.Registry.Resolve(session.Provider)
	if err != nil {
		return ReceiptData{}, err
	}
	details, err := adapter.GetSession(ctx, sessionID)
	if err != nil {
		return ReceiptData{}, err
	}
	return ReceiptData{Session: session, ProviderDetails: details}, nil
}

// Subscribe mirrors Checkout for recurring billing; metadata persists with
// the longer subscription TTL and is tagged as a subscription record.
func (s *Service) Subscribe(ctx context.Context, req SubscriptionRequest) (SubscriptionData, error) {
	if err := s.validateStruct(req); err != nil {
		return SubscriptionData{}, err
	}
	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		planID = strings.TrimSpace(req.PriceID)
	}
	if planID == "" {
		return SubscriptionData{}, common.ValidationError("planId or priceId is required", nil)
	}
	adapter, err := s.Registry.Resolve(req.Provider)
	if err != nil {
		return SubscriptionData{}, err
	}

	result, err := adapter.CreateSubscription(ctx, provider.SubscriptionParams{
		UserID:     req.UserID,
		Email:      req.Email,
		PlanID:     planID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		s.countSubscription(adapter.Name(), "create", "error")
		return SubscriptionData{}, err
	}

	session := store.Session{
		ID:        result.SessionID,
		UserID:    req.UserID,
		Email:     req.Email,
		PlanID:    planID,
		Provider:  adapter.Name(),
		Kind:      store.KindSubscription,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.SaveSession(ctx, session, s.SubscriptionTTL); err != nil {
		s.countSubscription(adapter.Name(), "create", "error")
		return SubscriptionData{}, fmt.Errorf("persist subscription: %w", err)
	}

	s.countSubscription(adapter.Name(), "create", "created")
	s.bumpMetric(ctx, "subscription")
	return SubscriptionData{SubscriptionID: result.SessionID, CheckoutURL: result.CheckoutURL, Provider: result.Provider}, nil
}

// CancelSubscription recovers the owning processor from the local record and
// delegates cancellation. The local store is the source of truth for
// processor routing: a missing record is a 404 even if the processor might
// still know the id.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if strings.TrimSpace(subscriptionID) == "" {
		return common.ValidationError("subscriptionId is required", nil)
	}
	record, err := s.Store.GetSession(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if record.Kind != store.KindSubscription {
		return common.NotFoundError("subscription not found")
	}
	adapter, err := s.Registry.Resolve(record.Provider)
	if err != nil {
		return err
	}
	if err := adapter.CancelSubscription(ctx, subscriptionID); err != nil {
		s.countSubscription(adapter.Name(), "cancel", "error")
		return err
	}
	s.countSubscription(adapter.Name(), "cancel", "cancelled")
	s.bumpMetric(ctx, "subscription_cancel")
	return nil
}

func (s *Service) validateStruct(v any) error {
	if s.Validate == nil {
		return nil
	}
	err := s.Validate.Struct(v)
	if err == nil {
		return nil
	}
	if invalid, ok := err.(*validator.InvalidValidationError); ok {
		return common.ValidationError("invalid request", invalid.Error())
	}
	fields := make([]string, 0, 4)
	for _, fe := range err.(validator.ValidationErrors) {
		fields = append(fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return common.ValidationError("invalid request", fields)
}

func (s *Service) countCheckout(providerName, result string) {
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(providerName, result).Inc()
	}
}

func (s *Service) countSubscription(providerName, action, result string) {
	if obs.SubscriptionTotal != nil {
		obs.SubscriptionTotal.WithLabelValues(providerName, action, result).Inc()
	}
}

func (s *Service) bumpMetric(ctx context.Context, category string) {
	if s.Store == nil {
		return
	}
	if err := s.Store.IncrMetric(ctx, category, s.MetricsTTL); err != nil {
		s.Logger.Warn().Err(err).Str("category", category).Msg("increment metric")
	}
}
