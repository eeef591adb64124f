package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/payhub/internal/common"
	"github.com/noah-isme/payhub/internal/resilience"
)

// tokenSafetyMargin expires cached OAuth tokens early so a token is never
// presented past its declared lifetime.
const tokenSafetyMargin = 5 * time.Minute

// PayPal implements the Adapter interface against the PayPal REST API.
// Unlike the HMAC providers, webhook verification is delegated to PayPal's
// verify-webhook-signature endpoint: the transmission headers, the raw event
// and the configured webhook id are sent back and PayPal answers with a
// verification status.
//
// The access token cache lives on the adapter instance. Request handling is
// assumed to start cold; when the runtime does reuse an instance the cached
// token is only trusted until its expiry minus the safety margin.
type PayPal struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	BaseURL      string
	Sandbox      bool
	HTTP         *resilience.HTTPClient

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
}

func (p *PayPal) Name() string { return "paypal" }

func (p *PayPal) baseURL() string {
	host := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if host != "" {
		return host
	}
	if p.Sandbox {
		return "https://api-m.sandbox.paypal.com"
	}
	return "https://api-m.paypal.com"
}

func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Now().Before(p.tokenExpiresAt.Add(-tokenSafetyMargin)) {
		return p.token, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+"/v1/oauth2/token", form)
	if err != nil {
		return "", common.ProcessorError(p.Name(), err, "")
	}
	req.SetBasicAuth(p.ClientID, p.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.HTTP.Do(ctx, req)
	if err != nil {
		return "", common.ProcessorError(p.Name(), err, "")
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", common.ProcessorError(p.Name(), err, "")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", common.ProcessorError(p.Name(), fmt.Errorf("token request status %d", resp.StatusCode), string(raw))
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.AccessToken == "" {
		return "", common.ProcessorError(p.Name(), fmt.Errorf("unparseable token response"), string(raw))
	}
	p.token = out.AccessToken
	p.tokenExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return p.token, nil
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

func approveLink(links []paypalLink) string {
	for _, l := range links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

// CreateCheckoutSession creates a one-time order and returns its approval URL.
func (p *PayPal) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (CheckoutResult, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"description": cp.Product,
			"custom_id":   cp.UserID,
			"amount": map[string]string{
				"currency_code": strings.ToUpper(cp.Currency),
				"value":         minorUnitsToDecimal(cp.Amount),
			},
		}},
		"application_context": map[string]string{
			"return_url": cp.SuccessURL,
			"cancel_url": cp.CancelURL,
		},
	}
	var out struct {
		ID    string       `json:"id"`
		Links []paypalLink `json:"links"`
	}
	if err := p.call(ctx, http.MethodPost, "/v2/checkout/orders", payload, &out); err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{SessionID: out.ID, CheckoutURL: approveLink(out.Links), Provider: p.Name()}, nil
}

// VerifyWebhook delegates verification to PayPal. A verification status other
// than SUCCESS is a signature failure; a failed round trip is a processor
// failure.
func (p *PayPal) VerifyWebhook(r *http.Request, body []byte) (WebhookEvent, error) {
	transmissionID := r.Header.Get("Paypal-Transmission-Id")
	transmissionTime := r.Header.Get("Paypal-Transmission-Time")
	transmissionSig := r.Header.Get("Paypal-Transmission-Sig")
	certURL := r.Header.Get("Paypal-Cert-Url")
	authAlgo := r.Header.Get("Paypal-Auth-Algo")
	if transmissionID == "" || transmissionTime == "" || transmissionSig == "" || certURL == "" || authAlgo == "" {
		return WebhookEvent{}, common.SignatureError("missing paypal transmission headers", nil)
	}

	payload := map[string]any{
		"transmission_id":   transmissionID,
		"transmission_time": transmissionTime,
		"transmission_sig":  transmissionSig,
		"cert_url":          certURL,
		"auth_algo":         authAlgo,
		"webhook_id":        p.WebhookID,
		"webhook_event":     json.RawMessage(body),
	}
	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := p.call(r.Context(), http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &out); err != nil {
		return WebhookEvent{}, err
	}
	if out.VerificationStatus != "SUCCESS" {
		return WebhookEvent{}, common.SignatureError("paypal verification status "+out.VerificationStatus, nil)
	}

	var evt struct {
		ID        string         `json:"id"`
		EventType string         `json:"event_type"`
		Resource  map[string]any `json:"resource"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return WebhookEvent{}, common.SignatureError("unparseable event payload", err)
	}
	if evt.ID == "" {
		return WebhookEvent{}, common.SignatureError("event id missing from payload", nil)
	}
	return WebhookEvent{
		Provider:   p.Name(),
		EventID:    evt.ID,
		EventType:  evt.EventType,
		Payload:    evt.Resource,
		Raw:        body,
		ReceivedAt: time.Now(),
	}, nil
}

// GetSession fetches the live order resource.
func (p *PayPal) GetSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := p.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSubscription creates a billing subscription for an existing plan.
func (p *PayPal) CreateSubscription(ctx context.Context, sp SubscriptionParams) (CheckoutResult, error) {
	payload := map[string]any{
		"plan_id":   sp.PlanID,
		"custom_id": sp.UserID,
		"subscriber": map[string]string{
			"email_address": sp.Email,
		},
		"application_context": map[string]string{
			"return_url": sp.SuccessURL,
			"cancel_url": sp.CancelURL,
		},
	}
	var out struct {
		ID    string       `json:"id"`
		Links []paypalLink `json:"links"`
	}
	if err := p.call(ctx, http.MethodPost, "/v1/billing/subscriptions", payload, &out); err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{SessionID: out.ID, CheckoutURL: approveLink(out.Links), Provider: p.Name()}, nil
}

// CancelSubscription cancels the billing subscription.
func (p *PayPal) CancelSubscription(ctx context.Context, subscriptionID string) error {
	payload := map[string]string{"reason": "cancelled by customer"}
	return p.call(ctx, http.MethodPost, "/v1/billing/subscriptions/"+url.PathEscape(subscriptionID)+"/cancel", payload, nil)
}

func minorUnitsToDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

func (p *PayPal) call(ctx context.Context, method, path string, payload, out any) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}
	var bodyReader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return common.ProcessorError(p.Name(), err, "")
		}
		bodyReader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL()+path, bodyReader)
	if err != nil {
		return common.ProcessorError(p.Name(), err, "")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.HTTP.Do(ctx, req)
	if err != nil {
		return common.ProcessorError(p.Name(), err, "")
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.ProcessorError(p.Name(), err, "")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.ProcessorError(p.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode), string(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return common.ProcessorError(p.Name(), err, string(raw))
	}
	return nil
}
