package provider

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/payhub/internal/common"
	"github.com/noah-isme/payhub/internal/resilience"
	"github.com/noah-isme/payhub/internal/signature"
)

// Stripe implements the Adapter interface against the Stripe REST API.
// Webhooks are verified locally: HMAC-SHA256 over "<ts>.<body>" with the
// endpoint's signing secret, carried in the Stripe-Signature header.
type Stripe struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Tolerance     time.Duration
	HTTP          *resilience.HTTPClient
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) baseURL() string {
	host := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if host == "" {
		return "https://api.stripe.com"
	}
	return host
}

// CreateCheckoutSession opens a hosted Checkout session in payment mode with
// a single ad-hoc line item priced from the request.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("customer_email", p.Email)
	form.Set("client_reference_id", p.UserID)
	form.Set("line_items[0][price_data][currency]", strings.ToLower(p.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", p.Product)
	form.Set("line_items[0][quantity]", "1")
	if p.SuccessURL != "" {
		form.Set("success_url", p.SuccessURL)
	}
	if p.CancelURL != "" {
		form.Set("cancel_url", p.CancelURL)
	}
	for k, v := range p.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := s.call(ctx, http.MethodPost, "/v1/checkout/sessions", form, &out); err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{SessionID: out.ID, CheckoutURL: out.URL, Provider: s.Name()}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the raw payload.
func (s *Stripe) VerifyWebhook(r *http.Request, body []byte) (WebhookEvent, error) {
	header := r.Header.Get("Stripe-Signature")
	parts, err := signature.ParseHeader(header, ",")
	if err != nil {
		return WebhookEvent{}, common.SignatureError("missing or malformed Stripe-Signature header", err)
	}
	ts, err := signature.ParseTimestamp(parts["t"])
	if err != nil {
		return WebhookEvent{}, common.SignatureError("invalid signature timestamp", err)
	}
	if !signature.WithinTolerance(ts, time.Now(), s.Tolerance) {
		return WebhookEvent{}, common.SignatureError("signature timestamp outside tolerance", nil)
	}
	signed := fmt.Sprintf("%d.%s", ts, body)
	expected, err := signature.Compute(sha256.New, s.WebhookSecret, []byte(signed))
	if err != nil {
		return WebhookEvent{}, common.SignatureError("webhook secret not configured", err)
	}
	ok, err := signature.Match(parts["v1"], expected)
	if err != nil {
		return WebhookEvent{}, common.SignatureError("missing v1 signature element", err)
	}
	if !ok {
		return WebhookEvent{}, common.SignatureError("signature mismatch", nil)
	}

	var evt struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object map[string]any `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return WebhookEvent{}, common.SignatureError("unparseable event payload", err)
	}
	if evt.ID == "" {
		return WebhookEvent{}, common.SignatureError("event id missing from payload", nil)
	}
	return WebhookEvent{
		Provider:   s.Name(),
		EventID:    evt.ID,
		EventType:  evt.Type,
		Payload:    evt.Data.Object,
		Raw:        body,
		ReceivedAt: time.Now(),
	}, nil
}

// GetSession fetches the live processor-side detail for a checkout session.
func (s *Stripe) GetSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := s.call(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSubscription opens a Checkout session in subscription mode for an
// existing price id.
func (s *Stripe) CreateSubscription(ctx context.Context, p SubscriptionParams) (CheckoutResult, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("customer_email", p.Email)
	form.Set("client_reference_id", p.UserID)
	form.Set("line_items[0][price]", p.PlanID)
	form.Set("line_items[0][quantity]", "1")
	if p.SuccessURL != "" {
		form.Set("success_url", p.SuccessURL)
	}
	if p.CancelURL != "" {
		form.Set("cancel_url", p.CancelURL)
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := s.call(ctx, http.MethodPost, "/v1/checkout/sessions", form, &out); err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{SessionID: out.ID, CheckoutURL: out.URL, Provider: s.Name()}, nil
}

// CancelSubscription cancels the subscription immediately.
func (s *Stripe) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return s.call(ctx, http.MethodDelete, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, nil)
}

func (s *Stripe) call(ctx context.Context, method, path string, form url.Values, out any) error {
	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL()+path, bodyReader)
	if err != nil {
		return common.ProcessorError(s.Name(), err, "")
	}
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return common.ProcessorError(s.Name(), err, "")
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.ProcessorError(s.Name(), err, "")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.ProcessorError(s.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode), string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return common.ProcessorError(s.Name(), err, string(raw))
	}
	return nil
}
