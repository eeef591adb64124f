package provider

import (
	"bytes"
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

// Paddle implements the Adapter interface against the Paddle Billing API.
// Checkout sessions are Paddle transactions; the hosted checkout URL comes
// back on the transaction resource. Webhooks carry a Paddle-Signature header
// of the shape "ts=<unix>;h1=<hex>" with HMAC-SHA256 over "<ts>:<body>".
type Paddle struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	Sandbox       bool
	Tolerance     time.Duration
	HTTP          *resilience.HTTPClient
}

func (p *Paddle) Name() string { return "paddle" }

func (p *Paddle) baseURL() string {
	host := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if host != "" {
		return host
	}
	if p.Sandbox {
		return "https://sandbox-api.paddle.com"
	}
	return "https://api.paddle.com"
}

// transaction is the subset of a Paddle transaction resource the gateway
// needs. Paddle wraps responses in a "data" object; mocked or proxied
// processors sometimes return the resource bare, so both shapes decode.
type transaction struct {
	ID       string `json:"id"`
	Checkout struct {
		URL string `json:"url"`
	} `json:"checkout"`
}

func decodeTransaction(raw []byte) (transaction, error) {
	var envelope struct {
		Data transaction `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data.ID != "" {
		return envelope.Data, nil
	}
	var txn transaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		return transaction{}, err
	}
	return txn, nil
}

// CreateCheckoutSession creates a transaction with a single ad-hoc priced item.
func (p *Paddle) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (CheckoutResult, error) {
	payload := map[string]any{
		"items": []map[string]any{{
			"quantity": 1,
			"price": map[string]any{
				"name":        cp.Product,
				"description": cp.Product,
				"unit_price": map[string]string{
					"amount":        strconv.FormatInt(cp.Amount, 10),
					"currency_code": strings.ToUpper(cp.Currency),
				},
				"product": map[string]string{
					"name":         cp.Product,
					"tax_category": "standard",
				},
			},
		}},
		"custom_data": customData(cp.UserID, cp.Email, cp.Metadata),
	}
	if cp.SuccessURL != "" {
		payload["checkout"] = map[string]string{"url": cp.SuccessURL}
	}

	raw, err := p.call(ctx, http.MethodPost, "/transactions", payload)
	if err != nil {
		return CheckoutResult{}, err
	}
	txn, err := decodeTransaction(raw)
	if err != nil || txn.ID == "" {
		return CheckoutResult{}, common.ProcessorError(p.Name(), fmt.Errorf("unparseable transaction response"), string(raw))
	}
	return CheckoutResult{SessionID: txn.ID, CheckoutURL: txn.Checkout.URL, Provider: p.Name()}, nil
}

// VerifyWebhook checks the Paddle-Signature header against the raw payload.
func (p *Paddle) VerifyWebhook(r *http.Request, body []byte) (WebhookEvent, error) {
	header := r.Header.Get("Paddle-Signature")
	parts, err := signature.ParseHeader(header, ";")
	if err != nil {
		return WebhookEvent{}, common.SignatureError("missing or malformed Paddle-Signature header", err)
	}
	ts, err := signature.ParseTimestamp(parts["ts"])
	if err != nil {
		return WebhookEvent{}, common.SignatureError("invalid signature timestamp", err)
	}
	if !signature.WithinTolerance(ts, time.Now(), p.Tolerance) {
		return WebhookEvent{}, common.SignatureError("signature timestamp outside tolerance", nil)
	}
	signed := fmt.Sprintf("%d:%s", ts, body)
	expected, err := signature.Compute(sha256.New, p.WebhookSecret, []byte(signed))
	if err != nil {
		return WebhookEvent{}, common.SignatureError("webhook secret not configured", err)
	}
	ok, err := signature.Match(parts["h1"], expected)
	if err != nil {
		return WebhookEvent{}, common.SignatureError("missing h1 signature element", err)
	}
	if !ok {
		return WebhookEvent{}, common.SignatureError("signature mismatch", nil)
	}

	var evt struct {
		EventID   string         `json:"event_id"`
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return WebhookEvent{}, common.SignatureError("unparseable event payload", err)
	}
	if evt.EventID == "" {
		return WebhookEvent{}, common.SignatureError("event id missing from payload", nil)
	}
	return WebhookEvent{
		Provider:   p.Name(),
		EventID:    evt.EventID,
		EventType:  evt.EventType,
		Payload:    evt.Data,
		Raw:        body,
		ReceivedAt: time.Now(),
	}, nil
}

// GetSession fetches the live transaction resource.
func (p *Paddle) GetSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	raw, err := p.call(ctx, http.MethodGet, "/transactions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateSubscription creates a transaction against an existing recurring
// price; Paddle activates the subscription when the transaction completes.
func (p *Paddle) CreateSubscription(ctx context.Context, sp SubscriptionParams) (CheckoutResult, error) {
	payload := map[string]any{
		"items": []map[string]any{{
			"price_id": sp.PlanID,
			"quantity": 1,
		}},
		"custom_data": customData(sp.UserID, sp.Email, nil),
	}
	if sp.SuccessURL != "" {
		payload["checkout"] = map[string]string{"url": sp.SuccessURL}
	}

	raw, err := p.call(ctx, http.MethodPost, "/transactions", payload)
	if err != nil {
		return CheckoutResult{}, err
	}
	txn, err := decodeTransaction(raw)
	if err != nil || txn.ID == "" {
		return CheckoutResult{}, common.ProcessorError(p.Name(), fmt.Errorf("unparseable transaction response"), string(raw))
	}
	return CheckoutResult{SessionID: txn.ID, CheckoutURL: txn.Checkout.URL, Provider: p.Name()}, nil
}

// CancelSubscription schedules cancellation at the next billing period.
func (p *Paddle) CancelSubscription(ctx context.Context, subscriptionID string) error {
	payload := map[string]string{"effective_from": "next_billing_period"}
	_, err := p.call(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(subscriptionID)+"/cancel", payload)
	return err
}

func customData(userID, email string, metadata map[string]string) map[string]string {
	data := map[string]string{"user_id": userID, "email": email}
	for k, v := range metadata {
		data[k] = v
	}
	return data
}

func (p *Paddle) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, common.ProcessorError(p.Name(), err, "")
		}
		bodyReader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL()+path, bodyReader)
	if err != nil {
		return nil, common.ProcessorError(p.Name(), err, "")
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.HTTP.Do(ctx, req)
	if err != nil {
		return nil, common.ProcessorError(p.Name(), err, "")
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.ProcessorError(p.Name(), err, "")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, common.ProcessorError(p.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode), string(raw))
	}
	return raw, nil
}
