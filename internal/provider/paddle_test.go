package provider

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payhub/internal/common"
	"github.com/noah-isme/payhub/internal/signature"
)

func paddleSignedRequest(t *testing.T, secret string, ts int64, body []byte) *http.Request {
	t.Helper()
	signed := fmt.Sprintf("%d:%s", ts, body)
	digest, err := signature.Compute(sha256.New, secret, []byte(signed))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/paddle", nil)
	req.Header.Set("Paddle-Signature", "ts="+strconv.FormatInt(ts, 10)+";h1="+digest)
	return req
}

func TestPaddleCreateCheckoutSession(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transactions", r.URL.Path)
		require.Equal(t, "Bearer pdl_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"data":{"id":"txn_123","checkout":{"url":"https://pay.paddle.com/txn_123"}}}`))
	}))
	defer srv.Close()

	p := &Paddle{APIKey: "pdl_test", BaseURL: srv.URL, HTTP: testHTTPClient(srv)}
	res, err := p.CreateCheckoutSession(context.Background(), CheckoutParams{
		UserID:   "user-1",
		Email:    "user@example.com",
		Amount:   1000,
		Currency: "usd",
		Product:  "Pro Plan",
	})
	require.NoError(t, err)
	require.Equal(t, "txn_123", res.SessionID)
	require.Equal(t, "https://pay.paddle.com/txn_123", res.CheckoutURL)
	require.Equal(t, "paddle", res.Provider)

	items := gotBody["items"].([]any)
	price := items[0].(map[string]any)["price"].(map[string]any)
	unitPrice := price["unit_price"].(map[string]any)
	require.Equal(t, "1000", unitPrice["amount"])
	require.Equal(t, "USD", unitPrice["currency_code"])
	custom := gotBody["custom_data"].(map[string]any)
	require.Equal(t, "user-1", custom["user_id"])
}

func TestPaddleCreateCheckoutSessionBareResponse(t *testing.T) {
	// some upstream proxies hand the transaction back without the data wrapper
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"txn_123","checkout":{"url":"https://pay.paddle.com/txn_123"}}`))
	}))
	defer srv.Close()

	p := &Paddle{APIKey: "pdl_test", BaseURL: srv.URL, HTTP: testHTTPClient(srv)}
	res, err := p.CreateCheckoutSession(context.Background(), CheckoutParams{Amount: 1000, Currency: "USD", Product: "Pro Plan"})
	require.NoError(t, err)
	require.Equal(t, "txn_123", res.SessionID)
	require.Equal(t, "https://pay.paddle.com/txn_123", res.CheckoutURL)
}

func TestPaddleCreateCheckoutSessionUnparseable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	p := &Paddle{APIKey: "pdl_test", BaseURL: srv.URL, HTTP: testHTTPClient(srv)}
	_, err := p.CreateCheckoutSession(context.Background(), CheckoutParams{Amount: 1000, Currency: "USD"})
	require.True(t, common.HasCode(err, common.CodeProcessorAPI))
}

func TestPaddleVerifyWebhook(t *testing.T) {
	p := &Paddle{WebhookSecret: "pdl_ntf_test"}
	body := []byte(`{"event_id":"evt_01","event_type":"transaction.completed","data":{"id":"txn_123"}}`)

	evt, err := p.VerifyWebhook(paddleSignedRequest(t, "pdl_ntf_test", time.Now().Unix(), body), body)
	require.NoError(t, err)
	require.Equal(t, "paddle", evt.Provider)
	require.Equal(t, "evt_01", evt.EventID)
	require.Equal(t, "transaction.completed", evt.EventType)
	require.Equal(t, "txn_123", evt.Payload["id"])
}

func TestPaddleVerifyWebhookBadSignature(t *testing.T) {
	p := &Paddle{WebhookSecret: "pdl_ntf_test"}
	body := []byte(`{"event_id":"evt_01","event_type":"transaction.completed"}`)

	_, err := p.VerifyWebhook(paddleSignedRequest(t, "pdl_ntf_wrong", time.Now().Unix(), body), body)
	require.True(t, common.HasCode(err, common.CodeInvalidSignature))
}

func TestPaddleVerifyWebhookStaleTimestamp(t *testing.T) {
	p := &Paddle{WebhookSecret: "pdl_ntf_test", Tolerance: 300 * time.Second}
	body := []byte(`{"event_id":"evt_01","event_type":"transaction.completed"}`)

	old := time.Now().Add(-6 * time.Minute).Unix()
	_, err := p.VerifyWebhook(paddleSignedRequest(t, "pdl_ntf_test", old, body), body)
	require.True(t, common.HasCode(err, common.CodeInvalidSignature))
}

func TestPaddleCancelSubscription(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"data":{"id":"sub_01","status":"canceled"}}`))
	}))
	defer srv.Close()

	p := &Paddle{APIKey: "pdl_test", BaseURL: srv.URL, HTTP: testHTTPClient(srv)}
	require.NoError(t, p.CancelSubscription(context.Background(), "sub_01"))
	require.Equal(t, "/subscriptions/sub_01/cancel", gotPath)
	require.Equal(t, "next_billing_period", gotBody["effective_from"])
}

func TestPaddleBaseURLSandbox(t *testing.T) {
	p := &Paddle{Sandbox: true}
	require.Equal(t, "https://sandbox-api.paddle.com", p.baseURL())
	p = &Paddle{}
	require.Equal(t, "https://api.paddle.com", p.baseURL())
}
