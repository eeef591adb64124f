// Package notify forwards verified, de-duplicated webhook events to the
// internal system of record. Forwarding is a best-effort side effect: its
// outcome is observable in logs and metrics but never alters the HTTP
// response already owed to the processor.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/payhub/internal/common"
	"github.com/noah-isme/payhub/internal/provider"
	"github.com/noah-isme/payhub/internal/resilience"
)

// Notifier posts normalised events to the configured internal endpoint.
type Notifier struct {
	URL    string
	Secret string
	HTTP   *resilience.HTTPClient
	Logger zerolog.Logger
}

type forwardPayload struct {
	Provider   string          `json:"provider"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	Data       map[string]any  `json:"data,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Forward delivers the event to the backend. A non-2xx status or transport
// failure returns a BACKEND_FORWARD error for the caller to log and absorb.
func (n *Notifier) Forward(ctx context.Context, evt provider.WebhookEvent) error {
	if n == nil || n.URL == "" {
		return common.BackendForwardError(fmt.Errorf("notifier not configured"))
	}
	body, err := json.Marshal(forwardPayload{
		Provider:   evt.Provider,
		EventID:    evt.EventID,
		EventType:  evt.EventType,
		Data:       evt.Payload,
		Raw:        evt.Raw,
		ReceivedAt: evt.ReceivedAt,
	})
	if err != nil {
		return common.BackendForwardError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return common.BackendForwardError(err)
	}
	ts := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "payhub/1.0")
	req.Header.Set("X-Event-ID", evt.EventID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", uuid.NewString())
	req.Header.Set("X-Internal-Secret", n.Secret)
	req.Header.Set("X-Signature", ComputeSignature(n.Secret, ts, evt.EventID, body))

	resp, err := n.HTTP.Do(ctx, req)
	if err != nil {
		return common.BackendForwardError(err)
	}
	defer func() { _ = resp.Body.Close() }()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.BackendForwardError(fmt.Errorf("backend status %d", resp.StatusCode))
	}
	return nil
}

// ComputeSignature calculates the forward signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the shared secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for backend delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(&http.Transport{}),
	}
}
