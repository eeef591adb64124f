package provider

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/noah-isme/payhub/internal/common"
)

// NotImplemented is registered for processors that are configured by name but
// whose integration is not built yet. Every operation fails loudly instead of
// silently no-oping.
type NotImplemented struct {
	Provider string
}

func (n NotImplemented) Name() string { return n.Provider }

func (n NotImplemented) CreateCheckoutSession(context.Context, CheckoutParams) (CheckoutResult, error) {
	return CheckoutResult{}, common.NotImplementedError(n.Provider, "createCheckoutSession")
}

func (n NotImplemented) VerifyWebhook(*http.Request, []byte) (WebhookEvent, error) {
	return WebhookEvent{}, common.NotImplementedError(n.Provider, "verifyWebhook")
}

func (n NotImplemented) GetSession(context.Context, string) (json.RawMessage, error) {
	return nil, common.NotImplementedError(n.Provider, "getSession")
}

func (n NotImplemented) CreateSubscription(context.Context, SubscriptionParams) (CheckoutResult, error) {
	return CheckoutResult{}, common.NotImplementedError(n.Provider, "createSubscription")
}

func (n NotImplemented) CancelSubscription(context.Context, string) error {
	return common.NotImplementedError(n.Provider, "cancelSubscription")
}
