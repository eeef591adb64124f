package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payhub/internal/common"
)

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(
		&Stripe{},
		&Paddle{},
		NotImplemented{Provider: "lemonsqueezy"},
	)

	a, err := reg.Resolve("stripe")
	require.NoError(t, err)
	require.Equal(t, "stripe", a.Name())

	// lookups are case-insensitive
	a, err = reg.Resolve("  PaDDle ")
	require.NoError(t, err)
	require.Equal(t, "paddle", a.Name())
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := NewRegistry(&Stripe{})

	_, err := reg.Resolve("square")
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeUnsupportedProvider))

	_, err = reg.Resolve("")
	require.True(t, common.HasCode(err, common.CodeUnsupportedProvider))
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry(&Paddle{}, &Stripe{}, NotImplemented{Provider: "lemonsqueezy"})
	require.Equal(t, []string{"lemonsqueezy", "paddle", "stripe"}, reg.Names())
}

func TestNotImplementedAdapter(t *testing.T) {
	n := NotImplemented{Provider: "lemonsqueezy"}
	ctx := context.Background()

	_, err := n.CreateCheckoutSession(ctx, CheckoutParams{})
	require.True(t, common.HasCode(err, common.CodeNotImplemented))

	_, err = n.VerifyWebhook(nil, nil)
	require.True(t, common.HasCode(err, common.CodeNotImplemented))

	_, err = n.GetSession(ctx, "x")
	require.True(t, common.HasCode(err, common.CodeNotImplemented))

	_, err = n.CreateSubscription(ctx, SubscriptionParams{})
	require.True(t, common.HasCode(err, common.CodeNotImplemented))

	err = n.CancelSubscription(ctx, "x")
	require.True(t, common.HasCode(err, common.CodeNotImplemented))
}
