// Package payments bills guest passes beyond the free allowance. The
// orchestrator treats it as a best-effort sink: a failed charge is
// logged and surfaced on the result, never a booking rollback.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/pkg/config"
)

// Charger creates a payment for charged guest passes and returns the
// processor's payment id.
type Charger interface {
	ChargeGuestPasses(ctx context.Context, memberID, email string, passes int) (string, error)
}

type StripeCharger struct {
	api        *client.API
	priceCents int64
	enabled    bool
}

func NewStripeCharger(cfg config.StripeConfig, priceCents int64) *StripeCharger {
	c := &StripeCharger{
		priceCents: priceCents,
		enabled:    cfg.SecretKey != "",
	}
	if c.enabled {
		api := &client.API{}
		api.Init(cfg.SecretKey, nil)
		c.api = api
	}
	return c
}

func (c *StripeCharger) ChargeGuestPasses(ctx context.Context, memberID, email string, passes int) (string, error) {
	if passes <= 0 {
		return "", nil
	}
	if !c.enabled {
		return "", errors.New("stripe disabled (missing STRIPE_SECRET_KEY)")
	}

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(int64(passes) * c.priceCents),
		Currency:     stripe.String(string(stripe.CurrencyUSD)),
		ReceiptEmail: stripe.String(email),
		Description:  stripe.String(fmt.Sprintf("%d guest pass(es)", passes)),
	}
	params.Context = ctx
	params.AddMetadata("member_id", memberID)
	params.AddMetadata("guest_passes", fmt.Sprintf("%d", passes))

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return "", &domain.RemoteError{Service: "stripe", Err: err}
	}
	return pi.ID, nil
}

var _ Charger = (*StripeCharger)(nil)
