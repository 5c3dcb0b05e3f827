package checkout

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"encloseai/internal/config"
	"encloseai/internal/db"
)

// Currencies Stripe treats as zero-decimal: amounts are already in the
// smallest unit and must not be multiplied by 100.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true,
	"xpf": true,
}

// StripeProvider creates Checkout Sessions via the Stripe API.
type StripeProvider struct {
	client *client.API
	cfg    config.StripeConfig
}

func NewStripeProvider(cfg config.StripeConfig) *StripeProvider {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return &StripeProvider{client: sc, cfg: cfg}
}

func (p *StripeProvider) CreateSession(ctx context.Context, link *db.PaymentLink, stripeAccount string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.cfg.SuccessURL),
		CancelURL:  stripe.String(p.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(link.Currency),
					UnitAmount: stripe.Int64(MinorUnits(link.Amount, link.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(link.ProductName),
					},
				},
			},
		},
		ClientReferenceID: stripe.String(link.ID),
	}
	params.Context = ctx
	if stripeAccount != "" {
		params.SetStripeAccount(stripeAccount)
	}

	sess, err := p.client.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// MinorUnits converts a major-unit amount (e.g. dollars) to the smallest
// currency unit Stripe expects (e.g. cents).
func MinorUnits(amount float64, currency string) int64 {
	if zeroDecimalCurrencies[currency] {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}
