// Package checkout abstracts the external payment processor that turns a
// stored payment link into a hosted checkout session.
package checkout

import (
	"context"

	"encloseai/internal/db"
)

// Provider mints a hosted checkout session for a payment link and returns
// the URL the payer should be sent to. stripeAccount, when non-empty, is
// the connected account the session is created on behalf of.
type Provider interface {
	CreateSession(ctx context.Context, link *db.PaymentLink, stripeAccount string) (string, error)
}
