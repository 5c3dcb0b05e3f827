package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/valyala/fasthttp"

	dbpkg "encloseai/internal/db"
	"encloseai/internal/paymentlink"
)

type paymentLinkView struct {
	ID          string    `json:"id"`
	ProductName string    `json:"product_name"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

func linkView(l dbpkg.PaymentLink) paymentLinkView {
	return paymentLinkView{
		ID:          l.ID,
		ProductName: l.ProductName,
		Amount:      l.Amount,
		Currency:    l.Currency,
		URL:         l.URL,
		CreatedAt:   l.CreatedAt,
	}
}

// CreatePaymentLink validates the request and persists one link. An
// optional Idempotency-Key header makes duplicate submissions replay the
// first result instead of creating a second link.
func CreatePaymentLink(links *paymentlink.Service, observe func(ownerID uint, currency string)) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ownerID, ok := MustOwner(ctx)
		if !ok {
			return
		}

		var in paymentlink.CreateInput
		if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		idemKey := string(ctx.Request.Header.Peek("Idempotency-Key"))

		link, err := links.Create(ctx, ownerID, in, idemKey)
		if err != nil {
			var verr *paymentlink.ValidationError
			if errors.As(err, &verr) {
				fieldErrResponse(ctx, verr.Field, verr.Reason)
				return
			}
			if errors.Is(err, paymentlink.ErrIdempotencyConflict) {
				errResponse(ctx, fasthttp.StatusConflict, "Idempotency-Key was already used with a different payload")
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to create payment link")
			return
		}

		if observe != nil {
			observe(ownerID, link.Currency)
		}
		jsonResponse(ctx, fasthttp.StatusCreated, linkView(*link))
	}
}

func ListPaymentLinks(links *paymentlink.Service) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ownerID, ok := MustOwner(ctx)
		if !ok {
			return
		}

		list, err := links.List(ctx, ownerID)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to list payment links")
			return
		}

		views := make([]paymentLinkView, 0, len(list))
		for _, l := range list {
			views = append(views, linkView(l))
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"payment_links": views})
	}
}

// ResolvePaymentLink is the public endpoint payers hit. It mints a
// checkout session for the link and redirects to the hosted page.
func ResolvePaymentLink(links *paymentlink.Service, observe func()) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, _ := ctx.UserValue("id").(string)
		if id == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "link id required")
			return
		}

		sessionURL, err := links.Resolve(ctx, id)
		if err != nil {
			if errors.Is(err, paymentlink.ErrNotFound) {
				errResponse(ctx, fasthttp.StatusNotFound, "payment link not found")
				return
			}
			errResponse(ctx, fasthttp.StatusBadGateway, "failed to create checkout session")
			return
		}

		if observe != nil {
			observe()
		}
		ctx.Redirect(sessionURL, fasthttp.StatusSeeOther)
	}
}
