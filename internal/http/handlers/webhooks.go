package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"

	"github.com/stripe/stripe-go/v79/webhook"

	"encloseai/internal/config"
	dbpkg "encloseai/internal/db"
)

// StripeWebhook verifies and captures provider webhook deliveries.
// Replayed deliveries of an event id are acknowledged but stored once.
func StripeWebhook(events *dbpkg.WebhookStore, users *dbpkg.UserStore, cfg *config.Config, observe func(eventType string)) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		payload := ctx.PostBody()
		sig := string(ctx.Request.Header.Peek("Stripe-Signature"))

		event, err := webhook.ConstructEvent(payload, sig, cfg.Stripe.WebhookSecret)
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid webhook signature")
			return
		}

		ownerID, err := users.FindByStripeAccountID(ctx, event.Account)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		attrs := datatypes.JSONMap{}
		if event.Data != nil && len(event.Data.Raw) > 0 {
			var obj map[string]any
			if err := json.Unmarshal(event.Data.Raw, &obj); err == nil {
				for k, v := range obj {
					attrs[k] = v
				}
			}
		}

		rec := &dbpkg.WebhookEvent{
			Provider:        "stripe",
			ProviderEventID: event.ID,
			EventType:       string(event.Type),
			UserID:          ownerID,
			Payload:         attrs,
		}

		inserted, err := events.Insert(ctx, rec)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to store webhook event")
			return
		}

		if inserted {
			if observe != nil {
				observe(string(event.Type))
			}
			// Capture-only processing for now; anything richer records
			// its outcome through MarkProcessed.
			now := time.Now()
			if err := events.MarkProcessed(ctx, rec.ID, now, ""); err != nil {
				// The event itself is stored; processing state is advisory.
				jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"received": true})
				return
			}
		}

		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"received": true, "duplicate": !inserted})
	}
}

// ListWebhookEvents returns the caller's captured events, newest first.
func ListWebhookEvents(events *dbpkg.WebhookStore) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ownerID, ok := MustOwner(ctx)
		if !ok {
			return
		}

		limit := 0
		if v := string(ctx.QueryArgs().Peek("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}

		list, err := events.ListByOwner(ctx, ownerID, limit)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to list webhook events")
			return
		}

		type view struct {
			ID        uint              `json:"id"`
			EventType string            `json:"event_type"`
			CreatedAt time.Time         `json:"created_at"`
			Processed bool              `json:"processed"`
			Payload   datatypes.JSONMap `json:"payload"`
		}
		views := make([]view, 0, len(list))
		for _, ev := range list {
			views = append(views, view{
				ID:        ev.ID,
				EventType: ev.EventType,
				CreatedAt: ev.CreatedAt,
				Processed: ev.ProcessedAt != nil,
				Payload:   ev.Payload,
			})
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"events": views})
	}
}
