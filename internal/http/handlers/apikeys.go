package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"encloseai/internal/apikey"
	dbpkg "encloseai/internal/db"
)

type createKeyRequest struct {
	Name string `json:"name"`
}

type apiKeyView struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func keyView(k dbpkg.APIKey) apiKeyView {
	return apiKeyView{
		ID:         k.ID,
		Name:       k.Name,
		Prefix:     k.DisplayPrefix,
		Active:     k.Active,
		CreatedAt:  k.CreatedAt,
		RevokedAt:  k.RevokedAt,
		LastUsedAt: k.LastUsedAt,
	}
}

// CreateAPIKey issues a key and returns the plaintext secret. This is the
// only response that will ever contain it.
func CreateAPIKey(keys *apikey.Manager) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ownerID, ok := MustOwner(ctx)
		if !ok {
			return
		}

		var req createKeyRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		created, err := keys.Create(ctx, ownerID, req.Name)
		if err != nil {
			var verr *apikey.ValidationError
			if errors.As(err, &verr) {
				fieldErrResponse(ctx, verr.Field, verr.Reason)
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to create API key")
			return
		}

		jsonResponse(ctx, fasthttp.StatusCreated, map[string]any{
			"id":         created.Key.ID,
			"name":       created.Key.Name,
			"prefix":     created.Key.DisplayPrefix,
			"secret":     created.Secret,
			"created_at": created.Key.CreatedAt,
		})
	}
}

func ListAPIKeys(keys *apikey.Manager) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ownerID, ok := MustOwner(ctx)
		if !ok {
			return
		}

		list, err := keys.List(ctx, ownerID)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to list API keys")
			return
		}

		views := make([]apiKeyView, 0, len(list))
		for _, k := range list {
			views = append(views, keyView(k))
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"keys": views})
	}
}

// RevokeAPIKey deactivates a key the caller owns. A key that is missing,
// foreign, or already revoked gets the same 404.
func RevokeAPIKey(keys *apikey.Manager) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ownerID, ok := MustOwner(ctx)
		if !ok {
			return
		}

		idStr, _ := ctx.UserValue("id").(string)
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid key ID")
			return
		}

		if err := keys.Revoke(ctx, uint(id), ownerID); err != nil {
			if errors.Is(err, apikey.ErrNotFound) {
				errResponse(ctx, fasthttp.StatusNotFound, "API key not found")
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to revoke API key")
			return
		}

		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

// VerifyKey echoes the owner resolved by bearer auth, for integrations
// that want to smoke-test a credential.
func VerifyKey() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ownerID, ok := MustOwner(ctx)
		if !ok {
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"owner_id": ownerID})
	}
}
