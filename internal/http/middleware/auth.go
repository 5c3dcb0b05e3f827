package middleware

import (
	"bytes"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"

	"encloseai/internal/apikey"
	httpctx "encloseai/internal/http/ctx"
)

// BearerAuth validates Bearer tokens against issued API keys. Unknown and
// revoked keys get the same generic 401.
func BearerAuth(keys *apikey.Manager, observe func(result string)) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			auth := ctx.Request.Header.Peek("Authorization")
			if len(auth) == 0 {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !bytes.HasPrefix(auth, []byte(prefix)) {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("invalid Authorization header")
				return
			}

			token := strings.TrimSpace(string(auth[len(prefix):]))
			if token == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("empty bearer token")
				return
			}

			ownerID, err := keys.Verify(ctx, token)
			if err != nil {
				if errors.Is(err, apikey.ErrInvalidKey) {
					if observe != nil {
						observe("denied")
					}
					ctx.SetStatusCode(fasthttp.StatusUnauthorized)
					ctx.SetBodyString("invalid API key")
					return
				}
				if observe != nil {
					observe("error")
				}
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("database error")
				return
			}

			if observe != nil {
				observe("ok")
			}
			httpctx.SetOwnerID(ctx, ownerID)
			next(ctx)
		}
	}
}
