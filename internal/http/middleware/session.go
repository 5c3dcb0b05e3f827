package middleware

import (
	"github.com/valyala/fasthttp"

	"encloseai/internal/config"
	dbpkg "encloseai/internal/db"
	httpctx "encloseai/internal/http/ctx"
)

// SessionAuth loads the session user from the cookie and sets it on the
// context. Management endpoints are JSON, so failures are 401s rather
// than redirects.
func SessionAuth(users *dbpkg.UserStore, cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			cookie := ctx.Request.Header.Cookie("session_user")
			if len(cookie) == 0 {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("not signed in")
				return
			}

			user, err := users.GetByUsername(ctx, string(cookie))
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("not signed in")
				return
			}

			if user.Username == cfg.AdminUser {
				user.IsAdmin = true
			}

			httpctx.SetUser(ctx, user)
			httpctx.SetOwnerID(ctx, user.ID)
			next(ctx)
		}
	}
}
