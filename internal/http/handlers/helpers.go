package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/valyala/fasthttp"

	dbpkg "encloseai/internal/db"
	httpctx "encloseai/internal/http/ctx"
)

// RequestLogger logs one line per request.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		log.Printf("%s %s -> %d (%s) ip=%s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start), ctx.RemoteAddr())
	}
}

func jsonResponse(ctx *fasthttp.RequestCtx, status int, data any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(map[string]string{"error": msg})
	ctx.SetBody(body)
}

// fieldErrResponse reports a validation failure naming the field that
// failed, so the dashboard can highlight it.
func fieldErrResponse(ctx *fasthttp.RequestCtx, field, reason string) {
	ctx.SetStatusCode(fasthttp.StatusBadRequest)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(map[string]string{"error": reason, "field": field})
	ctx.SetBody(body)
}

// MustUser returns the current session user from context, or sends 401
// and returns (nil, false).
func MustUser(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	user, ok := httpctx.UserFromCtx(ctx)
	if !ok || user == nil {
		errResponse(ctx, fasthttp.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return user, true
}

// MustOwner returns the authenticated owner id (session or API key), or
// sends 401 and returns (0, false).
func MustOwner(ctx *fasthttp.RequestCtx) (uint, bool) {
	id, ok := httpctx.OwnerIDFromCtx(ctx)
	if !ok {
		errResponse(ctx, fasthttp.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return id, true
}
