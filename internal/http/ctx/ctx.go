package ctx

import (
	"github.com/valyala/fasthttp"

	dbpkg "encloseai/internal/db"
)

const (
	UserKey    = "user"
	OwnerIDKey = "ownerID"
)

// SetOwnerID records the authenticated owner for the request, whether it
// came from a session cookie or an API key.
func SetOwnerID(ctx *fasthttp.RequestCtx, ownerID uint) {
	ctx.SetUserValue(OwnerIDKey, ownerID)
}

func OwnerIDFromCtx(ctx *fasthttp.RequestCtx) (uint, bool) {
	v := ctx.UserValue(OwnerIDKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// SetUser records the full session user; only set by the session
// middleware, not by bearer auth.
func SetUser(ctx *fasthttp.RequestCtx, user *dbpkg.User) {
	ctx.SetUserValue(UserKey, user)
}

func UserFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	v := ctx.UserValue(UserKey)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*dbpkg.User)
	return u, ok
}
