package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// identityKey is the echo context key holding the authenticated Identity.
const identityKey = "identity"

// Identity is the caller as established by a verified access token.
type Identity struct {
	UserID uint64
	Email  string
	Role   string
}

// IdentityFrom returns the Identity attached by Authenticate, if any.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// setIdentity stores id on the context. user_id and role are also set as
// plain strings for middleware that only needs those, like the rate limiter.
func setIdentity(c echo.Context, id Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", strconv.FormatUint(id.UserID, 10))
	c.Set("role", id.Role)
}

// userID returns the caller's id as a string, or "anon".
func userID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v
	}
	return "anon"
}
