package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meatshop-backoffice/internal/token"
)

// TokenVerifier checks a signed token; *token.Issuer satisfies it.
type TokenVerifier interface {
	Verify(kind token.Kind, raw string) (*token.Claims, error)
}

// AccessTokenSource extracts the raw access token from a request;
// *carrier.Carrier satisfies it.
type AccessTokenSource interface {
	AccessToken(r *http.Request) string
}

// Authenticate reads the access token (cookie first, then bearer header,
// in whatever order src applies) and, when it verifies, attaches the
// caller's Identity. Invalid or missing tokens leave the request anonymous;
// guarded routes reject it through RequireAuth. Expired access tokens are
// never refreshed here.
func Authenticate(v TokenVerifier, src AccessTokenSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := src.AccessToken(c.Request())
			if raw == "" {
				return next(c)
			}
			claims, err := v.Verify(token.Access, raw)
			if err != nil {
				return next(c)
			}
			uid, err := claims.UserID()
			if err != nil {
				return next(c)
			}
			setIdentity(c, Identity{UserID: uid, Email: claims.Email, Role: claims.Role})
			return next(c)
		}
	}
}

// RequireAuth answers 401 unless Authenticate attached an Identity.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := IdentityFrom(c); !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return next(c)
	}
}
