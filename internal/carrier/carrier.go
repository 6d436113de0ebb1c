// Package carrier moves credentials between HTTP messages and the session
// core. A Carrier is a list of encoders tried in order when reading and
// applied together when writing, so endpoints never touch cookies or
// headers directly.
package carrier

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	// RefreshHeader lets clients that cannot hold cookies present their
	// refresh token to /auth/refresh and /auth/logout.
	RefreshHeader = "X-Refresh-Token"
)

// Credentials is what the session core hands to the transport after a
// successful login or refresh.
type Credentials struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Encoder reads and writes credentials on one transport mechanism.
type Encoder interface {
	AccessToken(r *http.Request) string
	RefreshToken(r *http.Request) string
	Attach(w http.ResponseWriter, creds Credentials)
	Clear(w http.ResponseWriter)
}

type Carrier struct {
	encoders []Encoder
}

func New(encoders ...Encoder) *Carrier {
	return &Carrier{encoders: encoders}
}

// AccessToken returns the first access token found, or "".
func (c *Carrier) AccessToken(r *http.Request) string {
	for _, e := range c.encoders {
		if t := e.AccessToken(r); t != "" {
			return t
		}
	}
	return ""
}

// RefreshToken returns the first refresh token found, or "".
func (c *Carrier) RefreshToken(r *http.Request) string {
	for _, e := range c.encoders {
		if t := e.RefreshToken(r); t != "" {
			return t
		}
	}
	return ""
}

func (c *Carrier) Attach(w http.ResponseWriter, creds Credentials) {
	for _, e := range c.encoders {
		e.Attach(w, creds)
	}
}

func (c *Carrier) Clear(w http.ResponseWriter) {
	for _, e := range c.encoders {
		e.Clear(w)
	}
}

// CookieEncoder carries both tokens in HttpOnly cookies.
type CookieEncoder struct {
	Secure   bool
	SameSite http.SameSite
	now      func() time.Time
}

// NewCookieEncoder maps the COOKIE_SAMESITE value ("lax", "strict",
// "none") onto http.SameSite; anything else falls back to Lax.
func NewCookieEncoder(secure bool, sameSite string) *CookieEncoder {
	return &CookieEncoder{Secure: secure, SameSite: ParseSameSite(sameSite), now: time.Now}
}

func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (e *CookieEncoder) AccessToken(r *http.Request) string  { return cookieValue(r, AccessCookie) }
func (e *CookieEncoder) RefreshToken(r *http.Request) string { return cookieValue(r, RefreshCookie) }

func (e *CookieEncoder) Attach(w http.ResponseWriter, creds Credentials) {
	now := e.now()
	http.SetCookie(w, e.cookie(AccessCookie, creds.AccessToken, maxAge(creds.AccessExpiresAt, now)))
	http.SetCookie(w, e.cookie(RefreshCookie, creds.RefreshToken, maxAge(creds.RefreshExpiresAt, now)))
}

func (e *CookieEncoder) Clear(w http.ResponseWriter) {
	http.SetCookie(w, e.cookie(AccessCookie, "", -1))
	http.SetCookie(w, e.cookie(RefreshCookie, "", -1))
}

func (e *CookieEncoder) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   e.Secure || e.SameSite == http.SameSiteNoneMode, // browsers drop SameSite=None without Secure
		SameSite: e.SameSite,
	}
}

// BearerEncoder reads the access token from "Authorization: Bearer" and
// the refresh token from X-Refresh-Token. It writes nothing: header
// clients receive the access token in the JSON body.
type BearerEncoder struct{}

func (BearerEncoder) AccessToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func (BearerEncoder) RefreshToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(RefreshHeader))
}

func (BearerEncoder) Attach(http.ResponseWriter, Credentials) {}

func (BearerEncoder) Clear(http.ResponseWriter) {}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func maxAge(exp, now time.Time) int {
	secs := int(exp.Sub(now) / time.Second)
	if secs <= 0 {
		return -1
	}
	return secs
}
