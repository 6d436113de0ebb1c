package carrier

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCarrier() *Carrier {
	return New(NewCookieEncoder(false, "lax"), BearerEncoder{})
}

func TestAccessToken_CookieBeforeBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", newCarrier().AccessToken(r))

	r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", newCarrier().AccessToken(r))
}

func TestAccessToken_BearerParsing(t *testing.T) {
	c := newCarrier()
	for header, want := range map[string]string{
		"":             "",
		"Bearer":       "",
		"Bearer ":      "",
		"Basic abc":    "",
		"bearer abc":   "abc",
		"Bearer  abc ": "abc",
	} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, c.AccessToken(r), header)
	}
}

func TestRefreshToken_CookieThenHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Empty(t, newCarrier().RefreshToken(r))

	r.Header.Set(RefreshHeader, "hdr")
	assert.Equal(t, "hdr", newCarrier().RefreshToken(r))

	r.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "ck"})
	assert.Equal(t, "ck", newCarrier().RefreshToken(r))
}

func TestAttach_SetsHttpOnlyCookies(t *testing.T) {
	now := time.Now()
	enc := NewCookieEncoder(true, "strict")
	enc.now = func() time.Time { return now }
	rec := httptest.NewRecorder()

	New(enc, BearerEncoder{}).Attach(rec, Credentials{
		AccessToken: "a", AccessExpiresAt: now.Add(15 * time.Minute),
		RefreshToken: "r", RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
	})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
	}
	assert.Equal(t, "a", byName[AccessCookie].Value)
	assert.Equal(t, 900, byName[AccessCookie].MaxAge)
	assert.Equal(t, "r", byName[RefreshCookie].Value)
	assert.Equal(t, 7*24*3600, byName[RefreshCookie].MaxAge)
}

func TestClear_ExpiresCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	newCarrier().Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite(""))
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite("bogus"))
	assert.Equal(t, http.SameSiteStrictMode, ParseSameSite("Strict"))
	assert.Equal(t, http.SameSiteNoneMode, ParseSameSite("none"))
	assert.True(t, NewCookieEncoder(false, "none").cookie("x", "y", 1).Secure)
}
