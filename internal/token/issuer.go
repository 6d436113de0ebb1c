// Package token mints and verifies the HS256 access and refresh JWTs.
//
// Access and refresh tokens are signed with independent secrets and carry
// their own lifetimes. Only refresh tokens are tracked in the ledger;
// access tokens expire on their own.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrMissingSecret = errors.New("token signing secret is not configured")
)

// Kind selects the secret and lifetime used for a token.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	if k == Refresh {
		return "refresh"
	}
	return "access"
}

// Payload is the identity a token is minted for.
type Payload struct {
	UserID uint64
	Email  string
	Role   string
}

// Claims is the JWT body. The subject holds the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// Signed is a token string plus the metadata the ledger and cookies need.
type Signed struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// New validates cfg and returns an Issuer. An empty secret is a startup
// error; callers are expected to abort.
func New(cfg Config) (*Issuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrMissingSecret
	}
	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

// TTL returns the configured lifetime for kind.
func (i *Issuer) TTL(kind Kind) time.Duration {
	if kind == Refresh {
		return i.refreshTTL
	}
	return i.accessTTL
}

func (i *Issuer) IssueAccess(p Payload) (Signed, error) { return i.issue(Access, p) }

func (i *Issuer) IssueRefresh(p Payload) (Signed, error) { return i.issue(Refresh, p) }

func (i *Issuer) issue(kind Kind, p Payload) (Signed, error) {
	now := i.now()
	exp := now.Add(i.TTL(kind))
	jti := uuid.NewString()
	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(p.UserID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret(kind))
	if err != nil {
		return Signed{}, err
	}
	return Signed{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

// Verify checks signature, algorithm and expiry of raw against the secret
// for kind. It returns ErrTokenExpired for an otherwise valid token past
// its exp claim and ErrInvalidToken for everything else.
func (i *Issuer) Verify(kind Kind, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) secret(kind Kind) []byte {
	if kind == Refresh {
		return i.refreshSecret
	}
	return i.accessSecret
}
