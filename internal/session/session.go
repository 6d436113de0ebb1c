// Package session implements the authentication core: credential checks,
// token-pair issuance, refresh rotation with reuse detection, logout,
// password reset through single-use verification codes, and the
// self-only avatar update.
//
// Every failure leaving this package is an *apperr.Error so the HTTP layer
// can translate it without knowing which dependency produced it.
package session

import (
	"context"
	"time"

	"github.com/iliyamo/meatshop-backoffice/internal/apperr"
	"github.com/iliyamo/meatshop-backoffice/internal/carrier"
	"github.com/iliyamo/meatshop-backoffice/internal/logging"
	"github.com/iliyamo/meatshop-backoffice/internal/model"
	"github.com/iliyamo/meatshop-backoffice/internal/otp"
	"github.com/iliyamo/meatshop-backoffice/internal/queue"
	"github.com/iliyamo/meatshop-backoffice/internal/token"
)

// DefaultRepoTimeout bounds each store call.
const DefaultRepoTimeout = 5 * time.Second

type UserStore interface {
	Exists(ctx context.Context, usuario, email, cnpj string) (bool, error)
	Create(ctx context.Context, u *model.User) (uint64, error)
	FindByLogin(ctx context.Context, identifier string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
	UpdateLogoURL(ctx context.Context, id uint64, url string) error
}

type Ledger interface {
	Store(ctx context.Context, userID uint64, token, jti string, exp time.Time) error
	FindByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, rec *model.RefreshToken) error
	Rotate(ctx context.Context, old *model.RefreshToken, token, jti string, exp time.Time) error
	RevokeAllForUser(ctx context.Context, userID uint64) (int64, error)
}

type Issuer interface {
	IssueAccess(p token.Payload) (token.Signed, error)
	IssueRefresh(p token.Payload) (token.Signed, error)
	Verify(kind token.Kind, raw string) (*token.Claims, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

type Config struct {
	BcryptCost  int
	RepoTimeout time.Duration
	Logger      logging.Logger
}

type Service struct {
	users   UserStore
	ledger  Ledger
	issuer  Issuer
	codes   otp.Store
	events  EventPublisher
	cost    int
	timeout time.Duration
	log     logging.Logger
	now     func() time.Time
}

func New(users UserStore, ledger Ledger, issuer Issuer, codes otp.Store, events EventPublisher, cfg Config) *Service {
	timeout := cfg.RepoTimeout
	if timeout <= 0 {
		timeout = DefaultRepoTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Service{
		users:   users,
		ledger:  ledger,
		issuer:  issuer,
		codes:   codes,
		events:  events,
		cost:    cfg.BcryptCost,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
}

// LoginResult is what a successful login hands to the transport layer.
type LoginResult struct {
	Credentials carrier.Credentials
	User        model.SafeUser
}

func (s *Service) repoCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// emit publishes ev. Failures are logged and never fail the caller.
func (s *Service) emit(ctx context.Context, ev queue.AuthEvent) {
	if s.events == nil {
		return
	}
	if ev.OccurredAt == "" {
		ev.OccurredAt = s.now().UTC().Format(time.RFC3339)
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn(ctx, "auth event not published", "type", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

// mint issues an access/refresh pair for u.
func (s *Service) mint(u model.User) (token.Signed, token.Signed, error) {
	p := token.Payload{UserID: u.ID, Email: u.Email, Role: u.Safe().RoleGlobal}
	access, err := s.issuer.IssueAccess(p)
	if err != nil {
		return token.Signed{}, token.Signed{}, apperr.InternalError("could not issue access token", err)
	}
	refresh, err := s.issuer.IssueRefresh(p)
	if err != nil {
		return token.Signed{}, token.Signed{}, apperr.InternalError("could not issue refresh token", err)
	}
	return access, refresh, nil
}

func credentials(access, refresh token.Signed) carrier.Credentials {
	return carrier.Credentials{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
}
