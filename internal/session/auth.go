package session

import (
	"context"
	"errors"
	"strconv"

	"github.com/iliyamo/meatshop-backoffice/internal/apperr"
	"github.com/iliyamo/meatshop-backoffice/internal/carrier"
	"github.com/iliyamo/meatshop-backoffice/internal/model"
	"github.com/iliyamo/meatshop-backoffice/internal/queue"
	"github.com/iliyamo/meatshop-backoffice/internal/repository"
	"github.com/iliyamo/meatshop-backoffice/internal/token"
	"github.com/iliyamo/meatshop-backoffice/internal/utils"
)

const msgInvalidCredentials = "invalid credentials"

// ValidateCredentials looks the user up by login identifier or email and
// checks the password. NotFound and Unauthorized are kept apart here; Login
// folds them together. The returned user has no password hash.
func (s *Service) ValidateCredentials(ctx context.Context, identifier, password string) (model.User, error) {
	rctx, cancel := s.repoCtx(ctx)
	defer cancel()

	u, err := s.users.FindByLogin(rctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return model.User{}, apperr.InternalError("could not load user", err)
	}
	if !utils.VerifyPassword(u.SenhaHash, password) {
		return model.User{}, apperr.New(apperr.Unauthorized, msgInvalidCredentials)
	}
	u.SenhaHash = ""
	return u, nil
}

// Login validates the credentials, mints a token pair and records the
// refresh token in the ledger.
func (s *Service) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	u, err := s.ValidateCredentials(ctx, identifier, password)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return LoginResult{}, apperr.New(apperr.Unauthorized, msgInvalidCredentials)
		}
		return LoginResult{}, err
	}

	access, refresh, err := s.mint(u)
	if err != nil {
		return LoginResult{}, err
	}

	rctx, cancel := s.repoCtx(ctx)
	defer cancel()
	if err := s.ledger.Store(rctx, u.ID, refresh.Token, refresh.JTI, refresh.ExpiresAt); err != nil {
		return LoginResult{}, apperr.InternalError("could not persist session", err)
	}

	s.emit(ctx, queue.AuthEvent{Type: queue.EventLogin, UserID: u.ID, Email: u.Email})
	return LoginResult{Credentials: credentials(access, refresh), User: u.Safe()}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked and replaced in one transaction. Presenting a token that was
// already revoked is treated as theft: every active session of its owner
// is revoked.
func (s *Service) Refresh(ctx context.Context, raw string) (carrier.Credentials, error) {
	if raw == "" {
		return carrier.Credentials{}, apperr.New(apperr.Unauthorized, "refresh token missing")
	}
	if _, err := s.issuer.Verify(token.Refresh, raw); err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return carrier.Credentials{}, apperr.Wrap(apperr.Unauthorized, "refresh token expired", err)
		}
		return carrier.Credentials{}, apperr.Wrap(apperr.Unauthorized, "invalid refresh token", err)
	}

	rctx, cancel := s.repoCtx(ctx)
	defer cancel()

	rec, err := s.ledger.FindByToken(rctx, raw)
	if errors.Is(err, repository.ErrNotFound) {
		return carrier.Credentials{}, apperr.New(apperr.Unauthorized, "unknown refresh token")
	}
	if err != nil {
		return carrier.Credentials{}, apperr.InternalError("could not load refresh token", err)
	}

	if rec.Revoked() {
		n, err := s.ledger.RevokeAllForUser(rctx, rec.UserID)
		if err != nil {
			s.log.Error(ctx, "revoke token family failed", "user_id", rec.UserID, "error", err)
		}
		s.log.Warn(ctx, "revoked refresh token presented", "user_id", rec.UserID, "jti", rec.JTI, "revoked", n)
		s.emit(ctx, queue.AuthEvent{
			Type:   queue.EventRefreshReuse,
			UserID: rec.UserID,
			Detail: "jti=" + rec.JTI + " sessions_revoked=" + strconv.FormatInt(n, 10),
		})
		return carrier.Credentials{}, apperr.New(apperr.Forbidden, "refresh token revoked")
	}
	if rec.Expired(s.now()) {
		return carrier.Credentials{}, apperr.New(apperr.Unauthorized, "refresh token expired")
	}

	u, err := s.users.GetByID(rctx, rec.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return carrier.Credentials{}, apperr.New(apperr.Unauthorized, "user no longer exists")
	}
	if err != nil {
		return carrier.Credentials{}, apperr.InternalError("could not load user", err)
	}

	access, refresh, err := s.mint(u)
	if err != nil {
		return carrier.Credentials{}, err
	}
	err = s.ledger.Rotate(rctx, rec, refresh.Token, refresh.JTI, refresh.ExpiresAt)
	if errors.Is(err, repository.ErrAlreadyRevoked) {
		return carrier.Credentials{}, apperr.New(apperr.Forbidden, "refresh token revoked")
	}
	if err != nil {
		return carrier.Credentials{}, apperr.InternalError("could not rotate refresh token", err)
	}
	return credentials(access, refresh), nil
}

// Logout revokes the presented refresh token if the ledger knows it. The
// caller always answers success; the returned error is for logging only.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	rctx, cancel := s.repoCtx(ctx)
	defer cancel()

	rec, err := s.ledger.FindByToken(rctx, raw)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.ledger.Revoke(rctx, rec); err != nil {
		return err
	}
	s.emit(ctx, queue.AuthEvent{Type: queue.EventLogout, UserID: rec.UserID})
	return nil
}

// Me re-reads the authenticated user.
func (s *Service) Me(ctx context.Context, userID uint64) (model.SafeUser, error) {
	rctx, cancel := s.repoCtx(ctx)
	defer cancel()

	u, err := s.users.GetByID(rctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.SafeUser{}, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return model.SafeUser{}, apperr.InternalError("could not load user", err)
	}
	return u.Safe(), nil
}
