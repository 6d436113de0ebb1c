package session

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/meatshop-backoffice/internal/apperr"
	"github.com/iliyamo/meatshop-backoffice/internal/model"
	"github.com/iliyamo/meatshop-backoffice/internal/otp"
	"github.com/iliyamo/meatshop-backoffice/internal/queue"
	"github.com/iliyamo/meatshop-backoffice/internal/repository"
	"github.com/iliyamo/meatshop-backoffice/internal/utils"
)

// Registration is the validated sign-up form.
type Registration struct {
	NomeFantasia string
	RazaoSocial  string
	CNPJ         string
	Telefone     string
	Celular      string
	LogoURL      string
	CEP          string
	Logradouro   string
	Numero       string
	Complemento  string
	Bairro       string
	Cidade       string
	Estado       string
	Pais         string
	Email        string
	Usuario      string
	Senha        string
}

// Register creates an account. Login, email and tax id must all be unused.
func (s *Service) Register(ctx context.Context, r Registration) (uint64, error) {
	if err := utils.CheckPasswordPolicy(r.Senha); err != nil {
		return 0, apperr.Wrap(apperr.Validation, err.Error(), err)
	}

	rctx, cancel := s.repoCtx(ctx)
	defer cancel()

	taken, err := s.users.Exists(rctx, r.Usuario, r.Email, r.CNPJ)
	if err != nil {
		return 0, apperr.InternalError("could not check existing accounts", err)
	}
	if taken {
		return 0, apperr.New(apperr.Conflict, "user, email or CNPJ already registered")
	}

	hash, err := utils.HashPassword(r.Senha, s.cost)
	if err != nil {
		return 0, apperr.InternalError("could not hash password", err)
	}
	u := &model.User{
		NomeFantasia: r.NomeFantasia,
		RazaoSocial:  r.RazaoSocial,
		CNPJ:         r.CNPJ,
		Telefone:     r.Telefone,
		Celular:      r.Celular,
		LogoURL:      r.LogoURL,
		CEP:          r.CEP,
		Logradouro:   r.Logradouro,
		Numero:       r.Numero,
		Complemento:  r.Complemento,
		Bairro:       r.Bairro,
		Cidade:       r.Cidade,
		Estado:       r.Estado,
		Pais:         r.Pais,
		Email:        r.Email,
		Usuario:      r.Usuario,
		SenhaHash:    hash,
		Role:         model.DefaultRole,
	}
	id, err := s.users.Create(rctx, u)
	if errors.Is(err, repository.ErrConflict) {
		return 0, apperr.New(apperr.Conflict, "user, email or CNPJ already registered")
	}
	if err != nil {
		return 0, apperr.InternalError("could not create user", err)
	}
	return id, nil
}

// ResetPassword sets a new password for the account matching identifier
// (login or email) and ends every open session of that account.
func (s *Service) ResetPassword(ctx context.Context, identifier, password string) error {
	if err := utils.CheckPasswordPolicy(password); err != nil {
		return apperr.Wrap(apperr.Validation, err.Error(), err)
	}

	rctx, cancel := s.repoCtx(ctx)
	defer cancel()

	u, err := s.users.FindByLogin(rctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return apperr.InternalError("could not load user", err)
	}

	hash, err := utils.HashPassword(password, s.cost)
	if err != nil {
		return apperr.InternalError("could not hash password", err)
	}
	if err := s.users.UpdatePasswordHash(rctx, u.ID, hash); err != nil {
		return apperr.InternalError("could not update password", err)
	}
	if _, err := s.ledger.RevokeAllForUser(rctx, u.ID); err != nil {
		s.log.Error(ctx, "revoke sessions after password reset failed", "user_id", u.ID, "error", err)
	}

	s.emit(ctx, queue.AuthEvent{Type: queue.EventPasswordReset, UserID: u.ID, Email: u.Email})
	return nil
}

// RequestCode issues a verification code for the account and hands it to
// the event pipeline, which is the only delivery channel.
func (s *Service) RequestCode(ctx context.Context, identifier string) error {
	rctx, cancel := s.repoCtx(ctx)
	defer cancel()

	u, err := s.users.FindByLogin(rctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return apperr.InternalError("could not load user", err)
	}

	code, err := s.codes.Issue(rctx, u.ID)
	if err != nil {
		return apperr.InternalError("could not issue verification code", err)
	}
	s.log.Debug(ctx, "verification code issued", "user_id", u.ID, "code", code)
	s.emit(ctx, queue.AuthEvent{Type: queue.EventCodeRequested, UserID: u.ID, Email: u.Email, Code: code})
	return nil
}

// VerifyCode consumes code and returns the user it was issued for.
func (s *Service) VerifyCode(ctx context.Context, code string) (uint64, error) {
	code = strings.TrimSpace(code)
	if !otp.Valid(code) {
		return 0, apperr.New(apperr.Validation, otp.ErrMalformed.Error())
	}

	rctx, cancel := s.repoCtx(ctx)
	defer cancel()

	uid, err := s.codes.Consume(rctx, code)
	switch {
	case errors.Is(err, otp.ErrMismatch):
		return 0, apperr.New(apperr.Unauthorized, "invalid or expired code")
	case errors.Is(err, otp.ErrMalformed):
		return 0, apperr.New(apperr.Validation, err.Error())
	case err != nil:
		return 0, apperr.InternalError("could not verify code", err)
	}
	return uid, nil
}

// SaveFunc stores an uploaded file and returns its public URL.
type SaveFunc func(ctx context.Context) (string, error)

// UpdateLogo lets a user replace their own avatar. actorID is the
// authenticated caller, targetID the account in the path. save runs only
// after the ownership and existence checks pass.
func (s *Service) UpdateLogo(ctx context.Context, actorID, targetID uint64, save SaveFunc) (string, error) {
	if actorID != targetID {
		return "", apperr.New(apperr.Forbidden, "you can only change your own logo")
	}

	rctx, cancel := s.repoCtx(ctx)
	defer cancel()

	if _, err := s.users.GetByID(rctx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.New(apperr.NotFound, "user not found")
		}
		return "", apperr.InternalError("could not load user", err)
	}

	url, err := save(rctx)
	if err != nil {
		if apperr.KindOf(err) != apperr.Internal {
			return "", err
		}
		return "", apperr.InternalError("could not store logo", err)
	}
	if err := s.users.UpdateLogoURL(rctx, targetID, url); err != nil {
		return "", apperr.InternalError("could not update logo", err)
	}
	return url, nil
}
