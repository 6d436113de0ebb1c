package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/meatshop-backoffice/internal/apperr"
	"github.com/iliyamo/meatshop-backoffice/internal/model"
	"github.com/iliyamo/meatshop-backoffice/internal/otp"
	"github.com/iliyamo/meatshop-backoffice/internal/queue"
	"github.com/iliyamo/meatshop-backoffice/internal/repository"
	"github.com/iliyamo/meatshop-backoffice/internal/session/sessiontest"
	"github.com/iliyamo/meatshop-backoffice/internal/token"
)

type fixture struct {
	svc    *Service
	users  *sessiontest.Users
	ledger *sessiontest.Ledger
	events *sessiontest.Events
	codes  *otp.MemoryStore
	issuer *token.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	issuer, err := token.New(token.Config{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	f := &fixture{
		users:  sessiontest.NewUsers(),
		ledger: sessiontest.NewLedger(),
		events: &sessiontest.Events{},
		codes:  otp.NewMemoryStore(10 * time.Minute),
		issuer: issuer,
	}
	f.svc = New(f.users, f.ledger, issuer, f.codes, f.events, Config{BcryptCost: bcrypt.MinCost})
	return f
}

func joao() Registration {
	return Registration{
		NomeFantasia: "Casa de Carnes Joao",
		RazaoSocial:  "Joao Carnes LTDA",
		CNPJ:         "12345678000199",
		Email:        "joao@x.com",
		Usuario:      "joao",
		Senha:        "Segredo123",
	}
}

func (f *fixture) register(t *testing.T, r Registration) uint64 {
	t.Helper()
	id, err := f.svc.Register(context.Background(), r)
	require.NoError(t, err)
	return id
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), err.Error())
}

func TestRegister_Duplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, joao())

	sameLogin := joao()
	sameLogin.Email, sameLogin.CNPJ = "other@x.com", "999"
	_, err := f.svc.Register(ctx, sameLogin)
	requireKind(t, err, apperr.Conflict)

	sameEmail := joao()
	sameEmail.Usuario, sameEmail.CNPJ = "other", "999"
	_, err = f.svc.Register(ctx, sameEmail)
	requireKind(t, err, apperr.Conflict)

	sameCNPJ := joao()
	sameCNPJ.Usuario, sameCNPJ.Email = "other", "other@x.com"
	_, err = f.svc.Register(ctx, sameCNPJ)
	requireKind(t, err, apperr.Conflict)
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newFixture(t)
	for _, pw := range []string{"short1A", "alllowercase1"} {
		r := joao()
		r.Senha = pw
		_, err := f.svc.Register(context.Background(), r)
		requireKind(t, err, apperr.Validation)
	}
}

func TestRegister_StoresHashNotPassword(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())

	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.NotEqual(t, "Segredo123", u.SenhaHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.SenhaHash), []byte("Segredo123")))
	assert.Equal(t, "USER", u.Role)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())

	res, err := f.svc.Login(context.Background(), "joao", "Segredo123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Credentials.AccessToken)
	assert.NotEmpty(t, res.Credentials.RefreshToken)
	assert.Equal(t, "joao@x.com", res.User.Email)
	assert.Equal(t, id, res.User.ID)
	assert.Equal(t, 1, f.ledger.Active(id))

	claims, err := f.issuer.Verify(token.Access, res.Credentials.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "joao@x.com", claims.Email)
	assert.Len(t, f.events.OfType(queue.EventLogin), 1)
}

func TestLogin_ByEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, joao())
	_, err := f.svc.Login(context.Background(), "joao@x.com", "Segredo123")
	assert.NoError(t, err)
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t)
	f.register(t, joao())

	_, err := f.svc.Login(context.Background(), "joao", "WrongPass1")
	requireKind(t, err, apperr.Unauthorized)

	_, err = f.svc.Login(context.Background(), "nobody", "Segredo123")
	requireKind(t, err, apperr.Unauthorized)
}

func TestValidateCredentials_DistinguishesUnknownUser(t *testing.T) {
	f := newFixture(t)
	f.register(t, joao())

	_, err := f.svc.ValidateCredentials(context.Background(), "nobody", "x")
	requireKind(t, err, apperr.NotFound)

	u, err := f.svc.ValidateCredentials(context.Background(), "joao", "Segredo123")
	require.NoError(t, err)
	assert.Empty(t, u.SenhaHash)
}

func TestLogin_PublishFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, joao())
	f.events.Err = errors.New("broker down")

	_, err := f.svc.Login(context.Background(), "joao", "Segredo123")
	assert.NoError(t, err)
}

func TestRefresh_Rotates(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "joao", "Segredo123")
	require.NoError(t, err)

	creds, err := f.svc.Refresh(ctx, res.Credentials.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Credentials.RefreshToken, creds.RefreshToken)
	assert.NotEmpty(t, creds.AccessToken)
	assert.Equal(t, 1, f.ledger.Active(id))

	// The new token keeps working.
	_, err = f.svc.Refresh(ctx, creds.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_OldTokenRejectedAfterRotation(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "joao", "Segredo123")
	require.NoError(t, err)
	creds, err := f.svc.Refresh(ctx, res.Credentials.RefreshToken)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, res.Credentials.RefreshToken)
	requireKind(t, err, apperr.Forbidden)

	// Reuse revokes the whole family, including the token that replaced it.
	assert.Equal(t, 0, f.ledger.Active(id))
	_, err = f.svc.Refresh(ctx, creds.RefreshToken)
	requireKind(t, err, apperr.Forbidden)
	assert.NotEmpty(t, f.events.OfType(queue.EventRefreshReuse))
}

func TestRefresh_RevokedTokenAlwaysForbidden(t *testing.T) {
	f := newFixture(t)
	f.register(t, joao())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "joao", "Segredo123")
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, res.Credentials.RefreshToken))

	for i := 0; i < 3; i++ {
		_, err = f.svc.Refresh(ctx, res.Credentials.RefreshToken)
		requireKind(t, err, apperr.Forbidden)
	}
}

func TestRefresh_Unauthorized(t *testing.T) {
	f := newFixture(t)
	f.register(t, joao())
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, "")
	requireKind(t, err, apperr.Unauthorized)

	_, err = f.svc.Refresh(ctx, "not-a-jwt")
	requireKind(t, err, apperr.Unauthorized)

	// Signed correctly but never stored.
	orphan, err := f.issuer.IssueRefresh(token.Payload{UserID: 1, Email: "joao@x.com"})
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, orphan.Token)
	requireKind(t, err, apperr.Unauthorized)

	// An access token is not a refresh token.
	res, err := f.svc.Login(ctx, "joao", "Segredo123")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, res.Credentials.AccessToken)
	requireKind(t, err, apperr.Unauthorized)
}

func TestRefresh_ExpiredLedgerRecord(t *testing.T) {
	f := newFixture(t)
	f.register(t, joao())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "joao", "Segredo123")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = f.svc.Refresh(ctx, res.Credentials.RefreshToken)
	requireKind(t, err, apperr.Unauthorized)
}

func TestRefresh_ExpiredJWT(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	short, err := token.New(token.Config{AccessSecret: "access-secret", RefreshSecret: "refresh-secret"})
	require.NoError(t, err)
	dead, err := short.IssueRefresh(token.Payload{UserID: id})
	require.NoError(t, err)
	require.NoError(t, f.ledger.Store(ctx, id, dead.Token, dead.JTI, time.Now().Add(time.Hour)))

	_, err = f.svc.Refresh(ctx, dead.Token)
	requireKind(t, err, apperr.Unauthorized)
}

func TestRefresh_UserGone(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "joao", "Segredo123")
	require.NoError(t, err)
	f.users.Delete(id)

	_, err = f.svc.Refresh(ctx, res.Credentials.RefreshToken)
	requireKind(t, err, apperr.Unauthorized)
}

// lostRaceLedger simulates a concurrent refresh that revoked the record
// between lookup and rotation.
type lostRaceLedger struct{ *sessiontest.Ledger }

func (lostRaceLedger) Rotate(context.Context, *model.RefreshToken, string, string, time.Time) error {
	return repository.ErrAlreadyRevoked
}

func TestRefresh_LostRaceIsForbidden(t *testing.T) {
	f := newFixture(t)
	f.register(t, joao())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "joao", "Segredo123")
	require.NoError(t, err)

	f.svc.ledger = lostRaceLedger{f.ledger}
	_, err = f.svc.Refresh(ctx, res.Credentials.RefreshToken)
	requireKind(t, err, apperr.Forbidden)
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "joao", "Segredo123")
	require.NoError(t, err)

	assert.NoError(t, f.svc.Logout(ctx, res.Credentials.RefreshToken))
	assert.NoError(t, f.svc.Logout(ctx, res.Credentials.RefreshToken))
	assert.NoError(t, f.svc.Logout(ctx, ""))
	assert.NoError(t, f.svc.Logout(ctx, "unknown"))
	assert.Equal(t, 0, f.ledger.Active(id))
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	u, err := f.svc.Me(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "joao", u.Usuario)
	assert.Equal(t, "Joao Carnes LTDA", u.RazaoSocial)
	assert.Nil(t, u.LogoURL)

	_, err = f.svc.Me(ctx, id+100)
	requireKind(t, err, apperr.NotFound)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "joao", "Segredo123")
	require.NoError(t, err)

	requireKind(t, f.svc.ResetPassword(ctx, "joao", "weak"), apperr.Validation)
	requireKind(t, f.svc.ResetPassword(ctx, "nobody", "NovaSenha1"), apperr.NotFound)

	require.NoError(t, f.svc.ResetPassword(ctx, "joao@x.com", "NovaSenha1"))
	assert.Equal(t, 0, f.ledger.Active(id))

	_, err = f.svc.Login(ctx, "joao", "Segredo123")
	requireKind(t, err, apperr.Unauthorized)
	_, err = f.svc.Login(ctx, "joao", "NovaSenha1")
	assert.NoError(t, err)

	_, err = f.svc.Refresh(ctx, res.Credentials.RefreshToken)
	requireKind(t, err, apperr.Forbidden)
	assert.Len(t, f.events.OfType(queue.EventPasswordReset), 1)
}

func TestRequestAndVerifyCode(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	requireKind(t, f.svc.RequestCode(ctx, "nobody"), apperr.NotFound)
	require.NoError(t, f.svc.RequestCode(ctx, "joao"))

	sent := f.events.OfType(queue.EventCodeRequested)
	require.Len(t, sent, 1)
	code := sent[0].Code
	assert.True(t, otp.Valid(code))
	assert.Equal(t, "joao@x.com", sent[0].Email)

	uid, err := f.svc.VerifyCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, id, uid)

	// Single use.
	_, err = f.svc.VerifyCode(ctx, code)
	requireKind(t, err, apperr.Unauthorized)
}

func TestVerifyCode_Malformed(t *testing.T) {
	f := newFixture(t)
	for _, c := range []string{"", "123", "12345", "abcd"} {
		_, err := f.svc.VerifyCode(context.Background(), c)
		requireKind(t, err, apperr.Validation)
	}
}

func TestUpdateLogo(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	saved := 0
	save := func(context.Context) (string, error) {
		saved++
		return "/uploads/logo.png", nil
	}

	_, err := f.svc.UpdateLogo(ctx, id+1, id, save)
	requireKind(t, err, apperr.Forbidden)

	_, err = f.svc.UpdateLogo(ctx, id+1, id+1, save)
	requireKind(t, err, apperr.NotFound)
	assert.Zero(t, saved)

	url, err := f.svc.UpdateLogo(ctx, id, id, save)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/logo.png", url)
	assert.Equal(t, 1, saved)

	me, err := f.svc.Me(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, me.LogoURL)
	assert.Equal(t, "/uploads/logo.png", *me.LogoURL)
}

func TestUpdateLogo_SaveErrors(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, joao())
	ctx := context.Background()

	_, err := f.svc.UpdateLogo(ctx, id, id, func(context.Context) (string, error) {
		return "", errors.New("disk full")
	})
	requireKind(t, err, apperr.Internal)

	_, err = f.svc.UpdateLogo(ctx, id, id, func(context.Context) (string, error) {
		return "", apperr.New(apperr.Validation, "unsupported file type")
	})
	requireKind(t, err, apperr.Validation)
}
