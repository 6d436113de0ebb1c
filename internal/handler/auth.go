package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meatshop-backoffice/internal/carrier"
	"github.com/iliyamo/meatshop-backoffice/internal/logging"
	"github.com/iliyamo/meatshop-backoffice/internal/middleware"
	"github.com/iliyamo/meatshop-backoffice/internal/model"
	"github.com/iliyamo/meatshop-backoffice/internal/session"
)

// AuthHandler bundles dependencies for the /auth endpoints.
type AuthHandler struct {
	Sessions *session.Service
	Carrier  *carrier.Carrier
	Log      logging.Logger
}

func NewAuthHandler(s *session.Service, c *carrier.Carrier, log logging.Logger) *AuthHandler {
	return &AuthHandler{Sessions: s, Carrier: c, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	NomeFantasia string `json:"nomeFantasia"`
	RazaoSocial  string `json:"razaoSocial"`
	CNPJ         string `json:"cnpj"`
	Telefone     string `json:"telefone"`
	Celular      string `json:"celular"`
	LogoURL      string `json:"logoUrl"`
	CEP          string `json:"cep"`
	Logradouro   string `json:"logradouro"`
	Numero       string `json:"numero"`
	Complemento  string `json:"complemento"`
	Bairro       string `json:"bairro"`
	Cidade       string `json:"cidade"`
	Estado       string `json:"estado"`
	Pais         string `json:"pais"`
	Email        string `json:"email"`
	Usuario      string `json:"usuario"`
	Senha        string `json:"senha"`
}

func (r *registerReq) normalize() {
	r.NomeFantasia = strings.TrimSpace(r.NomeFantasia)
	r.RazaoSocial = strings.TrimSpace(r.RazaoSocial)
	r.CNPJ = strings.TrimSpace(r.CNPJ)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Usuario = strings.TrimSpace(r.Usuario)
}

func (r registerReq) missing() bool {
	return r.NomeFantasia == "" || r.RazaoSocial == "" || r.CNPJ == "" ||
		r.Email == "" || r.Usuario == "" || r.Senha == ""
}

func (r registerReq) registration() session.Registration {
	return session.Registration{
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
		Senha:        r.Senha,
	}
}

// credentialsReq serves login and reset-password: usuario accepts the login
// identifier or the email.
type credentialsReq struct {
	Usuario string `json:"usuario"`
	Senha   string `json:"senha"`
}

type requestCodeReq struct {
	Usuario string `json:"usuario"`
}

type verifyCodeReq struct {
	Codigo string `json:"codigo"`
}

type registerResp struct {
	OK      bool   `json:"ok"`
	ID      uint64 `json:"id"`
	Message string `json:"message"`
}

type loginResp struct {
	OK          bool           `json:"ok"`
	Message     string         `json:"message"`
	AccessToken string         `json:"accessToken"`
	User        model.SafeUser `json:"user"`
}

type refreshResp struct {
	OK          bool   `json:"ok"`
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

type okResp struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Register: POST /auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.normalize()
	if req.missing() {
		return badRequest(c, "nomeFantasia, razaoSocial, cnpj, email, usuario and senha are required")
	}

	id, err := h.Sessions.Register(c.Request().Context(), req.registration())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, registerResp{OK: true, ID: id, Message: "user registered"})
}

// Login: POST /auth/login. Sets both cookies and returns the access token
// in the body as well.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Usuario = strings.TrimSpace(req.Usuario)
	if req.Usuario == "" || req.Senha == "" {
		return badRequest(c, "usuario and senha are required")
	}

	res, err := h.Sessions.Login(c.Request().Context(), req.Usuario, req.Senha)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Carrier.Attach(c.Response(), res.Credentials)
	return c.JSON(http.StatusOK, loginResp{
		OK:          true,
		Message:     "login successful",
		AccessToken: res.Credentials.AccessToken,
		User:        res.User,
	})
}

// Refresh: POST /auth/refresh. The refresh token comes from the cookie or
// the X-Refresh-Token header, never from the body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := h.Carrier.RefreshToken(c.Request())
	creds, err := h.Sessions.Refresh(c.Request().Context(), raw)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Carrier.Attach(c.Response(), creds)
	return c.JSON(http.StatusOK, refreshResp{OK: true, Message: "session refreshed", AccessToken: creds.AccessToken})
}

// Logout: POST /auth/logout. Always 200; cookies are always cleared.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.Sessions.Logout(ctx, h.Carrier.RefreshToken(c.Request())); err != nil {
		h.Log.Warn(ctx, "logout: revoke failed", "error", err)
	}
	h.Carrier.Clear(c.Response())
	return c.JSON(http.StatusOK, okResp{OK: true, Message: "logged out"})
}

// Me: GET /auth/me (guarded).
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Sessions.Me(c.Request().Context(), id.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "user": u})
}

// RequestCode: POST /auth/request-code. The code itself is delivered out of
// band and never appears in the response.
func (h *AuthHandler) RequestCode(c echo.Context) error {
	var req requestCodeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Usuario = strings.TrimSpace(req.Usuario)
	if req.Usuario == "" {
		return badRequest(c, "usuario is required")
	}
	if err := h.Sessions.RequestCode(c.Request().Context(), req.Usuario); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, okResp{OK: true, Message: "verification code sent"})
}

// VerifyCode: POST /auth/verify-code
func (h *AuthHandler) VerifyCode(c echo.Context) error {
	var req verifyCodeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if _, err := h.Sessions.VerifyCode(c.Request().Context(), req.Codigo); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, okResp{OK: true, Message: "code verified"})
}

// ResetPassword: POST /auth/reset-password
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Usuario = strings.TrimSpace(req.Usuario)
	if req.Usuario == "" || req.Senha == "" {
		return badRequest(c, "usuario and new senha are required")
	}
	if err := h.Sessions.ResetPassword(c.Request().Context(), req.Usuario, req.Senha); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, okResp{OK: true, Message: "password reset"})
}
