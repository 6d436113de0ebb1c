package model

import "time"

// DefaultRole is assigned to every registered account.  The back office has
// a single flat role field; nothing in the auth core branches on it.
const DefaultRole = "USER"

// User represents a shop account as stored in the `users` table.  The struct
// carries no json tags on purpose: handlers serialize SafeUser, never User,
// so the password hash cannot leak into a response.
type User struct {
	ID           uint64
	NomeFantasia string // trade name
	RazaoSocial  string // registered business name
	CNPJ         string // tax id, unique
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
	Email        string // unique
	Usuario      string // login identifier, unique
	SenhaHash    string // bcrypt
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser is the projection returned by login and /auth/me.
type SafeUser struct {
	ID          uint64  `json:"id"`
	Email       string  `json:"email"`
	Usuario     string  `json:"usuario"`
	RazaoSocial string  `json:"razaoSocial"`
	LogoURL     *string `json:"logoUrl"`
	RoleGlobal  string  `json:"roleGlobal"`
}

// Safe builds the serializable projection of u.
func (u User) Safe() SafeUser {
	var logo *string
	if u.LogoURL != "" {
		l := u.LogoURL
		logo = &l
	}
	role := u.Role
	if role == "" {
		role = DefaultRole
	}
	return SafeUser{
		ID:          u.ID,
		Email:       u.Email,
		Usuario:     u.Usuario,
		RazaoSocial: u.RazaoSocial,
		LogoURL:     logo,
		RoleGlobal:  role,
	}
}

// RefreshToken models an entry in the `refresh_tokens` ledger.  Only the
// SHA-256 hash of the opaque token is stored.  Rows are never deleted; a
// non-nil RevokedAt marks the end of the session.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	JTI       string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Revoked reports whether the token has been revoked.
func (t RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
