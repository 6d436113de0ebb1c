package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/meatshop-backoffice/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

const userColumns = "id,nome_fantasia,razao_social,cnpj,telefone,celular,logo_url,cep,logradouro,numero," +
	"complemento,bairro,cidade,estado,pais,email,usuario,senha_hash,role,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Exists reports whether any account already uses the login, email or tax id.
func (r *UserRepo) Exists(ctx context.Context, usuario, email, cnpj string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE usuario=? OR email=? OR cnpj=?",
		usuario, normalizeEmail(email), cnpj).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts u and returns its ID. The unique keys are the final word:
// a duplicate that slipped past Exists still surfaces as ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	role := u.Role
	if role == "" {
		role = model.DefaultRole
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (nome_fantasia,razao_social,cnpj,telefone,celular,logo_url,cep,logradouro,numero,
		complemento,bairro,cidade,estado,pais,email,usuario,senha_hash,role) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.NomeFantasia, u.RazaoSocial, u.CNPJ, nullable(u.Telefone), nullable(u.Celular), nullable(u.LogoURL),
		nullable(u.CEP), nullable(u.Logradouro), nullable(u.Numero), nullable(u.Complemento), nullable(u.Bairro),
		nullable(u.Cidade), nullable(u.Estado), nullable(u.Pais), normalizeEmail(u.Email), u.Usuario, u.SenhaHash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	u.ID = uint64(id)
	u.Role = role
	return u.ID, nil
}

// FindByLogin fetches the user whose login identifier or email matches.
func (r *UserRepo) FindByLogin(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE usuario=? OR email=? LIMIT 1",
		identifier, normalizeEmail(identifier))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// UpdatePasswordHash replaces the stored bcrypt hash.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET senha_hash=? WHERE id=?", hash, id)
	return err
}

// UpdateLogoURL sets the public avatar URL.
func (r *UserRepo) UpdateLogoURL(ctx context.Context, id uint64, url string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET logo_url=? WHERE id=?", url, id)
	return err
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u                                     model.User
		telefone, celular, logo, cep, lograd  sql.NullString
		numero, compl, bairro, cidade, estado sql.NullString
		pais                                  sql.NullString
	)
	err := row.Scan(&u.ID, &u.NomeFantasia, &u.RazaoSocial, &u.CNPJ, &telefone, &celular, &logo, &cep, &lograd,
		&numero, &compl, &bairro, &cidade, &estado, &pais, &u.Email, &u.Usuario, &u.SenhaHash, &u.Role,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Telefone, u.Celular, u.LogoURL, u.CEP = telefone.String, celular.String, logo.String, cep.String
	u.Logradouro, u.Numero, u.Complemento, u.Bairro = lograd.String, numero.String, compl.String, bairro.String
	u.Cidade, u.Estado, u.Pais = cidade.String, estado.String, pais.String
	return u, nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
