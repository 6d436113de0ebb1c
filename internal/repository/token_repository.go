package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/meatshop-backoffice/internal/dbx"
	"github.com/iliyamo/meatshop-backoffice/internal/model"
	"github.com/iliyamo/meatshop-backoffice/internal/utils"
)

// TokenRepo is the refresh-token ledger. Raw tokens never reach the table;
// every method hashes its input with utils.HashToken.
type TokenRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

// Store inserts a ledger row for a freshly issued refresh token.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, token, jti string, exp time.Time) error {
	return insertToken(ctx, r.DB, userID, token, jti, exp)
}

// FindByToken returns the ledger row for token, revoked or not.
func (r *TokenRepo) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		jti       sql.NullString
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token_hash,jti,expires_at,revoked_at,created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		utils.HashToken(token)).Scan(&t.ID, &t.UserID, &t.TokenHash, &jti, &t.ExpiresAt, &revokedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.JTI = jti.String
	if revokedAt.Valid {
		ts := revokedAt.Time
		t.RevokedAt = &ts
	}
	return &t, nil
}

// Revoke marks rec as revoked. Revoking an already-revoked row is a no-op.
func (r *TokenRepo) Revoke(ctx context.Context, rec *model.RefreshToken) error {
	if rec.RevokedAt != nil {
		return nil
	}
	now := r.now()
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE id=? AND revoked_at IS NULL",
		now, rec.ID); err != nil {
		return err
	}
	rec.RevokedAt = &now
	return nil
}

// Rotate revokes old and stores the replacement in one transaction. The
// revoke is conditional, so when two callers race on the same token only
// the first commits; the second gets ErrAlreadyRevoked and nothing is
// inserted for it.
func (r *TokenRepo) Rotate(ctx context.Context, old *model.RefreshToken, token, jti string, exp time.Time) error {
	now := r.now()
	err := dbx.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE refresh_tokens SET revoked_at=? WHERE id=? AND revoked_at IS NULL",
			now, old.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAlreadyRevoked
		}
		return insertToken(ctx, tx, old.UserID, token, jti, exp)
	})
	if err != nil {
		return err
	}
	old.RevokedAt = &now
	return nil
}

// RevokeAllForUser revokes every active token of the user and returns how
// many rows changed.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		r.now(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func insertToken(ctx context.Context, q dbx.DBTX, userID uint64, token, jti string, exp time.Time) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, jti, expires_at) VALUES (?,?,?,?)",
		userID, utils.HashToken(token), nullable(jti), exp.UTC())
	return err
}
