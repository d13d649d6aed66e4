package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrTokenInvalid is returned when a login link is unknown or expired.
var ErrTokenInvalid = errors.New("login token invalid or expired")

// TokenRepo persists one-time login link tokens.  Only the SHA-256 hash
// of the raw token is stored.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a token hash row for the user.
func (r *TokenRepo) Store(ctx context.Context, userID uuid.UUID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO auth_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp.UTC())
	return err
}

// Consume looks up the token, deletes it and returns its owner.  A token
// can be consumed once; expired tokens are removed and rejected.
func (r *TokenRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		userID    uuid.UUID
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM auth_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE",
		tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrTokenInvalid
	}
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM auth_tokens WHERE token_hash=?", tokenHash); err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	committed = true

	if now.UTC().After(expiresAt) {
		return uuid.Nil, ErrTokenInvalid
	}
	return userID, nil
}

// DeleteForUser removes every outstanding token of the user.
func (r *TokenRepo) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM auth_tokens WHERE user_id=?", userID)
	return err
}

// DeleteExpired purges tokens that expired before now.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM auth_tokens WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
