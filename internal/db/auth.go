package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kube-rca/todo/internal/model"
)

const userColumns = `id, email, password_hash, name, is_verified, verification_token,
	reset_password_token, reset_password_expires, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.IsVerified,
		&user.VerificationToken,
		&user.ResetPasswordToken,
		&user.ResetPasswordExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// CreateUser hashes the plaintext password before it reaches the table.
func (db *Postgres) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	hash, err := model.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, is_verified, verification_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + userColumns
	return scanUser(db.Pool.QueryRow(ctx, query, uuid.New(), in.Email, hash, in.Name, in.IsVerified, in.VerificationToken))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, email))
}

func (db *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, id))
}

func (db *Postgres) GetUserByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, token))
}

func (db *Postgres) GetUserByResetToken(ctx context.Context, token string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_password_token = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, token))
}

// UpdateUser rehashes only when the update carries a password.
func (db *Postgres) UpdateUser(ctx context.Context, id uuid.UUID, upd model.UserUpdate) (*model.User, error) {
	var hash *string
	if upd.Password != nil {
		h, err := model.HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		hash = &h
	}

	query := `
		UPDATE users
		SET
			name = COALESCE($2, name),
			password_hash = COALESCE($3, password_hash),
			reset_password_token = CASE WHEN $4 THEN NULL ELSE reset_password_token END,
			reset_password_expires = CASE WHEN $4 THEN NULL ELSE reset_password_expires END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(db.Pool.QueryRow(ctx, query, id, upd.Name, hash, upd.ClearResetToken))
}

func (db *Postgres) MarkUserVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *Postgres) SetPasswordResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users
		SET reset_password_token = $2, reset_password_expires = $3, updated_at = NOW()
		WHERE id = $1
	`, id, token, expiresAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser relies on ON DELETE CASCADE for todos and refresh_tokens.
func (db *Postgres) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *Postgres) InsertRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := db.Pool.Exec(ctx, query, uuid.New(), userID, tokenHash, expiresAt)
	return translate(err)
}

func (db *Postgres) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var token model.RefreshToken
	err := db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (db *Postgres) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}
