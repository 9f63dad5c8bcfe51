package model

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthUser is the identity resolved from a bearer token.
type AuthUser struct {
	ID string
}

// TokenClaims is the payload carried by access and refresh tokens.
type TokenClaims struct {
	UserID string
}

type User struct {
	ID                   uuid.UUID
	Email                string
	PasswordHash         string
	Name                 string
	IsVerified           bool
	VerificationToken    *string
	ResetPasswordToken   *string
	ResetPasswordExpires *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Public strips credentials and tokens.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID.String(),
		Email:      u.Email,
		Name:       u.Name,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

// CheckPassword reports whether candidate matches the stored hash.
func (u *User) CheckPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(candidate)) == nil
}

type PublicUser struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewUser carries a plaintext password; stores hash it on insert.
type NewUser struct {
	Email             string
	Password          string
	Name              string
	IsVerified        bool
	VerificationToken *string
}

// UserUpdate is a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Name            *string
	Password        *string
	ClearResetToken bool
}

type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type LoginResult struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         PublicUser `json:"user"`
}

// HashPassword bcrypt-hashes a plaintext password with the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// AuthRequest is the JSON body of the REST auth endpoints.
type AuthRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type AuthResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         *PublicUser `json:"user,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
