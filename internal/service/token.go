package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kube-rca/todo/internal/config"
	"github.com/kube-rca/todo/internal/model"
)

// ErrInvalidToken covers every verification failure: bad signature,
// wrong algorithm, expired, malformed or missing subject.
var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh JWTs. The two kinds
// use separate secrets so one can never be replayed as the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

func (s *TokenService) GenerateAccessToken(claims model.TokenClaims) (string, error) {
	return s.sign(claims, s.accessSecret, s.accessTTL)
}

func (s *TokenService) GenerateRefreshToken(claims model.TokenClaims) (string, error) {
	return s.sign(claims, s.refreshSecret, s.refreshTTL)
}

// RefreshTokenExpiryDate is the expiry persisted alongside a freshly issued
// refresh token.
func (s *TokenService) RefreshTokenExpiryDate() time.Time {
	return s.now().Add(s.refreshTTL)
}

func (s *TokenService) VerifyAccessToken(token string) (model.TokenClaims, error) {
	return s.verify(token, s.accessSecret)
}

func (s *TokenService) VerifyRefreshToken(token string) (model.TokenClaims, error) {
	return s.verify(token, s.refreshSecret)
}

func (s *TokenService) sign(claims model.TokenClaims, secret []byte, ttl time.Duration) (string, error) {
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	now := s.now()
	c := tokenClaims{
		UserID: claims.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) verify(tokenStr string, secret []byte) (model.TokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return model.TokenClaims{}, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return model.TokenClaims{}, ErrInvalidToken
	}
	return model.TokenClaims{UserID: userID}, nil
}
