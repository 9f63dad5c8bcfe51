package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kube-rca/todo/internal/config"
	"github.com/kube-rca/todo/internal/db"
	"github.com/kube-rca/todo/internal/model"
	tmpl "github.com/kube-rca/todo/internal/template"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72

	MsgRegistered      = "User registered successfully"
	MsgEmailVerified   = "Email verified successfully"
	MsgResetRequested  = "If the email is registered, a reset link has been sent"
	MsgPasswordChanged = "Password has been reset"
)

type userRepo interface {
	CreateUser(ctx context.Context, in model.NewUser) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*model.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, upd model.UserUpdate) (*model.User, error)
	MarkUserVerified(ctx context.Context, id uuid.UUID) error
	SetPasswordResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
}

type refreshTokenRepo interface {
	InsertRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

type tokenIssuer interface {
	GenerateAccessToken(claims model.TokenClaims) (string, error)
	GenerateRefreshToken(claims model.TokenClaims) (string, error)
	RefreshTokenExpiryDate() time.Time
	VerifyRefreshToken(token string) (model.TokenClaims, error)
}

// Mailer delivers transactional mail. Implementations live in internal/client.
type Mailer interface {
	Send(ctx context.Context, msg model.MailMessage) error
}

// AuthService orchestrates registration, login, token refresh and the
// verification and password-reset flows.
type AuthService struct {
	users      userRepo
	refresh    refreshTokenRepo
	tokens     tokenIssuer
	mailer     Mailer
	autoVerify bool
	resetTTL   time.Duration
	publicURL  string
	now        func() time.Time
}

func NewAuthService(users userRepo, refresh refreshTokenRepo, tokens tokenIssuer, mailer Mailer, cfg config.AuthConfig, publicURL string) *AuthService {
	return &AuthService{
		users:      users,
		refresh:    refresh,
		tokens:     tokens,
		mailer:     mailer,
		autoVerify: cfg.AutoVerify,
		resetTTL:   cfg.ResetTTL,
		publicURL:  strings.TrimRight(publicURL, "/"),
		now:        time.Now,
	}
}

// Register creates an account. It never logs the user in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (string, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return "", ErrDuplicateEmail
	} else if !db.IsNotFound(err) {
		return "", fmt.Errorf("lookup user: %w", err)
	}

	in := model.NewUser{
		Email:      email,
		Password:   password,
		Name:       name,
		IsVerified: s.autoVerify,
	}
	if !s.autoVerify {
		token, err := randomHex(20)
		if err != nil {
			return "", err
		}
		in.VerificationToken = &token
	}

	user, err := s.users.CreateUser(ctx, in)
	if err != nil {
		if db.IsDuplicate(err) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "user registered", "component", "auth", "user_id", user.ID)

	if user.VerificationToken != nil {
		link := s.publicURL + "/verify?token=" + url.QueryEscape(*user.VerificationToken)
		s.sendMail(ctx, user, tmpl.VerificationSubject, tmpl.VerificationBody, &tmpl.LinkData{URL: link})
	}
	return MsgRegistered, nil
}

// Login exchanges credentials for an access/refresh token pair. Unknown
// email and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			// keep timing close to the wrong-password path
			dummy := model.User{PasswordHash: dummyHash()}
			dummy.CheckPassword(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	claims := model.TokenClaims{UserID: user.ID.String()}
	accessToken, err := s.tokens.GenerateAccessToken(claims)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(claims)
	if err != nil {
		return nil, err
	}
	if err := s.refresh.InsertRefreshToken(ctx, user.ID, hashRefreshToken(refreshToken), s.tokens.RefreshTokenExpiryDate()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	slog.InfoContext(ctx, "user logged in", "component", "auth", "user_id", user.ID)
	return &model.LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Public(),
	}, nil
}

// RefreshAccessToken issues a new access token for a stored, unexpired
// refresh token. The refresh token itself is not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrInvalidRefreshToken
	}

	record, err := s.refresh.GetRefreshTokenByHash(ctx, hashRefreshToken(token))
	if err != nil {
		if db.IsNotFound(err) {
			return "", ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("lookup refresh token: %w", err)
	}
	if !s.now().Before(record.ExpiresAt) {
		return "", ErrInvalidRefreshToken
	}

	claims, err := s.tokens.VerifyRefreshToken(token)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	if claims.UserID != record.UserID.String() {
		slog.WarnContext(ctx, "refresh token subject mismatch", "component", "auth", "user_id", record.UserID)
		return "", ErrInvalidRefreshToken
	}

	return s.tokens.GenerateAccessToken(claims)
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidVerificationToken
	}
	user, err := s.users.GetUserByVerificationToken(ctx, token)
	if err != nil {
		if db.IsNotFound(err) {
			return "", ErrInvalidVerificationToken
		}
		return "", fmt.Errorf("lookup verification token: %w", err)
	}
	if err := s.users.MarkUserVerified(ctx, user.ID); err != nil {
		if db.IsNotFound(err) {
			return "", ErrInvalidVerificationToken
		}
		return "", fmt.Errorf("mark verified: %w", err)
	}
	slog.InfoContext(ctx, "email verified", "component", "auth", "user_id", user.ID)
	return MsgEmailVerified, nil
}

// RequestPasswordReset always acknowledges so callers cannot probe which
// emails are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			return MsgResetRequested, nil
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	token, err := randomHex(32)
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.resetTTL)
	if err := s.users.SetPasswordResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	link := s.publicURL + "/reset-password?token=" + url.QueryEscape(token)
	s.sendMail(ctx, user, tmpl.PasswordResetSubject, tmpl.PasswordResetBody, &tmpl.LinkData{URL: link, ExpiresAt: expiresAt})
	return MsgResetRequested, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidResetToken
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}

	user, err := s.users.GetUserByResetToken(ctx, token)
	if err != nil {
		if db.IsNotFound(err) {
			return "", ErrInvalidResetToken
		}
		return "", fmt.Errorf("lookup reset token: %w", err)
	}
	if user.ResetPasswordExpires == nil || !s.now().Before(*user.ResetPasswordExpires) {
		return "", ErrInvalidResetToken
	}

	if _, err := s.users.UpdateUser(ctx, user.ID, model.UserUpdate{Password: &password, ClearResetToken: true}); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	slog.InfoContext(ctx, "password reset", "component", "auth", "user_id", user.ID)
	return MsgPasswordChanged, nil
}

// PurgeExpiredRefreshTokens removes refresh rows past their expiry. Live
// tokens are untouched.
func (s *AuthService) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	n, err := s.refresh.DeleteExpiredRefreshTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "purged expired refresh tokens", "component", "auth", "count", n)
	}
	return n, nil
}

func (s *AuthService) sendMail(ctx context.Context, user *model.User, subject, body string, link *tmpl.LinkData) {
	if s.mailer == nil {
		return
	}
	data := tmpl.UserDataFromModel(user)
	msg := model.MailMessage{
		To:      user.Email,
		Subject: subject,
		Text:    tmpl.RenderBody(body, &data, link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "send mail failed", "component", "auth", "subject", subject, "err", err)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLength)
	}
	return nil
}

func randomHex(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

var dummyHash = sync.OnceValue(func() string {
	hash, err := model.HashPassword("not-a-real-password")
	if err != nil {
		return ""
	}
	return hash
})
