package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kube-rca/todo/internal/db"
	"github.com/kube-rca/todo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []model.MailMessage
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg model.MailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeMailer) messages() []model.MailMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.MailMessage(nil), f.sent...)
}

type authFixture struct {
	svc    *AuthService
	tokens *TokenService
	store  *db.Memory
	mailer *fakeMailer
}

func newAuthFixture(t *testing.T, autoVerify bool) authFixture {
	t.Helper()
	cfg := testAuthConfig()
	cfg.AutoVerify = autoVerify
	store := db.NewMemory()
	tokens := NewTokenService(cfg)
	mailer := &fakeMailer{}
	return authFixture{
		svc:    NewAuthService(store, store, tokens, mailer, cfg, "http://localhost:5000/"),
		tokens: tokens,
		store:  store,
		mailer: mailer,
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()

	msg, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)
	assert.Equal(t, MsgRegistered, msg)

	_, err = f.svc.Register(ctx, "  a@test.com ", "password2", "Other")
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

// racingUsers behaves as if another request inserted the same email
// between the lookup and the insert.
type racingUsers struct {
	*db.Memory
}

func (racingUsers) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, db.ErrNotFound
}

func (racingUsers) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	return nil, fmt.Errorf("%w: users_email_key", db.ErrDuplicate)
}

func TestRegister_StoreUniqueViolation(t *testing.T) {
	cfg := testAuthConfig()
	store := db.NewMemory()
	svc := NewAuthService(racingUsers{store}, store, NewTokenService(cfg), nil, cfg, "http://localhost:5000")

	_, err := svc.Register(context.Background(), "a@test.com", "password1", "A")
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegister_ConcurrentDuplicate(t *testing.T) {
	f := newAuthFixture(t, true)
	const n = 8

	start := make(chan struct{})
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Register(context.Background(), "r@test.com", "password1", "R")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	ok, dup := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateEmail):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func TestRegister_InvalidInput(t *testing.T) {
	f := newAuthFixture(t, true)
	tests := []struct {
		name                  string
		email, password, user string
	}{
		{"empty-email", "", "password1", "A"},
		{"bad-email", "not-an-email", "password1", "A"},
		{"short-password", "a@test.com", "short", "A"},
		{"blank-name", "a@test.com", "password1", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.email, tt.password, tt.user)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestRegister_DoesNotLogIn(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)

	u, err := f.store.GetUserByEmail(ctx, "a@test.com")
	require.NoError(t, err)
	tokens, err := f.store.ListRefreshTokensByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
	assert.NotEqual(t, "password1", u.PasswordHash)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)

	_, errUnknown := f.svc.Login(ctx, "nobody@test.com", "password1")
	_, errWrong := f.svc.Login(ctx, "a@test.com", "wrong-password")

	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLogin_NotVerified(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "a@test.com", "password1")
	require.ErrorIs(t, err, ErrNotVerified)

	_, err = f.svc.Login(ctx, "a@test.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials, "password is checked before verification state")
}

func TestLogin_AutoVerifyIssuesTokens(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)
	assert.Empty(t, f.mailer.messages(), "auto-verified accounts get no verification mail")

	res, err := f.svc.Login(ctx, "a@test.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "a@test.com", res.User.Email)
	assert.True(t, res.User.IsVerified)

	claims, err := f.tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	rows, err := f.store.ListRefreshTokensByUser(ctx, mustParse(t, res.User.ID))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEqual(t, res.RefreshToken, rows[0].TokenHash, "refresh tokens are stored hashed")
}

func TestVerifyEmailFlow(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@test.com", "password1", "Ada")
	require.NoError(t, err)

	msgs := f.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@test.com", msgs[0].To)
	assert.Contains(t, msgs[0].Text, "Hi Ada")
	assert.Contains(t, msgs[0].Text, "http://localhost:5000/verify?token=")

	u, err := f.store.GetUserByEmail(ctx, "a@test.com")
	require.NoError(t, err)
	require.NotNil(t, u.VerificationToken)
	assert.Contains(t, msgs[0].Text, *u.VerificationToken)

	_, err = f.svc.VerifyEmail(ctx, "bogus")
	require.ErrorIs(t, err, ErrInvalidVerificationToken)

	msg, err := f.svc.VerifyEmail(ctx, *u.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, MsgEmailVerified, msg)

	_, err = f.svc.VerifyEmail(ctx, *u.VerificationToken)
	require.ErrorIs(t, err, ErrInvalidVerificationToken, "tokens are single use")

	_, err = f.svc.Login(ctx, "a@test.com", "password1")
	require.NoError(t, err)
}

func TestRegister_MailFailureIsNotFatal(t *testing.T) {
	f := newAuthFixture(t, false)
	f.mailer.err = errors.New("smtp down")

	_, err := f.svc.Register(context.Background(), "a@test.com", "password1", "A")
	require.NoError(t, err)
}

func TestRefreshAccessToken_RoundTrip(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)
	res, err := f.svc.Login(ctx, "a@test.com", "password1")
	require.NoError(t, err)

	access, err := f.svc.RefreshAccessToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	claims, err := f.tokens.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	again, err := f.svc.RefreshAccessToken(ctx, res.RefreshToken)
	require.NoError(t, err, "refresh tokens are not rotated")
	assert.NotEmpty(t, again)
}

func TestRefreshAccessToken_Rejections(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, "b@test.com", "password1", "B")
	require.NoError(t, err)
	res, err := f.svc.Login(ctx, "a@test.com", "password1")
	require.NoError(t, err)

	for _, tok := range []string{"", "random-string", res.AccessToken} {
		_, err := f.svc.RefreshAccessToken(ctx, tok)
		require.ErrorIs(t, err, ErrInvalidRefreshToken, tok)
	}

	// a validly signed token stored under the wrong owner
	b, err := f.store.GetUserByEmail(ctx, "b@test.com")
	require.NoError(t, err)
	forged, err := f.tokens.GenerateRefreshToken(model.TokenClaims{UserID: b.ID.String()})
	require.NoError(t, err)
	a := mustParse(t, res.User.ID)
	require.NoError(t, f.store.InsertRefreshToken(ctx, a, hashRefreshToken(forged), time.Now().Add(time.Hour)))
	_, err = f.svc.RefreshAccessToken(ctx, forged)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// the stored row has expired
	f.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = f.svc.RefreshAccessToken(ctx, res.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestPurgeExpiredRefreshTokens(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "a@test.com", "password1")
	require.NoError(t, err)

	n, err := f.svc.PurgeExpiredRefreshTokens(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	n, err = f.svc.PurgeExpiredRefreshTokens(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)

	msg, err := f.svc.RequestPasswordReset(ctx, "unknown@test.com")
	require.NoError(t, err)
	assert.Equal(t, MsgResetRequested, msg)
	assert.Empty(t, f.mailer.messages())

	msg, err = f.svc.RequestPasswordReset(ctx, "a@test.com")
	require.NoError(t, err)
	assert.Equal(t, MsgResetRequested, msg)
	msgs := f.mailer.messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.Contains(msgs[0].Text, "/reset-password?token="))

	u, err := f.store.GetUserByEmail(ctx, "a@test.com")
	require.NoError(t, err)
	require.NotNil(t, u.ResetPasswordToken)
	token := *u.ResetPasswordToken

	_, err = f.svc.ResetPassword(ctx, token, "short")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.ResetPassword(ctx, "bogus", "new-password")
	require.ErrorIs(t, err, ErrInvalidResetToken)

	_, err = f.svc.ResetPassword(ctx, token, "new-password")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "a@test.com", "password1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@test.com", "new-password")
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, token, "another-password")
	require.ErrorIs(t, err, ErrInvalidResetToken, "reset tokens are single use")
}

func TestResetPassword_Expired(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@test.com", "password1", "A")
	require.NoError(t, err)
	_, err = f.svc.RequestPasswordReset(ctx, "a@test.com")
	require.NoError(t, err)
	u, err := f.store.GetUserByEmail(ctx, "a@test.com")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.ResetPassword(ctx, *u.ResetPasswordToken, "new-password")
	require.ErrorIs(t, err, ErrInvalidResetToken)
}
