package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kube-rca/todo/internal/model"
)

// Store is the full persistence surface. Postgres and Memory both satisfy it.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, in model.NewUser) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*model.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, upd model.UserUpdate) (*model.User, error)
	MarkUserVerified(ctx context.Context, id uuid.UUID) error
	SetPasswordResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	InsertRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)

	ListTodos(ctx context.Context, userID uuid.UUID) ([]model.Todo, error)
	GetTodo(ctx context.Context, id, userID uuid.UUID) (*model.Todo, error)
	CreateTodo(ctx context.Context, userID uuid.UUID, in model.TodoInput) (*model.Todo, error)
	UpdateTodo(ctx context.Context, id, userID uuid.UUID, p model.TodoPatch) (*model.Todo, error)
	DeleteTodo(ctx context.Context, id, userID uuid.UUID) error
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)
