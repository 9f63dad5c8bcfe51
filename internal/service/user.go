package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/kube-rca/todo/internal/db"
	"github.com/kube-rca/todo/internal/model"
)

type profileRepo interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, upd model.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type UserService struct {
	repo profileRepo
}

func NewUserService(repo profileRepo) *UserService {
	return &UserService{repo: repo}
}

// GetUser returns nil without error when the id is malformed or the user
// no longer exists; a valid token may outlive its account.
func (s *UserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the name and/or password. The password is only
// rehashed when a new one is supplied.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, name, password *string) (*model.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUnauthorized
	}

	upd := model.UserUpdate{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		upd.Name = &trimmed
	}
	if password != nil {
		if err := validatePassword(*password); err != nil {
			return nil, err
		}
		upd.Password = password
	}

	user, err := s.repo.UpdateUser(ctx, id, upd)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteAccount removes the user; todos and refresh tokens go with it.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrUnauthorized
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return ErrUnauthorized
		}
		return fmt.Errorf("delete user: %w", err)
	}
	slog.InfoContext(ctx, "account deleted", "component", "user", "user_id", id)
	return nil
}
