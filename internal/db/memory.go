package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kube-rca/todo/internal/model"
)

// Memory is an in-process store with the same semantics as Postgres:
// unique emails, owner-scoped todos and cascading user deletes. Used by
// tests and STORE_DRIVER=memory.
type Memory struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*model.User
	refreshTokens map[uuid.UUID]*model.RefreshToken
	todos         map[uuid.UUID]*model.Todo
	now           func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[uuid.UUID]*model.User),
		refreshTokens: make(map[uuid.UUID]*model.RefreshToken),
		todos:         make(map[uuid.UUID]*model.Todo),
		now:           time.Now,
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	hash, err := model.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == in.Email {
			return nil, ErrDuplicate
		}
	}

	now := m.now()
	u := &model.User{
		ID:                uuid.New(),
		Email:             in.Email,
		PasswordHash:      hash,
		Name:              in.Name,
		IsVerified:        in.IsVerified,
		VerificationToken: cloneString(in.VerificationToken),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.users[u.ID] = u
	return copyUser(u), nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.findUser(func(u *model.User) bool { return u.Email == email })
}

func (m *Memory) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return m.findUser(func(u *model.User) bool { return u.ID == id })
}

func (m *Memory) GetUserByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	return m.findUser(func(u *model.User) bool {
		return u.VerificationToken != nil && *u.VerificationToken == token
	})
}

func (m *Memory) GetUserByResetToken(ctx context.Context, token string) (*model.User, error) {
	return m.findUser(func(u *model.User) bool {
		return u.ResetPasswordToken != nil && *u.ResetPasswordToken == token
	})
}

func (m *Memory) UpdateUser(ctx context.Context, id uuid.UUID, upd model.UserUpdate) (*model.User, error) {
	var hash string
	if upd.Password != nil {
		h, err := model.HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Password != nil {
		u.PasswordHash = hash
	}
	if upd.ClearResetToken {
		u.ResetPasswordToken = nil
		u.ResetPasswordExpires = nil
	}
	u.UpdatedAt = m.now()
	return copyUser(u), nil
}

func (m *Memory) MarkUserVerified(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsVerified = true
	u.VerificationToken = nil
	u.UpdatedAt = m.now()
	return nil
}

func (m *Memory) SetPasswordResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.ResetPasswordToken = &token
	u.ResetPasswordExpires = &expiresAt
	u.UpdatedAt = m.now()
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	for tid, t := range m.todos {
		if t.UserID == id {
			delete(m.todos, tid)
		}
	}
	for rid, rt := range m.refreshTokens {
		if rt.UserID == id {
			delete(m.refreshTokens, rid)
		}
	}
	return nil
}

func (m *Memory) InsertRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return ErrForeignKey
	}
	for _, rt := range m.refreshTokens {
		if rt.TokenHash == tokenHash {
			return ErrDuplicate
		}
	}
	rt := &model.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}
	m.refreshTokens[rt.ID] = rt
	return nil
}

func (m *Memory) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rt := range m.refreshTokens {
		if rt.TokenHash == tokenHash {
			out := *rt
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// ListRefreshTokensByUser is not part of Store. Tests use it to inspect
// issued rows and the delete cascade.
func (m *Memory) ListRefreshTokensByUser(ctx context.Context, userID uuid.UUID) ([]model.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := []model.RefreshToken{}
	for _, rt := range m.refreshTokens {
		if rt.UserID == userID {
			list = append(list, *rt)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (m *Memory) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, rt := range m.refreshTokens {
		if rt.ExpiresAt.Before(before) {
			delete(m.refreshTokens, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListTodos(ctx context.Context, userID uuid.UUID) ([]model.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := []model.Todo{}
	for _, t := range m.todos {
		if t.UserID == userID {
			list = append(list, *copyTodo(t))
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (m *Memory) GetTodo(ctx context.Context, id, userID uuid.UUID) (*model.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.todos[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	return copyTodo(t), nil
}

func (m *Memory) CreateTodo(ctx context.Context, userID uuid.UUID, in model.TodoInput) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return nil, ErrForeignKey
	}
	now := m.now()
	t := &model.Todo{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     cloneTime(in.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.todos[t.ID] = t
	return copyTodo(t), nil
}

func (m *Memory) UpdateTodo(ctx context.Context, id, userID uuid.UUID, p model.TodoPatch) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.todos[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	p.Apply(t)
	t.UpdatedAt = m.now()
	return copyTodo(t), nil
}

func (m *Memory) DeleteTodo(ctx context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.todos[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(m.todos, id)
	return nil
}

func (m *Memory) findUser(match func(*model.User) bool) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func copyUser(u *model.User) *model.User {
	out := *u
	out.VerificationToken = cloneString(u.VerificationToken)
	out.ResetPasswordToken = cloneString(u.ResetPasswordToken)
	out.ResetPasswordExpires = cloneTime(u.ResetPasswordExpires)
	return &out
}

func copyTodo(t *model.Todo) *model.Todo {
	out := *t
	out.DueDate = cloneTime(t.DueDate)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
