package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kube-rca/todo/internal/db"
	"github.com/kube-rca/todo/internal/model"
)

type todoRepo interface {
	ListTodos(ctx context.Context, userID uuid.UUID) ([]model.Todo, error)
	GetTodo(ctx context.Context, id, userID uuid.UUID) (*model.Todo, error)
	CreateTodo(ctx context.Context, userID uuid.UUID, in model.TodoInput) (*model.Todo, error)
	UpdateTodo(ctx context.Context, id, userID uuid.UUID, p model.TodoPatch) (*model.Todo, error)
	DeleteTodo(ctx context.Context, id, userID uuid.UUID) error
}

// TodoService is CRUD over todos, always scoped to the calling user. A
// todo owned by someone else is reported as not found.
type TodoService struct {
	repo todoRepo
}

func NewTodoService(repo todoRepo) *TodoService {
	return &TodoService{repo: repo}
}

func (s *TodoService) List(ctx context.Context, userID string) ([]model.Todo, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	todos, err := s.repo.ListTodos(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (s *TodoService) Get(ctx context.Context, id, userID string) (*model.Todo, error) {
	tid, uid, err := parseTodoIDs(id, userID)
	if err != nil {
		return nil, err
	}
	todo, err := s.repo.GetTodo(ctx, tid, uid)
	if err != nil {
		return nil, mapTodoErr("get todo", err)
	}
	return todo, nil
}

func (s *TodoService) Create(ctx context.Context, userID string, in model.TodoInput) (*model.Todo, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	todo, err := s.repo.CreateTodo(ctx, uid, in)
	if err != nil {
		if db.IsForeignKey(err) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return todo, nil
}

func (s *TodoService) Update(ctx context.Context, id, userID string, p model.TodoPatch) (*model.Todo, error) {
	tid, uid, err := parseTodoIDs(id, userID)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		p.Title = &title
	}
	todo, err := s.repo.UpdateTodo(ctx, tid, uid, p)
	if err != nil {
		return nil, mapTodoErr("update todo", err)
	}
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, id, userID string) error {
	tid, uid, err := parseTodoIDs(id, userID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTodo(ctx, tid, uid); err != nil {
		return mapTodoErr("delete todo", err)
	}
	return nil
}

func parseTodoIDs(id, userID string) (uuid.UUID, uuid.UUID, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrUnauthorized
	}
	tid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrNotFound
	}
	return tid, uid, nil
}

func mapTodoErr(op string, err error) error {
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
