package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kube-rca/todo/internal/model"
)

const todoColumns = `id, user_id, title, description, completed, due_date, created_at, updated_at`

func scanTodo(row pgx.Row) (*model.Todo, error) {
	var t model.Todo
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Completed,
		&t.DueDate,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// ListTodos - 사용자 todo 목록 조회 (최신순)
func (db *Postgres) ListTodos(ctx context.Context, userID uuid.UUID) ([]model.Todo, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	list := []model.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// GetTodo - 소유자 범위 단건 조회. 다른 사용자의 todo는 ErrNotFound
func (db *Postgres) GetTodo(ctx context.Context, id, userID uuid.UUID) (*model.Todo, error) {
	return scanTodo(db.Pool.QueryRow(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE id = $1 AND user_id = $2
	`, id, userID))
}

// CreateTodo - 신규 todo 저장. 삭제된 사용자면 ErrForeignKey
func (db *Postgres) CreateTodo(ctx context.Context, userID uuid.UUID, in model.TodoInput) (*model.Todo, error) {
	return scanTodo(db.Pool.QueryRow(ctx, `
		INSERT INTO todos (id, user_id, title, description, completed, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, NOW(), NOW())
		RETURNING `+todoColumns,
		uuid.New(), userID, in.Title, in.Description, in.DueDate,
	))
}

// UpdateTodo - 부분 수정. nil 필드는 유지, ClearDueDate가 DueDate보다 우선
func (db *Postgres) UpdateTodo(ctx context.Context, id, userID uuid.UUID, p model.TodoPatch) (*model.Todo, error) {
	return scanTodo(db.Pool.QueryRow(ctx, `
		UPDATE todos
		SET
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			completed = COALESCE($5, completed),
			due_date = CASE WHEN $6 THEN NULL ELSE COALESCE($7, due_date) END,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+todoColumns,
		id, userID, p.Title, p.Description, p.Completed, p.ClearDueDate, p.DueDate,
	))
}

// DeleteTodo - 소유자 범위 삭제
func (db *Postgres) DeleteTodo(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
