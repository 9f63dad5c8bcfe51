package model

import (
	"time"

	"github.com/google/uuid"
)

type Todo struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description string
	Completed   bool
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOverdue is derived, never stored.
func (t *Todo) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Completed {
		return false
	}
	return t.DueDate.Before(now)
}

type TodoInput struct {
	Title       string
	Description string
	DueDate     *time.Time
}

// TodoPatch follows the field-presence contract of updateTodo: nil means
// unchanged, ClearDueDate wins over DueDate.
type TodoPatch struct {
	Title        *string
	Description  *string
	Completed    *bool
	DueDate      *time.Time
	ClearDueDate bool
}

// Apply mutates t in place. Used by stores that do not patch in SQL.
func (p TodoPatch) Apply(t *Todo) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
}
