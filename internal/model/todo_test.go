package model

import (
	"testing"
	"time"
)

func TestTodoIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		todo Todo
		want bool
	}{
		{name: "past-open", todo: Todo{DueDate: &past}, want: true},
		{name: "past-completed", todo: Todo{DueDate: &past, Completed: true}, want: false},
		{name: "future-open", todo: Todo{DueDate: &future}, want: false},
		{name: "no-due-date", todo: Todo{}, want: false},
		{name: "no-due-date-completed", todo: Todo{Completed: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.todo.IsOverdue(now); got != tt.want {
				t.Fatalf("IsOverdue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTodoPatchApply(t *testing.T) {
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := Todo{Title: "a", Description: "b", DueDate: &due}

	title := "renamed"
	done := true
	todo := base
	TodoPatch{Title: &title, Completed: &done}.Apply(&todo)
	if todo.Title != "renamed" || !todo.Completed || todo.Description != "b" || todo.DueDate == nil {
		t.Fatalf("partial patch changed unexpected fields: %+v", todo)
	}

	other := due.Add(24 * time.Hour)
	todo = base
	TodoPatch{DueDate: &other, ClearDueDate: true}.Apply(&todo)
	if todo.DueDate != nil {
		t.Fatalf("expected ClearDueDate to win, got %v", todo.DueDate)
	}

	empty := ""
	todo = base
	TodoPatch{Description: &empty}.Apply(&todo)
	if todo.Description != "" {
		t.Fatalf("expected description to be cleared")
	}
}

func TestUserPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	u := &User{PasswordHash: hash}
	if hash == "correct horse" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !u.CheckPassword("correct horse") {
		t.Fatalf("expected password to match")
	}
	if u.CheckPassword("wrong horse") {
		t.Fatalf("expected mismatch")
	}
}
