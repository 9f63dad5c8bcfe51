package graph

import (
	"context"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/kube-rca/todo/internal/authctx"
	"github.com/kube-rca/todo/internal/model"
)

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (string, error)
	Login(ctx context.Context, email, password string) (*model.LoginResult, error)
	RefreshAccessToken(ctx context.Context, token string) (string, error)
	VerifyEmail(ctx context.Context, token string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
}

type UserService interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, name, password *string) (*model.User, error)
	DeleteAccount(ctx context.Context, userID string) error
}

type TodoService interface {
	List(ctx context.Context, userID string) ([]model.Todo, error)
	Get(ctx context.Context, id, userID string) (*model.Todo, error)
	Create(ctx context.Context, userID string, in model.TodoInput) (*model.Todo, error)
	Update(ctx context.Context, id, userID string, p model.TodoPatch) (*model.Todo, error)
	Delete(ctx context.Context, id, userID string) error
}

// Resolver holds the services behind the schema.
type Resolver struct {
	Auth  AuthService
	Users UserService
	Todos TodoService
	Now   func() time.Time
}

type todoView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"dueDate"`
	IsOverdue   bool       `json:"isOverdue"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) view(t *model.Todo) todoView {
	return todoView{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		DueDate:     t.DueDate,
		IsOverdue:   t.IsOverdue(r.now()),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func message(msg string) map[string]interface{} {
	return map[string]interface{}{"message": msg}
}

// currentUserID is only meaningful behind RequireUser.
func currentUserID(p graphql.ResolveParams) string {
	user, _ := authctx.UserFrom(p.Context)
	return user.ID
}

func (r *Resolver) me(p graphql.ResolveParams) (interface{}, error) {
	user, ok := authctx.UserFrom(p.Context)
	if !ok {
		return nil, nil
	}
	u, err := r.Users.GetUser(p.Context, user.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	return u.Public(), nil
}

func (r *Resolver) todos(p graphql.ResolveParams) (interface{}, error) {
	list, err := r.Todos.List(p.Context, currentUserID(p))
	if err != nil {
		return nil, err
	}
	out := make([]todoView, 0, len(list))
	for i := range list {
		out = append(out, r.view(&list[i]))
	}
	return out, nil
}

func (r *Resolver) todo(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	t, err := r.Todos.Get(p.Context, id, currentUserID(p))
	if err != nil {
		return nil, err
	}
	return r.view(t), nil
}

func (r *Resolver) register(p graphql.ResolveParams) (interface{}, error) {
	in := inputArg(p)
	msg, err := r.Auth.Register(p.Context, str(in, "email"), str(in, "password"), str(in, "name"))
	if err != nil {
		return nil, err
	}
	return message(msg), nil
}

func (r *Resolver) login(p graphql.ResolveParams) (interface{}, error) {
	in := inputArg(p)
	res, err := r.Auth.Login(p.Context, str(in, "email"), str(in, "password"))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Resolver) refreshToken(p graphql.ResolveParams) (interface{}, error) {
	token, _ := p.Args["token"].(string)
	access, err := r.Auth.RefreshAccessToken(p.Context, token)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"accessToken": access}, nil
}

func (r *Resolver) verifyEmail(p graphql.ResolveParams) (interface{}, error) {
	token, _ := p.Args["token"].(string)
	msg, err := r.Auth.VerifyEmail(p.Context, token)
	if err != nil {
		return nil, err
	}
	return message(msg), nil
}

func (r *Resolver) requestPasswordReset(p graphql.ResolveParams) (interface{}, error) {
	email, _ := p.Args["email"].(string)
	msg, err := r.Auth.RequestPasswordReset(p.Context, email)
	if err != nil {
		return nil, err
	}
	return message(msg), nil
}

func (r *Resolver) resetPassword(p graphql.ResolveParams) (interface{}, error) {
	token, _ := p.Args["token"].(string)
	password, _ := p.Args["password"].(string)
	msg, err := r.Auth.ResetPassword(p.Context, token, password)
	if err != nil {
		return nil, err
	}
	return message(msg), nil
}

func (r *Resolver) updateProfile(p graphql.ResolveParams) (interface{}, error) {
	in := inputArg(p)
	u, err := r.Users.UpdateProfile(p.Context, currentUserID(p), optStr(in, "name"), optStr(in, "password"))
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func (r *Resolver) deleteAccount(p graphql.ResolveParams) (interface{}, error) {
	if err := r.Users.DeleteAccount(p.Context, currentUserID(p)); err != nil {
		return nil, err
	}
	return message("Account deleted"), nil
}

func (r *Resolver) createTodo(p graphql.ResolveParams) (interface{}, error) {
	in := inputArg(p)
	t, err := r.Todos.Create(p.Context, currentUserID(p), model.TodoInput{
		Title:       str(in, "title"),
		Description: str(in, "description"),
		DueDate:     optTime(in, "dueDate"),
	})
	if err != nil {
		return nil, err
	}
	return r.view(t), nil
}

func (r *Resolver) updateTodo(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	in := inputArg(p)
	patch := model.TodoPatch{
		Title:       optStr(in, "title"),
		Description: optStr(in, "description"),
		Completed:   optBool(in, "completed"),
		DueDate:     optTime(in, "dueDate"),
	}
	if cd := optBool(in, "clearDueDate"); cd != nil {
		patch.ClearDueDate = *cd
	}
	t, err := r.Todos.Update(p.Context, id, currentUserID(p), patch)
	if err != nil {
		return nil, err
	}
	return r.view(t), nil
}

func (r *Resolver) deleteTodo(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	if err := r.Todos.Delete(p.Context, id, currentUserID(p)); err != nil {
		return nil, err
	}
	return message("Todo deleted"), nil
}

func inputArg(p graphql.ResolveParams) map[string]interface{} {
	in, _ := p.Args["input"].(map[string]interface{})
	return in
}

func str(in map[string]interface{}, key string) string {
	s, _ := in[key].(string)
	return s
}

// optStr, optBool and optTime return nil for absent or null fields.
func optStr(in map[string]interface{}, key string) *string {
	s, ok := in[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func optBool(in map[string]interface{}, key string) *bool {
	b, ok := in[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

func optTime(in map[string]interface{}, key string) *time.Time {
	switch v := in[key].(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	}
	return nil
}
