// Package web is the server-rendered view layer. It keeps the access token
// in a server-side session and forwards it to the GraphQL API as a bearer
// credential.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/todo/internal/client"
	"github.com/kube-rca/todo/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

const unauthorizedCode = "UNAUTHORIZED"

type graphQLDoer interface {
	Do(ctx context.Context, query string, variables map[string]any, token string, out any) error
}

type Handler struct {
	api      graphQLDoer
	sessions *sessionStore
	secret   []byte
	secure   bool
	tmpl     *template.Template
}

func NewHandler(api graphQLDoer, cfg config.SessionConfig) (*Handler, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"dateValue": dateValue,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{
		api:      api,
		sessions: newSessionStore(cfg.TTL),
		secret:   []byte(cfg.Secret),
		secure:   cfg.CookieSecure,
		tmpl:     tmpl,
	}, nil
}

func (h *Handler) Register(r *gin.Engine) {
	r.SetHTMLTemplate(h.tmpl)

	r.GET("/", h.index)
	r.GET("/register", h.registerPage)
	r.POST("/register", h.register)
	r.GET("/login", h.loginPage)
	r.POST("/login", h.login)
	r.GET("/logout", h.logout)
	r.GET("/verify", h.verify)
	r.GET("/forgot-password", h.forgotPasswordPage)
	r.POST("/forgot-password", h.forgotPassword)
	r.GET("/reset-password", h.resetPasswordPage)
	r.POST("/reset-password", h.resetPassword)
	r.GET("/todos", h.todos)
	r.POST("/todos", h.createTodo)
	r.POST("/todos/:id/update", h.updateTodo)
	r.POST("/todos/:id/delete", h.deleteTodo)
}

// SweepSessions drops expired sessions.
func (h *Handler) SweepSessions() int {
	return h.sessions.sweep()
}

func (h *Handler) index(c *gin.Context) {
	var user *sessionUser
	if sess := h.session(c); sess.authenticated() {
		user = &sess.user
	}
	c.HTML(http.StatusOK, "index.html", gin.H{"Title": "Todo App", "User": user})
}

func (h *Handler) registerPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", gin.H{})
}

func (h *Handler) register(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	name := strings.TrimSpace(c.PostForm("name"))
	if email == "" || password == "" || name == "" {
		c.HTML(http.StatusOK, "register.html", gin.H{"Error": "All fields are required: email, password, and name"})
		return
	}

	vars := map[string]any{"input": map[string]any{"email": email, "password": password, "name": name}}
	if err := h.api.Do(c.Request.Context(), registerMutation, vars, "", nil); err != nil {
		c.HTML(http.StatusOK, "register.html", gin.H{"Error": userMessage(c, err, "Registration failed. Please try again.")})
		return
	}
	redirectWith(c, "/login", "message", "Registration successful! Check your email to verify your account, then log in.")
}

func (h *Handler) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{
		"Error":   c.Query("error"),
		"Message": c.Query("message"),
	})
}

func (h *Handler) login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	if email == "" || password == "" {
		c.HTML(http.StatusOK, "login.html", gin.H{"Error": "Email and password are required"})
		return
	}

	var out struct {
		Login *struct {
			AccessToken string      `json:"accessToken"`
			User        sessionUser `json:"user"`
		} `json:"login"`
	}
	vars := map[string]any{"input": map[string]any{"email": email, "password": password}}
	if err := h.api.Do(c.Request.Context(), loginMutation, vars, "", &out); err != nil {
		c.HTML(http.StatusOK, "login.html", gin.H{"Error": userMessage(c, err, "Login failed. Please try again.")})
		return
	}
	if out.Login == nil || out.Login.User.ID == "" || out.Login.AccessToken == "" {
		c.HTML(http.StatusOK, "login.html", gin.H{"Error": "Login failed: Invalid credentials"})
		return
	}

	if raw, err := c.Cookie(sessionCookieName); err == nil {
		if oldID, ok := verifyID(h.secret, raw); ok {
			h.sessions.delete(oldID)
		}
	}
	id, err := h.sessions.create(out.Login.User, out.Login.AccessToken)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "session create failed", "component", "web", "err", err)
		c.HTML(http.StatusOK, "login.html", gin.H{"Error": "Login failed. Please try again."})
		return
	}
	h.setSessionCookie(c, id)
	c.Redirect(http.StatusFound, "/todos")
}

func (h *Handler) logout(c *gin.Context) {
	h.destroySession(c)
	c.Redirect(http.StatusFound, "/login")
}

func (h *Handler) verify(c *gin.Context) {
	vars := map[string]any{"token": c.Query("token")}
	var out struct {
		VerifyEmail *messageData `json:"verifyEmail"`
	}
	if err := h.api.Do(c.Request.Context(), verifyEmailMutation, vars, "", &out); err != nil {
		redirectWith(c, "/login", "error", userMessage(c, err, "Verification failed."))
		return
	}
	redirectWith(c, "/login", "message", "Email verified. You can log in now.")
}

func (h *Handler) forgotPasswordPage(c *gin.Context) {
	c.HTML(http.StatusOK, "forgot_password.html", gin.H{})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	if email == "" {
		c.HTML(http.StatusOK, "forgot_password.html", gin.H{"Error": "Email is required"})
		return
	}
	var out struct {
		RequestPasswordReset *messageData `json:"requestPasswordReset"`
	}
	if err := h.api.Do(c.Request.Context(), requestPasswordResetMutation, map[string]any{"email": email}, "", &out); err != nil {
		c.HTML(http.StatusOK, "forgot_password.html", gin.H{"Error": userMessage(c, err, "Request failed. Please try again.")})
		return
	}
	msg := ""
	if out.RequestPasswordReset != nil {
		msg = out.RequestPasswordReset.Message
	}
	c.HTML(http.StatusOK, "forgot_password.html", gin.H{"Message": msg})
}

func (h *Handler) resetPasswordPage(c *gin.Context) {
	c.HTML(http.StatusOK, "reset_password.html", gin.H{"Token": c.Query("token")})
}

func (h *Handler) resetPassword(c *gin.Context) {
	token := c.PostForm("token")
	password := c.PostForm("password")
	if password == "" || password != c.PostForm("confirm") {
		c.HTML(http.StatusOK, "reset_password.html", gin.H{"Token": token, "Error": "Passwords do not match"})
		return
	}
	vars := map[string]any{"token": token, "password": password}
	if err := h.api.Do(c.Request.Context(), resetPasswordMutation, vars, "", nil); err != nil {
		c.HTML(http.StatusOK, "reset_password.html", gin.H{"Token": token, "Error": userMessage(c, err, "Reset failed. Please try again.")})
		return
	}
	redirectWith(c, "/login", "message", "Password updated. Please log in.")
}

func (h *Handler) todos(c *gin.Context) {
	sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	var out struct {
		Todos []todoItem `json:"todos"`
	}
	data := gin.H{
		"User":    sess.user,
		"Success": c.Query("success"),
		"Error":   c.Query("error"),
	}
	if err := h.api.Do(c.Request.Context(), todosQuery, nil, sess.token, &out); err != nil {
		if h.handleUnauthorized(c, err) {
			return
		}
		slog.ErrorContext(c.Request.Context(), "load todos failed", "component", "web", "err", err)
		data["Error"] = "Failed to load todos. Please try again."
		data["Success"] = ""
	}
	data["Todos"] = out.Todos
	c.HTML(http.StatusOK, "todos.html", data)
}

func (h *Handler) createTodo(c *gin.Context) {
	sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		redirectWith(c, "/todos", "error", "Title is required")
		return
	}
	input := map[string]any{
		"title":       title,
		"description": strings.TrimSpace(c.PostForm("description")),
	}
	if raw := strings.TrimSpace(c.PostForm("dueDate")); raw != "" {
		due, err := parseDueDate(raw)
		if err != nil {
			redirectWith(c, "/todos", "error", "Due date must be YYYY-MM-DD")
			return
		}
		input["dueDate"] = due
	}

	if err := h.api.Do(c.Request.Context(), createTodoMutation, map[string]any{"input": input}, sess.token, nil); err != nil {
		h.todoFailure(c, err)
		return
	}
	redirectWith(c, "/todos", "success", "Todo created successfully!")
}

// updateTodo forwards only the fields present in the form. An empty
// dueDate clears the due date.
func (h *Handler) updateTodo(c *gin.Context) {
	sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	input := map[string]any{}
	if v, ok := c.GetPostForm("title"); ok {
		input["title"] = strings.TrimSpace(v)
	}
	if v, ok := c.GetPostForm("description"); ok {
		input["description"] = strings.TrimSpace(v)
	}
	if v, ok := c.GetPostForm("completed"); ok {
		input["completed"] = v == "true" || v == "on"
	}
	if v, ok := c.GetPostForm("dueDate"); ok {
		v = strings.TrimSpace(v)
		if v == "" {
			input["clearDueDate"] = true
		} else {
			due, err := parseDueDate(v)
			if err != nil {
				redirectWith(c, "/todos", "error", "Due date must be YYYY-MM-DD")
				return
			}
			input["dueDate"] = due
		}
	}

	vars := map[string]any{"id": c.Param("id"), "input": input}
	if err := h.api.Do(c.Request.Context(), updateTodoMutation, vars, sess.token, nil); err != nil {
		h.todoFailure(c, err)
		return
	}
	redirectWith(c, "/todos", "success", "Todo updated successfully!")
}

func (h *Handler) deleteTodo(c *gin.Context) {
	sess, ok := h.requireSession(c)
	if !ok {
		return
	}
	vars := map[string]any{"id": c.Param("id")}
	if err := h.api.Do(c.Request.Context(), deleteTodoMutation, vars, sess.token, nil); err != nil {
		h.todoFailure(c, err)
		return
	}
	redirectWith(c, "/todos", "success", "Todo deleted successfully!")
}

func (h *Handler) todoFailure(c *gin.Context, err error) {
	if h.handleUnauthorized(c, err) {
		return
	}
	redirectWith(c, "/todos", "error", userMessage(c, err, "Something went wrong. Please try again."))
}

// handleUnauthorized destroys the session and sends the browser to the
// login page when the API rejected the stored token.
func (h *Handler) handleUnauthorized(c *gin.Context, err error) bool {
	var gqlErr *client.GraphQLError
	if !errors.As(err, &gqlErr) || !gqlErr.HasCode(unauthorizedCode) {
		return false
	}
	h.destroySession(c)
	redirectWith(c, "/login", "error", "Your session has expired. Please log in again.")
	return true
}

func (h *Handler) requireSession(c *gin.Context) (*session, bool) {
	sess := h.session(c)
	if !sess.authenticated() {
		c.Redirect(http.StatusFound, "/login")
		return nil, false
	}
	return sess, true
}

func (h *Handler) session(c *gin.Context) *session {
	raw, err := c.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	id, ok := verifyID(h.secret, raw)
	if !ok {
		return nil
	}
	return h.sessions.get(id)
}

func (h *Handler) destroySession(c *gin.Context) {
	if raw, err := c.Cookie(sessionCookieName); err == nil {
		if id, ok := verifyID(h.secret, raw); ok {
			h.sessions.delete(id)
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", h.secure, true)
}

func (h *Handler) setSessionCookie(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, signID(h.secret, id), int(h.sessions.ttl.Seconds()), "/", "", h.secure, true)
}

// userMessage surfaces API field errors verbatim and hides transport
// failures behind fallback.
func userMessage(c *gin.Context, err error, fallback string) string {
	var gqlErr *client.GraphQLError
	if errors.As(err, &gqlErr) {
		return gqlErr.Error()
	}
	slog.ErrorContext(c.Request.Context(), "graphql call failed", "component", "web", "err", err)
	return fallback
}

func redirectWith(c *gin.Context, path, key, value string) {
	c.Redirect(http.StatusFound, path+"?"+url.Values{key: {value}}.Encode())
}

// parseDueDate accepts an HTML date input or a full RFC 3339 timestamp and
// returns RFC 3339 for the API.
func parseDueDate(raw string) (string, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Format(time.RFC3339), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return "", err
	}
	return t.Format(time.RFC3339), nil
}

// dateValue renders an RFC 3339 timestamp as YYYY-MM-DD for date inputs.
func dateValue(ts *string) string {
	if ts == nil {
		return ""
	}
	t, err := time.Parse(time.RFC3339, *ts)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
