package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/todo/internal/config"
	"github.com/kube-rca/todo/internal/db"
	"github.com/kube-rca/todo/internal/graph"
	"github.com/kube-rca/todo/internal/model"
	"github.com/kube-rca/todo/internal/service"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

type testServer struct {
	router *gin.Engine
	tokens *service.TokenService
	auth   *service.AuthService
}

func newTestServer(t *testing.T, store pinger) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.AuthConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		AutoVerify:    true,
		ResetTTL:      time.Hour,
	}
	mem := db.NewMemory()
	if store == nil {
		store = mem
	}
	tokens := service.NewTokenService(cfg)
	auth := service.NewAuthService(mem, mem, tokens, nil, cfg, "http://localhost:5000")
	users := service.NewUserService(mem)
	schema, err := graph.NewSchema(&graph.Resolver{Auth: auth, Users: users, Todos: service.NewTodoService(mem)})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	r := NewRouter(RouterDeps{
		Server: config.ServerConfig{AllowedOrigins: []string{"http://app.test"}},
		Schema: schema,
		Tokens: tokens,
		Auth:   auth,
		Users:  users,
		Store:  store,
	})
	return testServer{router: r, tokens: tokens, auth: auth}
}

func (s testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func graphqlRequest(t *testing.T, query, bearer string) *http.Request {
	t.Helper()
	body, _ := json.Marshal(model.GraphQLRequest{Query: query})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func decodeGraphQL(t *testing.T, w *httptest.ResponseRecorder) model.GraphQLResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp model.GraphQLResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func (s testServer) login(t *testing.T) *model.LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := s.auth.Register(ctx, "a@test.com", "password1", "A"); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := s.auth.Login(ctx, "a@test.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

func TestGraphQL_AnonymousProtectedField(t *testing.T) {
	s := newTestServer(t, nil)

	resp := decodeGraphQL(t, s.do(t, graphqlRequest(t, `{ me { id } todos { id } }`, "")))
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error, got %+v", resp.Errors)
	}
	if code := resp.Errors[0].Extensions["code"]; code != graph.CodeUnauthorized {
		t.Fatalf("unexpected code %v", code)
	}
}

func TestGraphQL_InvalidBearerIsAnonymous(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, graphqlRequest(t, `{ me { id } }`, "garbage"))
	resp := decodeGraphQL(t, w)
	if len(resp.Errors) != 0 {
		t.Fatalf("unexpected errors %+v", resp.Errors)
	}
	data := resp.Data.(map[string]any)
	if data["me"] != nil {
		t.Fatalf("expected me=null, got %v", data["me"])
	}
}

func TestGraphQL_BearerResolvesUser(t *testing.T) {
	s := newTestServer(t, nil)
	login := s.login(t)

	resp := decodeGraphQL(t, s.do(t, graphqlRequest(t, `{ me { email } todos { id } }`, login.AccessToken)))
	if len(resp.Errors) != 0 {
		t.Fatalf("unexpected errors %+v", resp.Errors)
	}
	data := resp.Data.(map[string]any)
	if me := data["me"].(map[string]any); me["email"] != "a@test.com" {
		t.Fatalf("unexpected me %v", me)
	}
}

func TestGraphQL_GetAndValidation(t *testing.T) {
	s := newTestServer(t, nil)

	q := url.Values{"query": {`{ me { id } }`}}
	w := s.do(t, httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil))
	decodeGraphQL(t, w)

	w = s.do(t, graphqlRequest(t, "   ", ""))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	if w := s.do(t, req); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", w.Code)
	}
}

func TestRESTAuthFlow(t *testing.T) {
	s := newTestServer(t, nil)

	post := func(path string, body any, bearer string) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		return s.do(t, req)
	}

	w := post("/api/v1/auth/register", model.AuthRequest{Email: "a@test.com", Password: "password1", Name: "A"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	if w := post("/api/v1/auth/register", model.AuthRequest{Email: "a@test.com", Password: "password1", Name: "A"}, ""); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", w.Code)
	}
	if w := post("/api/v1/auth/login", model.AuthRequest{Email: "a@test.com", Password: "wrong-pass"}, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}

	w = post("/api/v1/auth/login", model.AuthRequest{Email: "a@test.com", Password: "password1"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var login model.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	w = post("/api/v1/auth/refresh", model.RefreshRequest{RefreshToken: login.RefreshToken}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", w.Code, w.Body.String())
	}
	if w := post("/api/v1/auth/refresh", model.RefreshRequest{RefreshToken: "nope"}, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad refresh: expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	if w := s.do(t, req); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "a@test.com") {
		t.Fatalf("me: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous me: expected 401, got %d", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	if w := s.do(t, httptest.NewRequest(http.MethodGet, "/ping", nil)); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Fatalf("ping: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil)); w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}

	down := newTestServer(t, stubPinger{err: errors.New("db down")})
	if w := down.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil)); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestOpenAPIDoc(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("openapi is not valid json: %v", err)
	}
	paths := doc["paths"].(map[string]any)
	if _, ok := paths["/graphql"]; !ok {
		t.Fatalf("missing /graphql path")
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "http://app.test")
	w := s.do(t, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://app.test" {
		t.Fatalf("unexpected allow-origin %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = s.do(t, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}
