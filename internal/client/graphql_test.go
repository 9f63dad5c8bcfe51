package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kube-rca/todo/internal/model"
)

func TestGraphQLClient_DecodesData(t *testing.T) {
	var gotAuth string
	var gotReq model.GraphQLRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"data":{"me":{"email":"a@test.com"}}}`))
	}))
	defer srv.Close()

	var out struct {
		Me struct {
			Email string `json:"email"`
		} `json:"me"`
	}
	c := NewGraphQLClient(srv.URL)
	if err := c.Do(context.Background(), "{ me { email } }", map[string]any{"x": 1.0}, "tok", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Me.Email != "a@test.com" {
		t.Fatalf("unexpected data %+v", out)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotReq.Query != "{ me { email } }" || gotReq.Variables["x"] != 1.0 {
		t.Fatalf("unexpected request %+v", gotReq)
	}
}

func TestGraphQLClient_ReturnsCodedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("no token expected")
		}
		_, _ = w.Write([]byte(`{"data":{"todos":null},"errors":[{"message":"Unauthorized","path":["todos"],"extensions":{"code":"UNAUTHORIZED"}}]}`))
	}))
	defer srv.Close()

	err := NewGraphQLClient(srv.URL).Do(context.Background(), "{ todos { id } }", nil, "", nil)
	var gqlErr *GraphQLError
	if !errors.As(err, &gqlErr) {
		t.Fatalf("expected GraphQLError, got %v", err)
	}
	if !gqlErr.HasCode("UNAUTHORIZED") || gqlErr.HasCode("NOT_FOUND") {
		t.Fatalf("unexpected codes %+v", gqlErr.Errors)
	}
	if gqlErr.Error() != "Unauthorized" {
		t.Fatalf("unexpected message %q", gqlErr.Error())
	}
}

func TestGraphQLClient_HTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewGraphQLClient(srv.URL).Do(context.Background(), "{ me { id } }", nil, "", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		t.Fatalf("transport failures must not look like field errors")
	}
}
