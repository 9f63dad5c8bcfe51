package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"github.com/kube-rca/todo/internal/config"
)

// PageRegistrar mounts the server-rendered pages.
type PageRegistrar interface {
	Register(r *gin.Engine)
}

type RouterDeps struct {
	Server config.ServerConfig
	Schema graphql.Schema
	Tokens accessTokenVerifier
	Auth   authService
	Users  profileService
	Store  pinger
	Pages  PageRegistrar
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	if len(deps.Server.AllowedOrigins) > 0 {
		r.Use(CORSMiddleware(deps.Server.AllowedOrigins, true))
	}

	r.GET("/ping", Ping)
	r.GET("/api", Root)
	r.GET("/healthz", NewHealthHandler(deps.Store).Healthz)
	r.GET("/openapi.json", OpenAPIDoc)

	gql := NewGraphQLHandler(deps.Schema)
	optional := OptionalAuth(deps.Tokens)
	r.POST("/graphql", optional, gql.Serve)
	r.GET("/graphql", optional, gql.Serve)

	authHandler := NewAuthHandler(deps.Auth, deps.Users)
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/me", optional, authHandler.Me)
	}

	if deps.Pages != nil {
		deps.Pages.Register(r)
	}
	return r
}
