package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/todo/internal/client"
	"github.com/kube-rca/todo/internal/config"
	"github.com/kube-rca/todo/internal/db"
	"github.com/kube-rca/todo/internal/graph"
	"github.com/kube-rca/todo/internal/handler"
	"github.com/kube-rca/todo/internal/logging"
	"github.com/kube-rca/todo/internal/service"
	"github.com/kube-rca/todo/internal/web"
)

// @title			Todo API
// @version		1.0
// @description	GraphQL todo service with JWT auth and server-rendered pages.
// @BasePath		/
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.Log))
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("store init failed", "component", "db", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// 서비스 조립
	tokens := service.NewTokenService(cfg.Auth)
	authService := service.NewAuthService(store, store, tokens, client.NewMailer(cfg.Mail), cfg.Auth, cfg.Server.PublicURL)
	userService := service.NewUserService(store)
	todoService := service.NewTodoService(store)

	schema, err := graph.NewSchema(&graph.Resolver{
		Auth:  authService,
		Users: userService,
		Todos: todoService,
	})
	if err != nil {
		slog.Error("graphql schema build failed", "component", "graph", "error", err)
		os.Exit(1)
	}

	pages, err := web.NewHandler(client.NewGraphQLClient(cfg.Server.GraphQLEndpoint), cfg.Session)
	if err != nil {
		slog.Error("web handler init failed", "component", "web", "error", err)
		os.Exit(1)
	}

	router := handler.NewRouter(handler.RouterDeps{
		Server: cfg.Server,
		Schema: schema,
		Tokens: tokens,
		Auth:   authService,
		Users:  userService,
		Store:  store,
		Pages:  pages,
	})

	go runJanitor(ctx, cfg.Auth.RefreshPurgeInterval, authService, pages)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "graphql", cfg.Server.GraphQLEndpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.PostgresConfig) (db.Store, func(), error) {
	if cfg.Driver == "memory" {
		slog.Warn("using in-memory store; data is lost on restart", "component", "db")
		return db.NewMemory(), func() {}, nil
	}

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	pg := &db.Postgres{Pool: pool}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

// runJanitor periodically purges expired refresh tokens and page sessions.
func runJanitor(ctx context.Context, interval time.Duration, auth *service.AuthService, pages *web.Handler) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PurgeExpiredRefreshTokens(ctx)
			if err != nil {
				slog.WarnContext(ctx, "refresh token purge failed", "component", "janitor", "error", err)
			} else if n > 0 {
				slog.InfoContext(ctx, "purged refresh tokens", "component", "janitor", "count", n)
			}
			if swept := pages.SweepSessions(); swept > 0 {
				slog.DebugContext(ctx, "swept sessions", "component", "janitor", "count", swept)
			}
		}
	}
}
