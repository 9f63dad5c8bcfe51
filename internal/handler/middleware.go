package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/todo/internal/authctx"
	"github.com/kube-rca/todo/internal/model"
)

type accessTokenVerifier interface {
	VerifyAccessToken(token string) (model.TokenClaims, error)
}

// OptionalAuth resolves a bearer token into the request context. It never
// rejects: a missing or invalid token leaves the request anonymous and the
// GraphQL field gate decides.
func OptionalAuth(verifier accessTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			c.Next()
			return
		}

		claims, err := verifier.VerifyAccessToken(token)
		if err != nil {
			slog.DebugContext(c.Request.Context(), "ignoring invalid bearer token", "component", "auth", "err", err)
			c.Next()
			return
		}

		ctx := authctx.WithUser(c.Request.Context(), model.AuthUser{ID: claims.UserID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if user, ok := authctx.UserFrom(c.Request.Context()); ok {
		return &user
	}
	return nil
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger logs one line per request through slog.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "http request",
			"component", "http",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
