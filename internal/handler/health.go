package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/todo/internal/model"
)

// Ping godoc
// @Summary 헬스체크 엔드포인트
// @Tags health
// @Produce json
// @Success 200 {object} model.PingResponse
// @Router /ping [get]
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// Root godoc
// @Summary 루트 엔드포인트
// @Tags health
// @Produce json
// @Success 200 {object} model.RootResponse
// @Router /api [get]
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "todo API server is running",
	})
}

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store pinger
}

func NewHealthHandler(store pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Healthz godoc
// @Summary Readiness check
// @Description Pings the backing store.
// @Tags health
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 503 {object} model.StatusResponse
// @Router /healthz [get]
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "health check failed", "component", "health", "err", err)
		c.JSON(http.StatusServiceUnavailable, model.StatusResponse{Status: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}
