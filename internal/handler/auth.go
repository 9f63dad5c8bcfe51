package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/todo/internal/model"
	"github.com/kube-rca/todo/internal/service"
)

type authService interface {
	Register(ctx context.Context, email, password, name string) (string, error)
	Login(ctx context.Context, email, password string) (*model.LoginResult, error)
	RefreshAccessToken(ctx context.Context, token string) (string, error)
}

type profileService interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandler exposes the auth mutations as plain JSON endpoints for
// clients that do not speak GraphQL.
type AuthHandler struct {
	svc   authService
	users profileService
}

func NewAuthHandler(svc authService, users profileService) *AuthHandler {
	return &AuthHandler{svc: svc, users: users}
}

// Register godoc
// @Summary Register a new user
// @Description Creates an account. Does not log in.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.AuthRequest true "Email, password and name"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	msg, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: msg})
}

// Login godoc
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.AuthRequest true "Email and password"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AuthResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         &res.User,
	})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchanges a stored refresh token for a new access token. The refresh token is not rotated.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RefreshRequest true "Refresh token"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req model.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	accessToken, err := h.svc.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AuthResponse{AccessToken: accessToken})
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.PublicUser
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
		return
	}
	u, err := h.users.GetUser(c.Request.Context(), user.ID)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: service.UserMessage(err)})
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrNotVerified):
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, model.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "server error"})
	}
}
