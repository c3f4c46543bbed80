package http

import (
	"net/http"
	"strings"
	"time"

	"livesignal/internal/core/domain"
	"livesignal/internal/core/ports"
	"livesignal/internal/core/services"
	"livesignal/internal/infrastructure/middleware"
	"livesignal/pkg/errors"
	"livesignal/pkg/validation"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues signaling tokens. Clients present the token as the
// `token` query parameter when opening the signaling socket.
type AuthHandler struct {
	authService services.AuthService
	directory   ports.IdentityDirectory
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, directory ports.IdentityDirectory, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		directory:   directory,
		tokenTTL:    tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/token", h.IssueToken)
		api.POST("/refresh", middleware.AuthMiddleware(h.authService), h.Refresh)
	}
}

type TokenRequest struct {
	Username string `json:"username" binding:"required,max=50"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := validation.ValidateUsername(req.Username); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	exists, err := h.directory.Exists(c.Request.Context(), req.Username)
	if err != nil {
		c.Error(errors.NewServiceUnavailableError("identity lookup unavailable"))
		return
	}
	if !exists {
		c.Error(errors.NewUnauthorizedError("unknown user"))
		return
	}

	token, err := h.authService.GenerateToken(domain.Identity(req.Username))
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username":     req.Username,
		"access_token": token,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}

// Refresh issues a fresh token for an already-authenticated caller so a
// session can renew before its token expires.
func (h *AuthHandler) Refresh(c *gin.Context) {
	v, ok := c.Get("identity")
	if !ok {
		c.Error(errors.NewUnauthorizedError("missing identity"))
		return
	}
	identity := v.(domain.Identity)

	token, err := h.authService.GenerateToken(identity)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username":     string(identity),
		"access_token": token,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}
