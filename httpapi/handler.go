package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hotelcast/tokenauth"
	"github.com/hotelcast/tokenauth/middleware"
	"github.com/hotelcast/tokenauth/principal"
	"github.com/hotelcast/tokenauth/service"
	"go.uber.org/zap"
)

// UseCases is implemented by [service.Service].
type UseCases interface {
	Login(ctx context.Context, email, password string) (tokenauth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (tokenauth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64, refreshToken string) error
}

var _ UseCases = (*service.Service)(nil)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the /auth routes.
type Handler struct {
	auth    UseCases
	health  Pinger
	cookies CookieConfig
	logger  *zap.Logger
}

func NewHandler(auth UseCases, health Pinger, cookies CookieConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		auth:    auth,
		health:  health,
		cookies: cookies,
		logger:  logger,
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionResponse reports cookie lifetimes after login or refresh.
type SessionResponse struct {
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, middleware.TypeValidation, middleware.CodeBadRequest, "email and password are required")
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.cookies.set(c, pair)
	c.JSON(http.StatusOK, sessionResponse(pair))
}

func (h *Handler) Refresh(c *gin.Context) {
	token, ok := refreshCookie(c)
	if !ok {
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.cookies.set(c, pair)
	c.JSON(http.StatusOK, sessionResponse(pair))
}

func (h *Handler) Logout(c *gin.Context) {
	token, ok := refreshCookie(c)
	if !ok {
		return
	}

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		h.respondError(c, err)
		return
	}

	h.cookies.clear(c)
	c.Status(http.StatusNoContent)
}

// LogoutAll needs the gateway's X-User-Id header and the caller's own refresh
// token.
func (h *Handler) LogoutAll(c *gin.Context) {
	userID, err := principal.UserIDFromHeaders(c.Request.Header)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, middleware.TypeAuthorization, middleware.CodeMissingIdentity, "missing or malformed identity")
		return
	}
	token, ok := refreshCookie(c)
	if !ok {
		return
	}

	if err := h.auth.LogoutAll(c.Request.Context(), userID, token); err != nil {
		h.respondError(c, err)
		return
	}

	h.cookies.clear(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "up"})
}

func refreshCookie(c *gin.Context) (string, bool) {
	token, err := c.Cookie(RefreshCookie)
	if err != nil || token == "" {
		abortWithError(c, http.StatusUnauthorized, middleware.TypeAuthorization, middleware.CodeMissingToken, "missing refresh token")
		return "", false
	}
	return token, true
}

func sessionResponse(pair tokenauth.TokenPair) SessionResponse {
	return SessionResponse{
		AccessExpiresAt:  pair.AccessExpiresAt.UTC(),
		RefreshExpiresAt: pair.RefreshExpiresAt.UTC(),
	}
}
