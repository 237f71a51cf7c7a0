package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hotelcast/tokenauth"
	"github.com/hotelcast/tokenauth/directory"
	"github.com/hotelcast/tokenauth/middleware"
	"go.uber.org/zap"
)

func abortWithError(c *gin.Context, status int, errType, code, message string) {
	c.AbortWithStatusJSON(status, middleware.NewErrorBody(errType, code, message, GetTraceID(c)))
}

// respondError maps use-case errors onto the envelope. Every authorization
// failure becomes 401; backend failures become 503.
func (h *Handler) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, directory.ErrInvalidCredentials):
		abortWithError(c, http.StatusUnauthorized, middleware.TypeAuthorization, middleware.CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, tokenauth.ErrRevoked):
		abortWithError(c, http.StatusUnauthorized, middleware.TypeAuthorization, middleware.CodeTokenRevoked, "refresh token is no longer valid")
	case errors.Is(err, tokenauth.ErrExpired):
		abortWithError(c, http.StatusUnauthorized, middleware.TypeAuthorization, middleware.CodeTokenExpired, "token expired")
	case tokenauth.IsAuthFailure(err):
		abortWithError(c, http.StatusUnauthorized, middleware.TypeAuthorization, middleware.CodeInvalidToken, "invalid token")
	case tokenauth.IsStoreFailure(err), errors.Is(err, directory.ErrUnavailable):
		h.logger.Warn("backend unavailable", zap.String("trace_id", GetTraceID(c)), zap.Error(err))
		abortWithError(c, http.StatusServiceUnavailable, middleware.TypeUnavailable, middleware.CodeUnavailable, "service temporarily unavailable")
	default:
		h.logger.Error("unhandled error", zap.String("trace_id", GetTraceID(c)), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, middleware.TypeInternal, middleware.CodeInternal, "unexpected internal error")
	}
}
