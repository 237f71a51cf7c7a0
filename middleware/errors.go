package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON error envelope shared by the gateway and the auth
// service.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}

// Error types used in ErrorDetail.Type.
const (
	TypeAuthorization = "AuthorizationError"
	TypeForbidden     = "ForbiddenError"
	TypeUnavailable   = "ServiceUnavailableError"
	TypeValidation    = "ValidationError"
	TypeInternal      = "ServiceError"
)

// Error codes used in ErrorDetail.Code.
const (
	CodeMissingToken       = "MISSING_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeMissingIdentity    = "MISSING_IDENTITY"
	CodeHotelForbidden     = "HOTEL_FORBIDDEN"
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnavailable        = "BACKEND_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// NewErrorBody builds the envelope.
func NewErrorBody(errType, code, message, traceID string) ErrorBody {
	return ErrorBody{Error: ErrorDetail{
		Type:    errType,
		Message: message,
		Code:    code,
		TraceID: traceID,
	}}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, errType, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorBody(errType, code, message, TraceIDFromRequest(r)))
}
