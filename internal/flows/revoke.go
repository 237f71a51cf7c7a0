package flows

import (
	"context"

	"github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/store"
)

// RevokeFailureKind classifies revocation failures for root-level mapping.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureDecode
	RevokeFailureWrongType
	RevokeFailureMissingJTI
	RevokeFailureStore
)

// RevokeDeps captures revocation dependencies.
type RevokeDeps struct {
	Decode func(string) (jwt.Claims, error)
	Store  TokenStore
}

// RevokeResult is the outcome of RunRevoke.
type RevokeResult struct {
	Failure RevokeFailureKind
	Err     error
	UserID  string
	JTI     string
	// Deleted is false when the token was already gone.
	Deleted bool
}

// RunRevoke removes the refresh token's record. Revoking an already revoked or
// expired-from-store token succeeds with Deleted=false.
func RunRevoke(ctx context.Context, refreshToken string, deps RevokeDeps) RevokeResult {
	claims, err := deps.Decode(refreshToken)
	if err != nil {
		return RevokeResult{Failure: RevokeFailureDecode, Err: err}
	}
	if claims.Type != jwt.TypeRefresh || claims.Refresh == nil {
		return RevokeResult{Failure: RevokeFailureWrongType, Err: errNotRefresh, UserID: claims.Subject()}
	}
	userID := claims.Refresh.Subject
	jti := claims.Refresh.JTI()
	if jti == "" {
		return RevokeResult{Failure: RevokeFailureMissingJTI, Err: errMissingJTI, UserID: userID}
	}

	deleted, err := deps.Store.Revoke(ctx, jti, userID)
	if err != nil {
		return RevokeResult{Failure: RevokeFailureStore, Err: err, UserID: userID, JTI: jti}
	}
	return RevokeResult{UserID: userID, JTI: jti, Deleted: deleted}
}

// RunRevokeAll deletes every indexed record of userID. Failed record deletions
// are counted in the result and do not stop the sweep.
func RunRevokeAll(ctx context.Context, userID string, deps RevokeDeps) (store.RevokeAllResult, error) {
	return deps.Store.RevokeAll(ctx, userID)
}
