package flows

import (
	"context"
	"errors"

	"github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/principal"
)

// RotateFailureKind classifies rotation failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureDecode
	RotateFailureWrongType
	RotateFailureMissingJTI
	RotateFailureSubjectMismatch
	RotateFailureStoreCheck
	RotateFailureNotLive
	RotateFailureReplay
	RotateFailureStoreRevoke
	RotateFailureIssue
)

// RotateDeps captures rotation dependencies.
type RotateDeps struct {
	Decode func(string) (jwt.Claims, error)
	Store  TokenStore
	Issue  IssueDeps
}

// RotateResult carries the new pair or failure metadata. Issued holds the
// nested issuance result once the old token has been revoked.
type RotateResult struct {
	Failure RotateFailureKind
	Err     error
	UserID  string
	OldJTI  string
	Issued  IssueResult
}

var (
	errNotRefresh      = errors.New("token is not a refresh token")
	errMissingJTI      = errors.New("refresh token has no jti")
	errSubjectMismatch = errors.New("principal does not own the refresh token")
	errRefreshNotLive  = errors.New("refresh token is not live")
	errRevocationRaced = errors.New("refresh token was revoked concurrently")
)

// RunRotate exchanges oldRefresh for a new pair issued to p.
//
// The store check and the revocation both complete before issuance begins. Of
// several concurrent rotations of the same token only the caller whose Revoke
// removed the record proceeds. If issuance fails after the revocation the old
// token stays revoked.
func RunRotate(ctx context.Context, oldRefresh string, p principal.Principal, deps RotateDeps) RotateResult {
	claims, err := deps.Decode(oldRefresh)
	if err != nil {
		return RotateResult{Failure: RotateFailureDecode, Err: err}
	}
	if claims.Type != jwt.TypeRefresh || claims.Refresh == nil {
		return RotateResult{Failure: RotateFailureWrongType, Err: errNotRefresh, UserID: claims.Subject()}
	}

	userID := claims.Refresh.Subject
	jti := claims.Refresh.JTI()
	if jti == "" {
		return RotateResult{Failure: RotateFailureMissingJTI, Err: errMissingJTI, UserID: userID}
	}
	if p.IsZero() || p.Subject() != userID {
		return RotateResult{Failure: RotateFailureSubjectMismatch, Err: errSubjectMismatch, UserID: userID, OldJTI: jti}
	}

	live, err := deps.Store.IsValid(ctx, jti)
	if err != nil {
		return RotateResult{Failure: RotateFailureStoreCheck, Err: err, UserID: userID, OldJTI: jti}
	}
	if !live {
		return RotateResult{Failure: RotateFailureNotLive, Err: errRefreshNotLive, UserID: userID, OldJTI: jti}
	}

	deleted, err := deps.Store.Revoke(ctx, jti, userID)
	if err != nil {
		return RotateResult{Failure: RotateFailureStoreRevoke, Err: err, UserID: userID, OldJTI: jti}
	}
	if !deleted {
		return RotateResult{Failure: RotateFailureReplay, Err: errRevocationRaced, UserID: userID, OldJTI: jti}
	}

	issued := RunIssue(ctx, p, deps.Issue)
	if issued.Failure != IssueFailureNone {
		return RotateResult{Failure: RotateFailureIssue, Err: issued.Err, UserID: userID, OldJTI: jti, Issued: issued}
	}

	return RotateResult{Failure: RotateFailureNone, UserID: userID, OldJTI: jti, Issued: issued}
}
