package flows

import (
	"context"
	"errors"
	"time"

	"github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/principal"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailurePrincipal
	IssueFailureEncodeAccess
	IssueFailureEncodeRefresh
	IssueFailureStore
)

// IssueDeps captures issuance dependencies.
type IssueDeps struct {
	EncodeAccess  func(principal.Principal) (string, jwt.Claims, error)
	EncodeRefresh func(principal.Principal) (string, jwt.Claims, error)
	Now           func() time.Time
	Store         TokenStore
}

// IssueResult carries either the issued pair or failure metadata.
type IssueResult struct {
	Failure          IssueFailureKind
	Err              error
	UserID           string
	JTI              string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

var errZeroPrincipal = errors.New("principal is not initialized")

// RunIssue encodes an access/refresh pair for p and registers the refresh jti.
// When registration fails no tokens are returned.
func RunIssue(ctx context.Context, p principal.Principal, deps IssueDeps) IssueResult {
	if p.IsZero() {
		return IssueResult{Failure: IssueFailurePrincipal, Err: errZeroPrincipal}
	}
	userID := p.Subject()

	access, accessClaims, err := deps.EncodeAccess(p)
	if err != nil {
		return IssueResult{Failure: IssueFailureEncodeAccess, Err: err, UserID: userID}
	}

	refresh, refreshClaims, err := deps.EncodeRefresh(p)
	if err != nil {
		return IssueResult{Failure: IssueFailureEncodeRefresh, Err: err, UserID: userID}
	}
	jti := refreshClaims.Refresh.JTI()
	refreshExp := refreshClaims.ExpiresAt()

	ttl := refreshExp.Sub(deps.Now())
	if ttl <= 0 {
		return IssueResult{
			Failure: IssueFailureEncodeRefresh,
			Err:     errors.New("refresh token already expired at issuance"),
			UserID:  userID,
			JTI:     jti,
		}
	}

	if err := deps.Store.Save(ctx, jti, userID, ttl); err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err, UserID: userID, JTI: jti}
	}

	return IssueResult{
		Failure:          IssueFailureNone,
		UserID:           userID,
		JTI:              jti,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt(),
		RefreshExpiresAt: refreshExp,
	}
}
