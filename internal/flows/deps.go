package flows

import (
	"context"
	"time"

	"github.com/hotelcast/tokenauth/store"
)

// Deps groups flow dependency sets. The root Authority builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	Issue  IssueDeps
	Rotate RotateDeps
	Revoke RevokeDeps
}

// TokenStore is the subset of the refresh-token registry the flows need.
type TokenStore interface {
	Save(ctx context.Context, jti, userID string, ttl time.Duration) error
	IsValid(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti, userID string) (bool, error)
	RevokeAll(ctx context.Context, userID string) (store.RevokeAllResult, error)
}
