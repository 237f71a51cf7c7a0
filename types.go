package tokenauth

import (
	"context"
	"time"

	"github.com/hotelcast/tokenauth/store"
)

// TokenPair is the result of issuance or rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RevokeAllResult summarizes a RevokeAll sweep.
type RevokeAllResult = store.RevokeAllResult

// TokenStore is the registry of live refresh-token identifiers. [store.Store]
// is the Redis implementation; tests may supply their own.
//
// Revoke must report true only to the caller that actually removed the record,
// so that concurrent rotations of one token have a single winner.
type TokenStore interface {
	Save(ctx context.Context, jti, userID string, ttl time.Duration) error
	IsValid(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti, userID string) (bool, error)
	RevokeAll(ctx context.Context, userID string) (RevokeAllResult, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ TokenStore = (*store.Store)(nil)
