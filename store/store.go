package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable is returned when Redis cannot be reached or an operation times out.
	ErrUnavailable = errors.New("token store unavailable")
	// ErrInvalidTTL is returned by Save for a non-positive TTL.
	ErrInvalidTTL = errors.New("token ttl must be positive")
)

// DefaultOperationTimeout bounds each Redis round trip when Options leaves it unset.
const DefaultOperationTimeout = 2 * time.Second

const revokeScript = `
local deleted = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return deleted
`

var revokeLua = redis.NewScript(revokeScript)

// RevokeAllResult summarizes a RevokeAll sweep.
type RevokeAllResult struct {
	// Scanned is the number of jti values found in the user index.
	Scanned int
	// Deleted is the number of records that existed and were removed.
	Deleted int
	// Failed is the number of records whose deletion returned an error.
	Failed int
}

// Options configures a [Store].
type Options struct {
	// KeyPrefix is prepended to every key. Empty keeps the bare schema.
	KeyPrefix        string
	OperationTimeout time.Duration
	Logger           *zap.Logger
}

// Store is the Redis registry of live refresh-token identifiers.
// It is safe for concurrent use; all coordination happens inside Redis.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a [Store] backed by client.
func New(client redis.UniversalClient, opts Options) *Store {
	timeout := opts.OperationTimeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		redis:   client,
		prefix:  opts.KeyPrefix,
		timeout: timeout,
		logger:  logger.Named("store"),
	}
}

func (s *Store) recordKey(jti string) string {
	return s.prefix + "refresh_token:" + jti
}

func (s *Store) indexKey(userID string) string {
	return s.prefix + "user_refresh_tokens:" + userID
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Save records jti as live for userID with the given TTL and adds it to the
// user's index in one MULTI/EXEC transaction.
//
//	Performance: 1 round trip (SET PX + SADD).
func (s *Store) Save(ctx context.Context, jti, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(jti), userID, ttl)
		pipe.SAdd(ctx, s.indexKey(userID), jti)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// IsValid reports whether a record for jti currently exists. Expiry is
// enforced by Redis, so a lapsed record is simply absent.
func (s *Store) IsValid(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.recordKey(jti)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// Revoke deletes the record for jti and removes it from the user's index in a
// single atomic script. It reports whether this call removed a live record, so
// of several concurrent callers exactly one observes true. Revoking an unknown
// jti is not an error.
func (s *Store) Revoke(ctx context.Context, jti, userID string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	deleted, err := revokeLua.Run(ctx, s.redis, []string{s.recordKey(jti), s.indexKey(userID)}, jti).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return deleted == 1, nil
}

// RevokeAll deletes every record listed in the user's index, then the index
// itself.
//
// The sweep is best effort: each record deletion is attempted and logged on its
// own, and a failure does not stop the remaining deletions. The call succeeds
// once the index is cleared, even when some record deletions failed; those
// records stay valid until their TTL lapses and are counted in Failed.
// Deletions completed before a timeout are kept.
func (s *Store) RevokeAll(ctx context.Context, userID string) (RevokeAllResult, error) {
	var result RevokeAllResult
	indexKey := s.indexKey(userID)

	listCtx, cancel := s.bound(ctx)
	jtis, err := s.redis.SMembers(listCtx, indexKey).Result()
	cancel()
	if err != nil && !errors.Is(err, redis.Nil) {
		return result, unavailable(err)
	}
	result.Scanned = len(jtis)

	for _, jti := range jtis {
		delCtx, cancel := s.bound(ctx)
		n, err := s.redis.Del(delCtx, s.recordKey(jti)).Result()
		cancel()
		if err != nil {
			result.Failed++
			s.logger.Warn("refresh token deletion failed",
				zap.String("user_id", userID),
				zap.String("jti", jti),
				zap.Error(err),
			)
			continue
		}
		result.Deleted += int(n)
		s.logger.Debug("refresh token deleted",
			zap.String("user_id", userID),
			zap.String("jti", jti),
			zap.Bool("existed", n == 1),
		)
	}

	idxCtx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.redis.Del(idxCtx, indexKey).Err(); err != nil {
		s.logger.Warn("refresh token index deletion failed", zap.String("user_id", userID), zap.Error(err))
		return result, unavailable(err)
	}

	s.logger.Info("refresh tokens revoked",
		zap.String("user_id", userID),
		zap.Int("scanned", result.Scanned),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// ActiveTokenIDs returns the jti values indexed for userID. The index may
// contain identifiers whose records already expired.
func (s *Store) ActiveTokenIDs(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ids, err := s.redis.SMembers(ctx, s.indexKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, unavailable(err)
	}
	return ids, nil
}

// LoadScripts loads the revoke script into the server cache so the first
// Revoke costs one round trip instead of an EVALSHA miss plus EVAL.
func (s *Store) LoadScripts(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := revokeLua.Load(ctx, s.redis).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.redis.Close()
}
