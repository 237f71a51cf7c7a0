// Package jwt encodes and decodes the signed access and refresh tokens of the
// token lifecycle.
//
// Decoding is a tagged variant: the token_type claim is read first and the
// payload is then parsed into exactly one of [AccessClaims] or [RefreshClaims].
// Any other discriminator fails with [ErrUnsupportedTokenType].
//
// The [Manager] performs no I/O and holds no mutable state after construction,
// so it is safe for any number of concurrent callers.
package jwt
