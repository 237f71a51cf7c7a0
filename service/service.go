// Package service implements the auth use cases on top of a user directory and
// the token authority: login, refresh, logout and the revoke-everything flows.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hotelcast/tokenauth"
	"github.com/hotelcast/tokenauth/directory"
	"github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/principal"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials is returned by Login for any email/password mismatch.
	ErrInvalidCredentials = directory.ErrInvalidCredentials
	// ErrDirectoryUnavailable is returned when the user directory fails.
	ErrDirectoryUnavailable = directory.ErrUnavailable
)

// Directory resolves users into principals.
type Directory interface {
	Authenticate(ctx context.Context, email, password string) (principal.Principal, error)
	Lookup(ctx context.Context, userID int64) (principal.Principal, error)
}

// Tokens is the token authority surface used by the use cases.
// [tokenauth.Authority] implements it.
type Tokens interface {
	IssueTokenPair(ctx context.Context, p principal.Principal) (tokenauth.TokenPair, error)
	Rotate(ctx context.Context, oldRefresh string, p principal.Principal) (tokenauth.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAll(ctx context.Context, userID int64) error
	ReadToken(token string) (jwt.Claims, error)
}

var _ Tokens = (*tokenauth.Authority)(nil)

// Service wires a Directory to the token authority.
type Service struct {
	directory Directory
	tokens    Tokens
	logger    *zap.Logger
}

func New(dir Directory, tokens Tokens, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		directory: dir,
		tokens:    tokens,
		logger:    logger.Named("service"),
	}
}

// Login checks the credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (tokenauth.TokenPair, error) {
	p, err := s.directory.Authenticate(ctx, email, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			s.logger.Error("login lookup failed", zap.Error(err))
		}
		return tokenauth.TokenPair{}, err
	}

	pair, err := s.tokens.IssueTokenPair(ctx, p)
	if err != nil {
		return tokenauth.TokenPair{}, err
	}
	s.logger.Info("user logged in", zap.Int64("user_id", p.UserID()))
	return pair, nil
}

// Refresh rotates refreshToken. The principal is rebuilt from the directory so
// that role and hotel changes take effect on the next access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (tokenauth.TokenPair, error) {
	userID, err := s.refreshSubject(refreshToken)
	if err != nil {
		return tokenauth.TokenPair{}, err
	}

	p, err := s.directory.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return tokenauth.TokenPair{}, fmt.Errorf("%w: user %d no longer active", tokenauth.ErrInvalidToken, userID)
		}
		return tokenauth.TokenPair{}, err
	}

	return s.tokens.Rotate(ctx, refreshToken, p)
}

// Logout revokes one refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// LogoutAll revokes every refresh token of userID. The caller must present a
// refresh token issued to that same user.
func (s *Service) LogoutAll(ctx context.Context, userID int64, refreshToken string) error {
	sub, err := s.refreshSubject(refreshToken)
	if err != nil {
		return err
	}
	if sub != userID {
		return fmt.Errorf("%w: refresh token belongs to another user", tokenauth.ErrInvalidToken)
	}

	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user logged out everywhere", zap.Int64("user_id", userID))
	return nil
}

// PasswordChanged ends every session of userID after a credential change.
func (s *Service) PasswordChanged(ctx context.Context, userID int64) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("sessions revoked after password change", zap.Int64("user_id", userID))
	return nil
}

func (s *Service) refreshSubject(token string) (int64, error) {
	claims, err := s.tokens.ReadToken(token)
	if err != nil {
		return 0, err
	}
	if claims.Refresh == nil {
		return 0, fmt.Errorf("%w: not a refresh token", tokenauth.ErrInvalidToken)
	}
	userID, err := principal.ParseSubject(claims.Refresh.Subject)
	if err != nil {
		return 0, errors.Join(tokenauth.ErrInvalidToken, err)
	}
	return userID, nil
}
