package tokenauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hotelcast/tokenauth/internal/audit"
	"github.com/hotelcast/tokenauth/internal/flows"
	"github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/principal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Authority issues, rotates and revokes token pairs. It is safe for concurrent
// use after [Builder.Build]; the only shared mutable state lives in the
// TokenStore.
//
// Refresh tokens move ISSUED -> ROTATED | REVOKED | EXPIRED. Access tokens are
// never tracked server-side and stay valid until exp.
type Authority struct {
	config  Config
	codec   *jwt.Manager
	store   TokenStore
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *Metrics
	audit   *audit.Dispatcher
	now     func() time.Time
	flow    flows.Deps
}

func (a *Authority) initFlowDeps() {
	issue := flows.IssueDeps{
		EncodeAccess:  a.codec.EncodeAccess,
		EncodeRefresh: a.codec.EncodeRefresh,
		Now:           a.now,
		Store:         a.store,
	}
	a.flow = flows.Deps{
		Issue: issue,
		Rotate: flows.RotateDeps{
			Decode: a.codec.Decode,
			Store:  a.store,
			Issue:  issue,
		},
		Revoke: flows.RevokeDeps{
			Decode: a.codec.Decode,
			Store:  a.store,
		},
	}
}

// Close flushes pending audit events. The token store is owned by the caller.
func (a *Authority) Close() {
	if a == nil {
		return
	}
	a.audit.Close()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (a *Authority) AuditDropped() uint64 {
	if a == nil {
		return 0
	}
	return a.audit.Dropped()
}

// MetricsSnapshot returns the current counters.
func (a *Authority) MetricsSnapshot() MetricsSnapshot {
	if a == nil || a.metrics == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return a.metrics.Snapshot()
}

// AccessTTL is the lifetime stamped on access tokens.
func (a *Authority) AccessTTL() time.Duration { return a.codec.AccessTTL() }

// RefreshTTL is the lifetime stamped on refresh tokens.
func (a *Authority) RefreshTTL() time.Duration { return a.codec.RefreshTTL() }

// Ping checks the token store when it supports connectivity checks.
func (a *Authority) Ping(ctx context.Context) error {
	p, ok := a.store.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

// IssueTokenPair signs an access and a refresh token for p and registers the
// refresh jti with a TTL equal to its remaining lifetime. If registration
// fails the call returns ErrStore and no tokens.
func (a *Authority) IssueTokenPair(ctx context.Context, p principal.Principal) (TokenPair, error) {
	ctx, span := a.tracer.Start(ctx, "tokenauth.IssueTokenPair", trace.WithAttributes(attribute.Int64("user.id", p.UserID())))
	defer span.End()

	res := flows.RunIssue(ctx, p, a.flow.Issue)
	if res.Failure != flows.IssueFailureNone {
		err := a.issueError(res)
		a.metricInc(MetricIssueFailure)
		a.emitAudit(ctx, EventTokenIssueFailed, false, res.UserID, res.JTI, err, nil)
		recordSpanError(span, err)
		return TokenPair{}, err
	}

	a.metricInc(MetricIssueSuccess)
	a.emitAudit(ctx, EventTokenIssued, true, res.UserID, res.JTI, nil, nil)
	return pairFrom(res), nil
}

// Rotate exchanges a live refresh token for a new pair issued to p.
//
// Failures:
//   - ErrInvalidToken (joined with ErrExpired or ErrMalformed when applicable)
//     when the token does not decode, is not a refresh token, has no jti, or
//     belongs to another user than p.
//   - ErrRevoked when the token is no longer live, including when a concurrent
//     rotation consumed it first.
//   - ErrStore when the store fails.
//
// Once the old token is revoked a later issuance failure is returned as is and
// the old token stays revoked.
func (a *Authority) Rotate(ctx context.Context, oldRefresh string, p principal.Principal) (TokenPair, error) {
	started := time.Now()
	ctx, span := a.tracer.Start(ctx, "tokenauth.Rotate", trace.WithAttributes(attribute.Int64("user.id", p.UserID())))
	defer span.End()
	defer func() {
		if a.metrics.LatencyEnabled() {
			a.metrics.Observe(MetricRotateLatency, time.Since(started))
		}
	}()

	res := flows.RunRotate(ctx, oldRefresh, p, a.flow.Rotate)
	if res.Failure != flows.RotateFailureNone {
		err := a.rotateError(res)
		a.metricInc(MetricRotateFailure)
		a.emitAudit(ctx, EventTokenRotateRejected, false, res.UserID, res.OldJTI, err, func() map[string]string {
			return map[string]string{"reason": rotateReason(res.Failure)}
		})
		recordSpanError(span, err)
		return TokenPair{}, err
	}

	a.metricInc(MetricRotateSuccess)
	a.emitAudit(ctx, EventTokenRotated, true, res.UserID, res.Issued.JTI, nil, func() map[string]string {
		return map[string]string{"previous_jti": res.OldJTI}
	})
	return pairFrom(res.Issued), nil
}

// Revoke invalidates one refresh token. Revoking a token that is already gone
// succeeds.
func (a *Authority) Revoke(ctx context.Context, refreshToken string) error {
	ctx, span := a.tracer.Start(ctx, "tokenauth.Revoke")
	defer span.End()

	res := flows.RunRevoke(ctx, refreshToken, a.flow.Revoke)
	switch res.Failure {
	case flows.RevokeFailureNone:
	case flows.RevokeFailureDecode:
		a.metricInc(MetricDecodeFailure)
		err := invalidToken(res.Err)
		recordSpanError(span, err)
		return err
	case flows.RevokeFailureStore:
		err := a.storeError(res.Err)
		a.emitAudit(ctx, EventTokenRevoked, false, res.UserID, res.JTI, err, nil)
		recordSpanError(span, err)
		return err
	default:
		err := fmt.Errorf("%w: %v", ErrInvalidToken, res.Err)
		recordSpanError(span, err)
		return err
	}

	if res.Deleted {
		a.metricInc(MetricRevoke)
	}
	a.emitAudit(ctx, EventTokenRevoked, true, res.UserID, res.JTI, nil, func() map[string]string {
		return map[string]string{"existed": strconv.FormatBool(res.Deleted)}
	})
	return nil
}

// RevokeAll invalidates every refresh token issued to userID. The sweep is best
// effort: it succeeds once the user's index is cleared even if individual
// record deletions failed; those records expire on their own TTL.
func (a *Authority) RevokeAll(ctx context.Context, userID int64) error {
	ctx, span := a.tracer.Start(ctx, "tokenauth.RevokeAll", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if userID <= 0 {
		err := fmt.Errorf("%w: user id must be positive", ErrInvalidPrincipal)
		recordSpanError(span, err)
		return err
	}
	uid := strconv.FormatInt(userID, 10)

	result, err := flows.RunRevokeAll(ctx, uid, a.flow.Revoke)
	for i := 0; i < result.Failed; i++ {
		a.metricInc(MetricRevokeAllRecordFailures)
	}
	meta := func() map[string]string {
		return map[string]string{
			"scanned": strconv.Itoa(result.Scanned),
			"deleted": strconv.Itoa(result.Deleted),
			"failed":  strconv.Itoa(result.Failed),
		}
	}
	if err != nil {
		err = a.storeError(err)
		a.emitAudit(ctx, EventTokensRevokedAll, false, uid, "", err, meta)
		recordSpanError(span, err)
		return err
	}
	if result.Failed > 0 {
		a.logger.Warn("revoke all left records behind",
			zap.String("user_id", uid),
			zap.Int("failed", result.Failed),
		)
	}

	span.SetAttributes(attribute.Int("tokens.deleted", result.Deleted))
	a.metricInc(MetricRevokeAll)
	a.emitAudit(ctx, EventTokensRevokedAll, true, uid, "", nil, meta)
	return nil
}

// ReadToken decodes and verifies a token without consulting the store. Every
// failure matches ErrInvalidToken; expired and malformed tokens additionally
// match ErrExpired and ErrMalformed.
func (a *Authority) ReadToken(token string) (jwt.Claims, error) {
	claims, err := a.codec.Decode(token)
	if err != nil {
		a.metricInc(MetricDecodeFailure)
		return jwt.Claims{}, invalidToken(err)
	}
	return claims, nil
}

func pairFrom(res flows.IssueResult) TokenPair {
	return TokenPair{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
}

func (a *Authority) issueError(res flows.IssueResult) error {
	switch res.Failure {
	case flows.IssueFailurePrincipal:
		return fmt.Errorf("%w: %v", ErrInvalidPrincipal, res.Err)
	case flows.IssueFailureStore:
		return a.storeError(res.Err)
	default:
		a.logger.Error("token encoding failed", zap.String("user_id", res.UserID), zap.Error(res.Err))
		return fmt.Errorf("encode token: %w", res.Err)
	}
}

func (a *Authority) rotateError(res flows.RotateResult) error {
	switch res.Failure {
	case flows.RotateFailureDecode:
		a.metricInc(MetricDecodeFailure)
		return invalidToken(res.Err)
	case flows.RotateFailureWrongType,
		flows.RotateFailureMissingJTI,
		flows.RotateFailureSubjectMismatch:
		return fmt.Errorf("%w: %v", ErrInvalidToken, res.Err)
	case flows.RotateFailureNotLive, flows.RotateFailureReplay:
		a.metricInc(MetricRotateReplayRejected)
		a.logger.Debug("refresh token reuse rejected",
			zap.String("user_id", res.UserID),
			zap.String("jti", res.OldJTI),
			zap.Bool("lost_race", res.Failure == flows.RotateFailureReplay),
		)
		return fmt.Errorf("%w: %v", ErrRevoked, res.Err)
	case flows.RotateFailureStoreCheck, flows.RotateFailureStoreRevoke:
		return a.storeError(res.Err)
	case flows.RotateFailureIssue:
		a.logger.Warn("rotation issued no tokens after revoking the old one",
			zap.String("user_id", res.UserID),
			zap.String("jti", res.OldJTI),
		)
		return a.issueError(res.Issued)
	default:
		return ErrInvalidToken
	}
}

func rotateReason(kind flows.RotateFailureKind) string {
	switch kind {
	case flows.RotateFailureDecode:
		return "decode_failed"
	case flows.RotateFailureWrongType:
		return "not_refresh_token"
	case flows.RotateFailureMissingJTI:
		return "missing_jti"
	case flows.RotateFailureSubjectMismatch:
		return "subject_mismatch"
	case flows.RotateFailureNotLive:
		return "not_live"
	case flows.RotateFailureReplay:
		return "concurrent_rotation"
	case flows.RotateFailureStoreCheck, flows.RotateFailureStoreRevoke:
		return "store_unavailable"
	case flows.RotateFailureIssue:
		return "issue_failed"
	default:
		return "unknown"
	}
}

func (a *Authority) storeError(err error) error {
	a.metricInc(MetricStoreFailure)
	a.logger.Warn("token store failure", zap.Error(err))
	return fmt.Errorf("%w: %w", ErrStore, err)
}

// invalidToken makes every codec failure match ErrInvalidToken while keeping
// the specific cause matchable.
func invalidToken(err error) error {
	if errors.Is(err, ErrInvalidToken) {
		return err
	}
	return errors.Join(ErrInvalidToken, err)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (a *Authority) metricInc(id MetricID) {
	if a == nil || a.metrics == nil {
		return
	}
	a.metrics.Inc(id)
}

func (a *Authority) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	jti string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if a == nil || a.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: a.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		JTI:       jti,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	a.audit.Emit(ctx, event)
}

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrInvalidToken     AuditErrorCode = "invalid_token"
	auditErrExpired          AuditErrorCode = "expired"
	auditErrMalformed        AuditErrorCode = "malformed"
	auditErrRevoked          AuditErrorCode = "revoked"
	auditErrInvalidPrincipal AuditErrorCode = "invalid_principal"
	auditErrUnavailable      AuditErrorCode = "backend_unavailable"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrStore):
		return auditErrUnavailable
	case errors.Is(err, ErrRevoked):
		return auditErrRevoked
	case errors.Is(err, ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrMalformed):
		return auditErrMalformed
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnsupportedTokenType):
		return auditErrInvalidToken
	case errors.Is(err, ErrInvalidPrincipal):
		return auditErrInvalidPrincipal
	default:
		return auditErrInternal
	}
}
