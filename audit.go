package tokenauth

import (
	"io"

	"github.com/hotelcast/tokenauth/internal/audit"
	"go.uber.org/zap"
)

// Audit event types emitted by the Authority.
const (
	EventTokenIssued         = "token_issued"
	EventTokenIssueFailed    = "token_issue_failed"
	EventTokenRotated        = "token_rotated"
	EventTokenRotateRejected = "token_rotate_rejected"
	EventTokenRevoked        = "token_revoked"
	EventTokensRevokedAll    = "tokens_revoked_all"
)

type (
	AuditEvent     = audit.Event
	AuditSink      = audit.Sink
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapSink        = audit.ZapSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink mirrors audit events into logger, at Info for successes and Warn
// for failures.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
