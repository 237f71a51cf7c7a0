package internaldefs

import (
	"strconv"
	"strings"

	"github.com/hotelcast/tokenauth"
)

// Def names one exported series.
type Def struct {
	ID   tokenauth.MetricID
	Name string
	Help string
}

// Counters lists every exported counter in render order.
var Counters = []Def{
	{tokenauth.MetricIssueSuccess, "tokenauth_issue_success_total", "Token pairs issued."},
	{tokenauth.MetricIssueFailure, "tokenauth_issue_failure_total", "Issuance attempts that returned no tokens."},
	{tokenauth.MetricRotateSuccess, "tokenauth_rotate_success_total", "Completed refresh rotations."},
	{tokenauth.MetricRotateFailure, "tokenauth_rotate_failure_total", "Rejected or failed refresh rotations."},
	{tokenauth.MetricRotateReplayRejected, "tokenauth_rotate_replay_rejected_total", "Rotations of a refresh token that was no longer live."},
	{tokenauth.MetricRevoke, "tokenauth_revoke_total", "Single refresh-token revocations that removed a record."},
	{tokenauth.MetricRevokeAll, "tokenauth_revoke_all_total", "Completed revoke-all sweeps."},
	{tokenauth.MetricRevokeAllRecordFailures, "tokenauth_revoke_all_record_failures_total", "Record deletions that failed during revoke-all sweeps."},
	{tokenauth.MetricStoreFailure, "tokenauth_store_failure_total", "Token store errors."},
	{tokenauth.MetricDecodeFailure, "tokenauth_decode_failure_total", "Tokens rejected by the codec."},
}

// Histograms lists every exported latency histogram.
var Histograms = []Def{
	{tokenauth.MetricRotateLatency, "tokenauth_rotate_latency_seconds", "Refresh rotation latency."},
}

// AuditDropped is exported next to the counters but read from the dispatcher.
var AuditDropped = Def{Name: "tokenauth_audit_dropped_total", Help: "Audit events dropped under dispatcher backpressure."}

// Bucket is one histogram bucket boundary. Le is the Prometheus label value;
// Suffix is the same bound made safe for instrument names.
type Bucket struct {
	Le     string
	Suffix string
}

// Buckets mirrors tokenauth.LatencyBounds plus the +Inf overflow bucket.
var Buckets = buildBuckets()

func buildBuckets() []Bucket {
	out := make([]Bucket, 0, len(tokenauth.LatencyBounds)+1)
	for _, bound := range tokenauth.LatencyBounds {
		le := strconv.FormatFloat(bound.Seconds(), 'f', -1, 64)
		out = append(out, Bucket{Le: le, Suffix: strings.ReplaceAll(le, ".", "_")})
	}
	return append(out, Bucket{Le: "+Inf", Suffix: "inf"})
}

// Cumulative turns per-bucket counts into running totals sized to Buckets.
// Missing trailing buckets repeat the last total; extra ones are ignored.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(Buckets))
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
