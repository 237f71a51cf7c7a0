package tokenauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram in [Metrics].
type MetricID uint16

const (
	// MetricIssueSuccess counts token pairs issued.
	MetricIssueSuccess MetricID = iota
	// MetricIssueFailure counts issuance attempts that returned no tokens.
	MetricIssueFailure
	// MetricRotateSuccess counts completed rotations.
	MetricRotateSuccess
	// MetricRotateFailure counts rejected or failed rotations.
	MetricRotateFailure
	// MetricRotateReplayRejected counts rotations of a token that was no longer live.
	MetricRotateReplayRejected
	// MetricRevoke counts single-token revocations that removed a record.
	MetricRevoke
	// MetricRevokeAll counts completed revoke-all sweeps.
	MetricRevokeAll
	// MetricRevokeAllRecordFailures counts record deletions that failed during sweeps.
	MetricRevokeAllRecordFailures
	// MetricStoreFailure counts token store errors.
	MetricStoreFailure
	// MetricDecodeFailure counts tokens rejected by the codec.
	MetricDecodeFailure
	// MetricRotateLatency is the rotation latency histogram.
	MetricRotateLatency
	metricIDCount
)

// LatencyBounds are the inclusive upper bounds of the histogram buckets. A
// final overflow bucket catches everything slower.
var LatencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(LatencyBounds) + 1

// counter sits alone on a 64-byte cache line.
type counter struct {
	n atomic.Uint64
	_ [56]byte
}

type histogram struct {
	buckets  [histBucketCount]atomic.Uint64
	sumNanos atomic.Uint64
}

// Metrics holds lock-free counters and the rotation latency histogram. A nil
// or disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counter
	rotate        histogram
}

// MetricsSnapshot is a point-in-time copy. Histograms holds per-bucket (not
// cumulative) counts; HistogramSums the total observed time per histogram.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics creates counters according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records d for id. Only MetricRotateLatency has a histogram; other
// ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricRotateLatency {
		return
	}
	if d < 0 {
		d = 0
	}
	m.rotate.buckets[bucketIndex(d)].Add(1)
	m.rotate.sumNanos.Add(uint64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot copies every counter, plus the latency histogram when enabled.
// A disabled instance yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].n.Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.rotate.buckets[i].Load()
		}
		s.Histograms[MetricRotateLatency] = buckets
		s.HistogramSums[MetricRotateLatency] = time.Duration(m.rotate.sumNanos.Load())
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
