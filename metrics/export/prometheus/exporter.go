package prometheus

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/hotelcast/tokenauth"
	"github.com/hotelcast/tokenauth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() tokenauth.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders Authority metrics in the text exposition format
// each time it is scraped.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from the given Authority.
func NewPrometheusExporter(a *tokenauth.Authority) *PrometheusExporter {
	return &PrometheusExporter{source: a}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(p.render())
	})
}

// Render returns the current metrics, or "" when metrics are disabled and no
// audit events were dropped.
func (p *PrometheusExporter) Render() string {
	return string(p.render())
}

func (p *PrometheusExporter) render() []byte {
	if p == nil || p.source == nil {
		return nil
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return nil
	}

	w := &textWriter{}
	for _, def := range internaldefs.Counters {
		w.counter(def, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.Histograms {
		w.histogram(def, internaldefs.Cumulative(snap.Histograms[def.ID]), snap.HistogramSums[def.ID].Seconds())
	}
	w.counter(internaldefs.AuditDropped, dropped)

	return w.buf.Bytes()
}

type textWriter struct {
	buf bytes.Buffer
}

func (w *textWriter) header(def internaldefs.Def, kind string) {
	fmt.Fprintf(&w.buf, "# HELP %s %s\n# TYPE %s %s\n", def.Name, escapeHelp(def.Help), def.Name, kind)
}

func (w *textWriter) counter(def internaldefs.Def, v uint64) {
	w.header(def, "counter")
	fmt.Fprintf(&w.buf, "%s %d\n", def.Name, v)
}

func (w *textWriter) histogram(def internaldefs.Def, cumulative []uint64, sumSeconds float64) {
	w.header(def, "histogram")
	for i, b := range internaldefs.Buckets {
		fmt.Fprintf(&w.buf, "%s_bucket{le=%q} %d\n", def.Name, b.Le, cumulative[i])
	}
	fmt.Fprintf(&w.buf, "%s_sum %g\n", def.Name, sumSeconds)
	fmt.Fprintf(&w.buf, "%s_count %d\n", def.Name, cumulative[len(cumulative)-1])
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
