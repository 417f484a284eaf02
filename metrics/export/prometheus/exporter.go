package prometheus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() adminauth.MetricsSnapshot
	AuditDropped() uint64
}

// onlineCounter is implemented by *adminauth.Engine. Sources that provide it
// also get the adminauth_online_sessions gauge.
type onlineCounter interface {
	OnlineCount(ctx context.Context) (int, error)
}

// PrometheusExporter renders engine counters in Prometheus text exposition
// format.
type PrometheusExporter struct {
	source        metricsSource
	onlineTimeout time.Duration
}

// NewPrometheusExporter reads from engine.
func NewPrometheusExporter(engine *adminauth.Engine) *PrometheusExporter {
	return NewPrometheusExporterFromSource(engine)
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source, onlineTimeout: time.Second}
}

// Handler serves the exposition text over HTTP.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		p.write(r.Context(), w)
	})
}

// Render returns the current exposition text. It is empty when metrics are
// disabled and nothing was dropped.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	p.write(context.Background(), &b)
	return b.String()
}

func (p *PrometheusExporter) write(ctx context.Context, w io.Writer) {
	if p == nil || p.source == nil {
		return
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, def := range internaldefs.Counters {
		sample(w, def.Name, def.Help, "counter", snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.Histograms {
		if raw, ok := snapshot.Histograms[def.ID]; ok {
			histogram(w, def, internaldefs.Cumulative(raw))
		}
	}
	sample(w, "adminauth_audit_dropped_total", "Audit events dropped on a full buffer.", "counter", dropped)

	if oc, ok := p.source.(onlineCounter); ok {
		ctx, cancel := context.WithTimeout(ctx, p.onlineTimeout)
		n, err := oc.OnlineCount(ctx)
		cancel()
		if err == nil && n >= 0 {
			sample(w, "adminauth_online_sessions", "Sessions currently in the online registry.", "gauge", uint64(n))
		}
	}
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func header(w io.Writer, name, help, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, kind)
}

func sample(w io.Writer, name, help, kind string, value uint64) {
	header(w, name, help, kind)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

func histogram(w io.Writer, def internaldefs.Def, cumulative []uint64) {
	header(w, def.Name, def.Help, "histogram")
	for i, bucket := range internaldefs.Buckets {
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", def.Name, bucket.Le, cumulative[i])
	}
	fmt.Fprintf(w, "%s_count %d\n", def.Name, cumulative[len(cumulative)-1])
	// The engine keeps bucket counts only.
	fmt.Fprintf(w, "%s_sum 0\n", def.Name)
}
