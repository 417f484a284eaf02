package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/adminauth"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot adminauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() adminauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := adminauth.MetricsSnapshot{
		Counters:   make(map[adminauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[adminauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

type onlineSource struct {
	*fakeSource
	online int
}

func (o onlineSource) OnlineCount(context.Context) (int, error) { return o.online, nil }

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func int64Value(t *testing.T, data metricdata.Aggregation) (int64, attribute.Set) {
	t.Helper()
	switch d := data.(type) {
	case metricdata.Sum[int64]:
		if len(d.DataPoints) != 1 {
			t.Fatalf("expected one data point, got %d", len(d.DataPoints))
		}
		return d.DataPoints[0].Value, d.DataPoints[0].Attributes
	case metricdata.Gauge[int64]:
		if len(d.DataPoints) != 1 {
			t.Fatalf("expected one data point, got %d", len(d.DataPoints))
		}
		return d.DataPoints[0].Value, d.DataPoints[0].Attributes
	default:
		t.Fatalf("unexpected aggregation %T", data)
	}
	return 0, attribute.Set{}
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("adminauth-test")

	src := &fakeSource{
		snapshot: adminauth.MetricsSnapshot{
			Counters: map[adminauth.MetricID]uint64{
				adminauth.MetricLoginSuccess: 3,
			},
			Histograms: map[adminauth.MetricID][]uint64{
				adminauth.MetricAuthorizeLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src, WithAttributes(attribute.String("instance", "a")))
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)
	v, attrs := int64Value(t, got["adminauth_login_success_total"])
	if v != 3 {
		t.Fatalf("expected login success 3, got %d", v)
	}
	if inst, ok := attrs.Value("instance"); !ok || inst.AsString() != "a" {
		t.Fatalf("expected instance attribute, got %v", attrs)
	}
	if v, _ := int64Value(t, got["adminauth_authorize_latency_seconds_count"]); v != 8 {
		t.Fatalf("expected latency count 8, got %d", v)
	}
	if v, _ := int64Value(t, got["adminauth_audit_dropped_total"]); v != 1 {
		t.Fatalf("expected audit dropped 1, got %d", v)
	}
	if _, ok := got["adminauth_online_sessions"]; ok {
		t.Fatal("plain sources must not register the online gauge")
	}
}

func TestExporterOnlineSessions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	src := onlineSource{fakeSource: &fakeSource{}, online: 5}
	exp, err := NewOTelExporterFromSource(provider.Meter("adminauth-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	if v, _ := int64Value(t, collect(t, reader)["adminauth_online_sessions"]); v != 5 {
		t.Fatalf("expected 5 online sessions, got %d", v)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("adminauth-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("adminauth-test")

	src := &fakeSource{
		snapshot: adminauth.MetricsSnapshot{
			Counters: map[adminauth.MetricID]uint64{
				adminauth.MetricLoginSuccess: 1,
			},
			Histograms: map[adminauth.MetricID][]uint64{
				adminauth.MetricAuthorizeLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[adminauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
