package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot binarystore.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() binarystore.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := binarystore.MetricsSnapshot{
		Counters:      make(map[binarystore.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms:    make(map[binarystore.MetricID][]uint64, len(f.snapshot.Histograms)),
		HistogramSums: make(map[binarystore.MetricID]time.Duration, len(f.snapshot.HistogramSums)),
	}
	for k, v := range f.snapshot.HistogramSums {
		out.HistogramSums[k] = v
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("binarystore-test")

	src := &fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters: map[binarystore.MetricID]uint64{
				binarystore.MetricLoginSuccess: 3,
			},
			Histograms: map[binarystore.MetricID][]uint64{
				binarystore.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("binarystore-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("binarystore-test")

	src := &fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters: map[binarystore.MetricID]uint64{
				binarystore.MetricLoginSuccess: 1,
			},
			Histograms: map[binarystore.MetricID][]uint64{
				binarystore.MetricValidateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[binarystore.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReportsCounterValues(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("binarystore-test")

	src := &fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters: map[binarystore.MetricID]uint64{
				binarystore.MetricLoginRateLimited: 5,
			},
			Histograms: map[binarystore.MetricID][]uint64{},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "binarystore_login_rate_limited_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 {
				t.Fatalf("unexpected data for %s: %#v", m.Name, m.Data)
			}
			if sum.DataPoints[0].Value != 5 {
				t.Fatalf("rate limited counter = %d, want 5", sum.DataPoints[0].Value)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("rate limited counter not collected")
	}
}

func collect(t *testing.T, src *fakeSource) map[string]metricdata.Metrics {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exp, err := NewOTelExporterFromSource(provider.Meter("binarystore-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestExporterReportsAdminActionsByAttribute(t *testing.T) {
	got := collect(t, &fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters: map[binarystore.MetricID]uint64{
				binarystore.MetricSessionRevoked: 4,
				binarystore.MetricLogoutAll:      2,
			},
		},
	})

	m, ok := got["binarystore_admin_actions_total"]
	if !ok {
		t.Fatal("admin action family not collected")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 3 {
		t.Fatalf("unexpected data: %#v", m.Data)
	}
	values := make(map[string]int64, len(sum.DataPoints))
	for _, dp := range sum.DataPoints {
		action, ok := dp.Attributes.Value(attribute.Key("action"))
		if !ok {
			t.Fatalf("data point without action attribute: %#v", dp)
		}
		values[action.AsString()] = dp.Value
	}
	want := map[string]int64{
		binarystore.AdminActionRevokeSession:     4,
		binarystore.AdminActionRevokeAllSessions: 2,
		binarystore.AdminActionDeleteUser:        0,
	}
	for action, v := range want {
		if values[action] != v {
			t.Fatalf("action %s = %d, want %d (all: %v)", action, values[action], v, values)
		}
	}
}

func TestExporterReportsLatencySum(t *testing.T) {
	got := collect(t, &fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Histograms: map[binarystore.MetricID][]uint64{
				binarystore.MetricValidateLatency: {4},
			},
			HistogramSums: map[binarystore.MetricID]time.Duration{
				binarystore.MetricValidateLatency: 250 * time.Millisecond,
			},
		},
	})

	m, ok := got["binarystore_validate_latency_seconds_sum"]
	if !ok {
		t.Fatal("latency sum not collected")
	}
	gauge, ok := m.Data.(metricdata.Gauge[float64])
	if !ok || len(gauge.DataPoints) != 1 {
		t.Fatalf("unexpected data: %#v", m.Data)
	}
	if gauge.DataPoints[0].Value != 0.25 {
		t.Fatalf("latency sum = %v, want 0.25", gauge.DataPoints[0].Value)
	}
}
