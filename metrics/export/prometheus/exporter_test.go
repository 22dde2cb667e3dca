package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
)

type fakeSource struct {
	snapshot binarystore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() binarystore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                         { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters:   map[binarystore.MetricID]uint64{},
			Histograms: map[binarystore.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters: map[binarystore.MetricID]uint64{
				binarystore.MetricLoginSuccess: 7,
			},
			Histograms: map[binarystore.MetricID][]uint64{
				binarystore.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "binarystore_login_success_total 7") {
		t.Fatalf("expected login_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "binarystore_validate_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "binarystore_validate_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "binarystore_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters:   map[binarystore.MetricID]uint64{binarystore.MetricLoginSuccess: 1},
			Histograms: map[binarystore.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters: map[binarystore.MetricID]uint64{
				binarystore.MetricLoginSuccess:                1000,
				binarystore.MetricLoginFailure:                40,
				binarystore.MetricSessionValidated:            800,
				binarystore.MetricSessionRejected:             10,
				binarystore.MetricSessionCreated:              800,
				binarystore.MetricSessionRevoked:              20,
				binarystore.MetricPasswordResetConfirmFailure: 3,
			},
			Histograms: map[binarystore.MetricID][]uint64{
				binarystore.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}

func TestRenderWritesEveryCounterWithZeroDefault(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters: map[binarystore.MetricID]uint64{
				binarystore.MetricLoginRateLimited: 4,
			},
			Histograms: map[binarystore.MetricID][]uint64{},
		},
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE binarystore_login_rate_limited_total counter",
		"binarystore_login_rate_limited_total 4",
		"binarystore_session_store_error_total 0",
		"binarystore_validate_latency_seconds_count 0",
		"binarystore_audit_dropped_total 0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderLabeledFamilies(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Counters: map[binarystore.MetricID]uint64{
				binarystore.MetricLoginSuccess:     9,
				binarystore.MetricLoginRateLimited: 2,
				binarystore.MetricSessionRevoked:   3,
				binarystore.MetricUserDeleted:      1,
			},
		},
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE binarystore_login_attempts_total counter",
		`binarystore_login_attempts_total{outcome="success"} 9`,
		`binarystore_login_attempts_total{outcome="failure"} 0`,
		`binarystore_login_attempts_total{outcome="rate_limited"} 2`,
		"# TYPE binarystore_admin_actions_total counter",
		`binarystore_admin_actions_total{action="revoke_session"} 3`,
		`binarystore_admin_actions_total{action="revoke_all_sessions"} 0`,
		`binarystore_admin_actions_total{action="delete_user"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Count(out, "# TYPE binarystore_admin_actions_total") != 1 {
		t.Fatalf("family header repeated:\n%s", out)
	}
}

func TestRenderHistogramSumInSeconds(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: binarystore.MetricsSnapshot{
			Histograms: map[binarystore.MetricID][]uint64{
				binarystore.MetricValidateLatency: {2, 1},
			},
			HistogramSums: map[binarystore.MetricID]time.Duration{
				binarystore.MetricValidateLatency: 1500 * time.Millisecond,
			},
		},
	})

	out := exp.Render()
	if !strings.Contains(out, "binarystore_validate_latency_seconds_sum 1.5\n") {
		t.Fatalf("expected sum in seconds, got:\n%s", out)
	}
	if !strings.Contains(out, "binarystore_validate_latency_seconds_count 3\n") {
		t.Fatalf("expected count 3, got:\n%s", out)
	}
}

func TestEscapeLabel(t *testing.T) {
	if got := escapeLabel("a\"b\\c\nd"); got != `a\"b\\c\nd` {
		t.Fatalf("escapeLabel = %q", got)
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != `a\\b\nc` {
		t.Fatalf("escapeHelp = %q", got)
	}
}
