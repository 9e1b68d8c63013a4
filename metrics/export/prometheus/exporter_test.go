package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	accountauth "github.com/MrEthical07/accountauth"
)

type fakeSource struct {
	snapshot accountauth.MetricsSnapshot
}

func (f fakeSource) MetricsSnapshot() accountauth.MetricsSnapshot { return f.snapshot }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: accountauth.MetricsSnapshot{
			Counters:   map[accountauth.MetricID]uint64{},
			Histograms: map[accountauth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: accountauth.MetricsSnapshot{
			Counters: map[accountauth.MetricID]uint64{
				accountauth.MetricLoginSuccess:        7,
				accountauth.MetricRegisterRateLimited: 2,
			},
			Histograms: map[accountauth.MetricID][]uint64{
				accountauth.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
	})

	out := exp.Render()
	for _, want := range []string{
		"accountauth_login_success_total 7",
		"accountauth_register_rate_limited_total 2",
		"accountauth_logout_total 0",
		"accountauth_login_latency_seconds_bucket{le=\"0.005\"} 1",
		"accountauth_login_latency_seconds_bucket{le=\"+Inf\"} 36",
		"accountauth_login_latency_seconds_count 36",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderOmitsDisabledHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: accountauth.MetricsSnapshot{
			Counters:   map[accountauth.MetricID]uint64{accountauth.MetricLoginSuccess: 1},
			Histograms: map[accountauth.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "latency") {
		t.Fatalf("expected no histogram series, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: accountauth.MetricsSnapshot{
			Counters:   map[accountauth.MetricID]uint64{accountauth.MetricLoginSuccess: 1},
			Histograms: map[accountauth.MetricID][]uint64{},
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
		snapshot: accountauth.MetricsSnapshot{
			Counters: map[accountauth.MetricID]uint64{
				accountauth.MetricLoginSuccess:          1000,
				accountauth.MetricLoginFailure:          40,
				accountauth.MetricRefreshSuccess:        800,
				accountauth.MetricRefreshFailure:        10,
				accountauth.MetricRegisterSuccess:       120,
				accountauth.MetricPasswordResetRejected: 3,
			},
			Histograms: map[accountauth.MetricID][]uint64{
				accountauth.MetricLoginLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
