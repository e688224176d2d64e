package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromRecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm("tikgrab_test", reg)

	p.IncSubmissions("ok")
	p.IncSubmissions("ok")
	p.IncSubmissions("extraction_failed")
	p.IncServed("not_found")
	p.IncDeletions("scheduler", "deleted")
	p.SetPendingDeletions(3)
	p.ObserveExtraction(1.5)

	if got := testutil.ToFloat64(p.submissions.WithLabelValues("ok")); got != 2 {
		t.Errorf("expected 2 ok submissions, got %v", got)
	}
	if got := testutil.ToFloat64(p.submissions.WithLabelValues("extraction_failed")); got != 1 {
		t.Errorf("expected 1 failed submission, got %v", got)
	}
	if got := testutil.ToFloat64(p.served.WithLabelValues("not_found")); got != 1 {
		t.Errorf("expected 1 not_found serve, got %v", got)
	}
	if got := testutil.ToFloat64(p.deletions.WithLabelValues("scheduler", "deleted")); got != 1 {
		t.Errorf("expected 1 scheduler deletion, got %v", got)
	}
	if got := testutil.ToFloat64(p.pending); got != 3 {
		t.Errorf("expected pending gauge 3, got %v", got)
	}

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tikgrab_test_submissions_total") {
		t.Error("expected exposition to include submissions counter")
	}
}

func TestNewPromOnSeparateRegistries(t *testing.T) {
	first := prometheus.NewRegistry()
	second := prometheus.NewRegistry()

	a := NewProm("tikgrab", first)
	b := NewProm("tikgrab", second)
	a.IncServed("ok")

	if got := testutil.ToFloat64(b.served.WithLabelValues("ok")); got != 0 {
		t.Errorf("expected registries to be independent, got %v on the second", got)
	}
	if n, err := testutil.GatherAndCount(first, "tikgrab_served_total"); err != nil || n != 1 {
		t.Errorf("expected one served series on the first registry, got %d (%v)", n, err)
	}
}

func TestNewPromDefaultsToDefaultRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	previous := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	t.Cleanup(func() { prometheus.DefaultRegisterer = previous })

	NewProm("tikgrab_default", nil)

	if n, err := testutil.GatherAndCount(reg, "tikgrab_default_pending_deletions"); err != nil || n != 1 {
		t.Errorf("expected collectors on the default registerer, got %d (%v)", n, err)
	}
}

func TestNoopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Noop{}
	r.IncSubmissions("ok")
	r.ObserveExtraction(1)
	r.IncServed("ok")
	r.IncDeletions("sweep", "deleted")
	r.SetPendingDeletions(0)
}
