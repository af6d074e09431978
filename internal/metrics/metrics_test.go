package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveHelpers(t *testing.T) {
	before := testutil.ToFloat64(rateLimitDecisionsTotal.WithLabelValues("scoring", OutcomeDenied))
	ObserveRateLimit("scoring", false)
	if got := testutil.ToFloat64(rateLimitDecisionsTotal.WithLabelValues("scoring", OutcomeDenied)); got != before+1 {
		t.Fatalf("expected denied counter to grow by one, got %v -> %v", before, got)
	}

	before = testutil.ToFloat64(selfHealCorrectionsTotal.WithLabelValues("tier"))
	ObserveCorrection("tier")
	if got := testutil.ToFloat64(selfHealCorrectionsTotal.WithLabelValues("tier")); got != before+1 {
		t.Fatalf("expected tier corrections to grow by one, got %v -> %v", before, got)
	}

	before = testutil.ToFloat64(pipelinesTotal.WithLabelValues("done", "none"))
	ObservePipeline(-time.Second, "done", "")
	if got := testutil.ToFloat64(pipelinesTotal.WithLabelValues("done", "none")); got != before+1 {
		t.Fatalf("expected pipeline counter to grow by one, got %v -> %v", before, got)
	}
}
