package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestSubmissionMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSubmissionMetrics(reg)

	m.ObserveSubmission("success", 1.2)
	m.ObserveSubmission("success", 0.4)
	m.ObserveSubmission("conflict", 0.3)
	m.ObserveCRMWrite("Account", true)
	m.ObserveCRMWrite("Contact", false)
	m.ObserveFileRejected("executable")
	m.ObserveOCR("gemini", "ok")

	family := findFamily(t, reg, "supplier_onboarding_submission_total")
	counts := map[string]float64{}
	for _, metric := range family.GetMetric() {
		counts[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
	}
	if counts["success"] != 2 || counts["conflict"] != 1 {
		t.Fatalf("unexpected submission counts %v", counts)
	}

	writes := findFamily(t, reg, "supplier_onboarding_crm_writes_total")
	if len(writes.GetMetric()) != 2 {
		t.Fatalf("expected two write series, got %d", len(writes.GetMetric()))
	}

	hist := findFamily(t, reg, "supplier_onboarding_submission_duration_seconds")
	if hist.GetType() != dto.MetricType_HISTOGRAM {
		t.Fatalf("expected histogram, got %v", hist.GetType())
	}
}

func TestSubmissionMetricsNilSafe(t *testing.T) {
	var m *SubmissionMetrics
	m.ObserveSubmission("success", 1)
	m.ObserveCRMWrite("Account", true)
	m.ObserveFileRejected("too_large")
	m.ObserveOCR("bedrock", "error")
}
