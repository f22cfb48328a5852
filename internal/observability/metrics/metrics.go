package metrics

import "github.com/prometheus/client_golang/prometheus"

// SubmissionMetrics exposes counters/histograms for the onboarding flow.
type SubmissionMetrics struct {
	submissionsTotal   *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	crmWritesTotal     *prometheus.CounterVec
	filesRejectedTotal *prometheus.CounterVec
	ocrRequestsTotal   *prometheus.CounterVec
}

func NewSubmissionMetrics(reg prometheus.Registerer) *SubmissionMetrics {
	m := &SubmissionMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supplier_onboarding",
			Subsystem: "submission",
			Name:      "total",
			Help:      "Supplier submissions by outcome",
		}, []string{"outcome"}),
		submissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supplier_onboarding",
			Subsystem: "submission",
			Name:      "duration_seconds",
			Help:      "End-to-end duration of POST /api/supplier",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"outcome"}),
		crmWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supplier_onboarding",
			Subsystem: "crm",
			Name:      "writes_total",
			Help:      "CRM record writes by object and status",
		}, []string{"object", "status"}),
		filesRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supplier_onboarding",
			Subsystem: "files",
			Name:      "rejected_total",
			Help:      "Uploaded files refused by the file policy",
		}, []string{"reason"}),
		ocrRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supplier_onboarding",
			Subsystem: "ocr",
			Name:      "requests_total",
			Help:      "Attestation OCR requests by provider and status",
		}, []string{"provider", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.submissionDuration, m.crmWritesTotal, m.filesRejectedTotal, m.ocrRequestsTotal)
	return m
}

func (m *SubmissionMetrics) ObserveSubmission(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
	m.submissionDuration.WithLabelValues(outcome).Observe(seconds)
}

func (m *SubmissionMetrics) ObserveCRMWrite(object string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.crmWritesTotal.WithLabelValues(object, status).Inc()
}

func (m *SubmissionMetrics) ObserveFileRejected(reason string) {
	if m == nil {
		return
	}
	m.filesRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *SubmissionMetrics) ObserveOCR(provider, status string) {
	if m == nil {
		return
	}
	m.ocrRequestsTotal.WithLabelValues(provider, status).Inc()
}
