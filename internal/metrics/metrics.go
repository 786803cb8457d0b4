// Package metrics holds the Prometheus collectors for verification and
// monitoring workflows. All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification engine and workers.
type Metrics struct {
	VerificationAttempts *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	AutoVerifyOutcomes   *prometheus.CounterVec
	SweepUnits           *prometheus.CounterVec
	SweepDuration        *prometheus.HistogramVec
	Notifications        *prometheus.CounterVec
	SectionRevalidations *prometheus.CounterVec
	RecoveredRuns        prometheus.Counter
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer in
// binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VerificationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_verification_attempts_total",
			Help: "Verification method attempts by method and outcome",
		}, []string{"method", "outcome"}),
		VerificationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "domainwatch_verification_duration_seconds",
			Help:    "Duration of a full Verify call across all attempted methods",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		AutoVerifyOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_autoverify_outcomes_total",
			Help: "Auto-verify run transitions by outcome",
		}, []string{"outcome"}),
		SweepUnits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_sweep_units_total",
			Help: "Sweep units by sweep and outcome (success, failed, conflict)",
		}, []string{"sweep", "outcome"}),
		SweepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "domainwatch_sweep_duration_seconds",
			Help:    "Duration of a full sweep",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"sweep"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_notifications_total",
			Help: "Notifications delivered by channel and category",
		}, []string{"channel", "category"}),
		SectionRevalidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_section_revalidations_total",
			Help: "Section revalidations by section and outcome",
		}, []string{"section", "outcome"}),
		RecoveredRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "domainwatch_recovered_runs_total",
			Help: "Stale claimed workflow runs released back to scheduled",
		}),
	}
}

// ObserveVerification records one method attempt.
func (m *Metrics) ObserveVerification(method string, verified bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if verified {
		outcome = "verified"
	}
	m.VerificationAttempts.WithLabelValues(method, outcome).Inc()
}

// ObserveVerifyDuration records the duration of a Verify call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveVerifyDuration(start time.Time) {
	if m == nil {
		return
	}
	m.VerificationDuration.Observe(time.Since(start).Seconds())
}

// IncAutoVerify records an auto-verify transition.
func (m *Metrics) IncAutoVerify(outcome string) {
	if m == nil {
		return
	}
	m.AutoVerifyOutcomes.WithLabelValues(outcome).Inc()
}

// AddSweepUnits adds n units with the given outcome.
func (m *Metrics) AddSweepUnits(sweep, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SweepUnits.WithLabelValues(sweep, outcome).Add(float64(n))
}

// ObserveSweep records a sweep duration.
func (m *Metrics) ObserveSweep(sweep string, start time.Time) {
	if m == nil {
		return
	}
	m.SweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
}

// IncNotification records a delivered notification.
func (m *Metrics) IncNotification(channel, category string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(channel, category).Inc()
}

// IncRevalidation records a section revalidation.
func (m *Metrics) IncRevalidation(section string, success bool) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	m.SectionRevalidations.WithLabelValues(section, outcome).Inc()
}

// AddRecoveredRuns records released stale claims.
func (m *Metrics) AddRecoveredRuns(n int64) {
	if m == nil || n == 0 {
		return
	}
	m.RecoveredRuns.Add(float64(n))
}
