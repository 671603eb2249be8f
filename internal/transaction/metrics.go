// internal/transaction/metrics.go
package transaction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	submissions       prometheus.Counter
	resends           prometheus.Counter
	resendFailures    prometheus.Counter
	simulations       prometheus.Counter
	simulationRetries prometheus.Counter
	outcomes          *prometheus.CounterVec
	confirmDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridgetx_tx_submissions_total",
			Help: "Total number of first submissions",
		}),
		resends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridgetx_tx_resends_total",
			Help: "Total number of resends of already submitted transactions",
		}),
		resendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridgetx_tx_resend_failures_total",
			Help: "Total number of resends rejected by the node",
		}),
		simulations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridgetx_tx_simulations_total",
			Help: "Total number of simulation attempts",
		}),
		simulationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridgetx_tx_simulation_retries_total",
			Help: "Total number of simulations retried on a transient error",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridgetx_tx_outcomes_total",
			Help: "Terminal outcomes by kind",
		}, []string{"outcome"}),
		confirmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridgetx_tx_confirm_duration_seconds",
			Help:    "Time from first submission to confirmation",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.submissions,
			m.resends,
			m.resendFailures,
			m.simulations,
			m.simulationRetries,
			m.outcomes,
			m.confirmDuration,
		)
	}
	return m
}

func (m *Metrics) trackOutcome(err error) {
	outcome := "confirmed"
	if err != nil {
		outcome = "failed"
		if k := KindOf(err); k != 0 {
			outcome = k.String()
		}
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) trackConfirmation(d time.Duration) {
	m.confirmDuration.Observe(d.Seconds())
}
