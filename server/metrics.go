package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects authentication counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	responses *prometheus.CounterVec
	verify    prometheus.Histogram
}

// NewMetrics creates and registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "svcauth",
			Name:      "requests_total",
			Help:      "Inbound requests by authentication outcome.",
		}, []string{"outcome"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "svcauth",
			Name:      "responses_total",
			Help:      "Outbound responses by signing result.",
		}, []string{"result"}),
		verify: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "svcauth",
			Name:      "verify_duration_seconds",
			Help:      "Time spent verifying request signatures.",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01},
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.responses, m.verify} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// observeRequest counts one authentication outcome.
func (m *Metrics) observeRequest(err error, exempt bool) {
	if m == nil {
		return
	}

	label := outcome(err)
	if err == nil && exempt {
		label = "exempt"
	}

	m.requests.WithLabelValues(label).Inc()
}

// observeResponse counts one response signing outcome.
func (m *Metrics) observeResponse(result string) {
	if m == nil {
		return
	}

	m.responses.WithLabelValues(result).Inc()
}

// observeVerify records the duration of a signature verification.
func (m *Metrics) observeVerify(seconds float64) {
	if m == nil {
		return
	}

	m.verify.Observe(seconds)
}
