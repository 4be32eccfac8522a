package pattern

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/diffkemp/diffpat/internal/config"
	"github.com/diffkemp/diffpat/internal/errors"
)

// Metrics counts load outcomes. A nil *Metrics records nothing.
type Metrics struct {
	PatternsLoaded prometheus.Counter
	LoadFailures   *prometheus.CounterVec
	DecodeFailures *prometheus.CounterVec
	Sessions       prometheus.Counter
}

// NewMetrics creates the pattern metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PatternsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "diffpat",
			Name:      "patterns_loaded_total",
			Help:      "Number of difference patterns registered.",
		}),
		LoadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffpat",
			Name:      "pattern_load_failures_total",
			Help:      "Number of pattern files or patterns that failed to load, by error code.",
		}, []string{"code"}),
		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffpat",
			Name:      "metadata_decode_failures_total",
			Help:      "Number of malformed pattern metadata nodes, by parse-failure policy.",
		}, []string{"policy"}),
		Sessions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "diffpat",
			Name:      "comparison_sessions_total",
			Help:      "Number of comparison sessions started.",
		}),
	}
}

func (m *Metrics) patternLoaded() {
	if m == nil {
		return
	}
	m.PatternsLoaded.Inc()
}

func (m *Metrics) loadFailed(err error) {
	if m == nil {
		return
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	m.LoadFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) decodeFailed(policy config.ParseFailurePolicy) {
	if m == nil {
		return
	}
	m.DecodeFailures.WithLabelValues(policy.String()).Inc()
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
}
