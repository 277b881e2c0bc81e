package bb84

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Labels for the result of a key negotiation.
const (
	ResultOK       = "ok"
	ResultMismatch = "mismatch"
	ResultError    = "error"
)

const resultLabel = "result"

// Metrics exports prometheus collectors describing key negotiations.
type Metrics struct {
	exchanges  *prometheus.CounterVec
	siftedBits prometheus.Histogram
	clamped    prometheus.Counter
}

// NewMetrics creates the simulator's collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bb84_exchanges_total",
			Help: "Number of BB84 key negotiations, by result",
		}, []string{resultLabel}),
		siftedBits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bb84_sifted_bits",
			Help:    "Length of sifted keys in bits",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		clamped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bb84_clamped_requests_total",
			Help: "Number of key requests clamped to the maximum qubit count",
		}),
	}
	for _, c := range []prometheus.Collector{m.exchanges, m.siftedBits, m.clamped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(s Stats, err error) {
	if m == nil {
		return
	}
	if s.Clamped {
		m.clamped.Inc()
	}
	switch {
	case err == nil:
		m.exchanges.WithLabelValues(ResultOK).Inc()
		m.siftedBits.Observe(float64(s.Sifted))
	case errors.Is(err, ErrKeyMismatch):
		m.exchanges.WithLabelValues(ResultMismatch).Inc()
	default:
		m.exchanges.WithLabelValues(ResultError).Inc()
	}
}
