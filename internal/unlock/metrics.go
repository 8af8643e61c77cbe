package unlock

import "github.com/prometheus/client_golang/prometheus"

const (
	resultSuccess         = "success"
	resultDecryptFailed   = "decrypt_failed"
	resultAddressMismatch = "address_mismatch"
	resultLockedOut       = "locked_out"
	resultCancelled       = "cancelled"
	resultCacheHit        = "cache_hit"
)

// Metrics tracks unlock outcomes. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	lockouts prometheus.Counter
	cached   prometheus.Gauge
}

// NewMetrics registers the unlock collectors on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletguard",
			Name:      "unlock_attempts_total",
			Help:      "Unlock attempts by result.",
		}, []string{"result"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletguard",
			Name:      "lockouts_total",
			Help:      "Times the wrong-password lockout was engaged.",
		}),
		cached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "walletguard",
			Name:      "session_cached",
			Help:      "1 while an unlocked key is cached for the session.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.lockouts, m.cached)
	}
	return m
}

func (m *Metrics) observe(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Metrics) setCached(on bool) {
	if m == nil {
		return
	}
	if on {
		m.cached.Set(1)
		return
	}
	m.cached.Set(0)
}
