// Package promhook exports store hook events as Prometheus metrics.
package promhook

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/sessioncas"
)

type Hooks struct {
	casConflicts   *prometheus.CounterVec
	exhausted      *prometheus.CounterVec
	staleLocks     *prometheus.CounterVec
	providerErrors *prometheus.CounterVec
	selfHeals      *prometheus.CounterVec
	setRejected    prometheus.Counter
	lockBusyAge    prometheus.Histogram
}

var _ sessioncas.Hooks = (*Hooks)(nil)

// New registers the collectors on reg under namespace (e.g. "myapp").
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := &Hooks{
		casConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessioncas",
				Name:      "cas_conflicts_total",
				Help:      "CAS writes that lost a race and were retried.",
			}, []string{"op"}),
		exhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessioncas",
				Name:      "contention_exhausted_total",
				Help:      "Operations that gave up after exhausting CAS retries.",
			}, []string{"op"}),
		staleLocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessioncas",
				Name:      "stale_lock_total",
				Help:      "Writes skipped because the presented lock id was no longer current.",
			}, []string{"op"}),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessioncas",
				Name:      "provider_errors_total",
				Help:      "Transport or server errors returned by the cache.",
			}, []string{"op"}),
		selfHeals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessioncas",
				Name:      "self_heal_total",
				Help:      "Stored records deleted on read.",
			}, []string{"reason"}),
		setRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessioncas",
				Name:      "provider_set_rejected_total",
				Help:      "Unconditional writes the cache refused under pressure.",
			}),
		lockBusyAge: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sessioncas",
				Name:      "lock_busy_age_seconds",
				Help:      "Age of the lock observed when a session was found locked.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
			}),
	}
	for _, c := range []prometheus.Collector{
		h.casConflicts, h.exhausted, h.staleLocks, h.providerErrors,
		h.selfHeals, h.setRejected, h.lockBusyAge,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer, namespace string) *Hooks {
	h, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *Hooks) CASConflict(op, _ string, _ int) { h.casConflicts.WithLabelValues(op).Inc() }
func (h *Hooks) ContentionExhausted(op, _ string, _ int) {
	h.exhausted.WithLabelValues(op).Inc()
}
func (h *Hooks) LockBusy(_ string, age time.Duration) { h.lockBusyAge.Observe(age.Seconds()) }
func (h *Hooks) StaleLock(op, _ string, _, _ sessioncas.LockID) {
	h.staleLocks.WithLabelValues(op).Inc()
}
func (h *Hooks) SelfHeal(_, reason string)        { h.selfHeals.WithLabelValues(reason).Inc() }
func (h *Hooks) ProviderSetRejected(string)       { h.setRejected.Inc() }
func (h *Hooks) ProviderError(op string, _ error) { h.providerErrors.WithLabelValues(op).Inc() }
