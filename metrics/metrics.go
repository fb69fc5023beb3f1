// Package metrics exposes Prometheus instruments for protocol operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/optifreight/liboptifreight-go/protocol"
)

const namespace = "optifreight"

// Recorder holds the instruments. A nil *Recorder records nothing.
type Recorder struct {
	ops     *prometheus.CounterVec
	settled *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// New creates a Recorder and registers it on reg. A nil reg leaves the
// instruments unregistered.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Protocol operations by result code",
		}, []string{"op", "result"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_lamports_total",
			Help:      "Value moved by settlement leg",
		}, []string{"leg"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_seconds",
			Help:      "Duration of protocol operations",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"op"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{r.ops, r.settled, r.latency} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Observe counts one operation and its latency. The result label is "ok",
// the protocol error code, or "error".
func (r *Recorder) Observe(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.ops.WithLabelValues(op, Result(err)).Inc()
	r.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Settled adds amount to the running total of leg.
func (r *Recorder) Settled(leg string, amount uint64) {
	if r == nil || amount == 0 {
		return
	}
	r.settled.WithLabelValues(leg).Add(float64(amount))
}

// Result maps an operation error to its metric label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if code := protocol.CodeOf(err); code != "" {
		return code
	}
	return "error"
}
