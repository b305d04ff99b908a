// Package metrics exposes wallet operation metrics to prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hedera_wallet"

// Recorder records ledger operation metrics. A nil *Recorder is a no-op.
type Recorder struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	subscriptions prometheus.Gauge
	refreshes     *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by operation and result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time from submission to receipt or query response.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Open topic message streams.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_refreshes_total",
			Help:      "Account refreshes by trigger and result.",
		}, []string{"trigger", "result"}),
	}
	reg.MustRegister(r.operations, r.duration, r.subscriptions, r.refreshes)
	return r
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveOperation records one finished ledger operation
func (r *Recorder) ObserveOperation(op string, ok bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, result(ok)).Inc()
	r.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SubscriptionOpened increments the active subscription gauge
func (r *Recorder) SubscriptionOpened() {
	if r == nil {
		return
	}
	r.subscriptions.Inc()
}

// SubscriptionClosed decrements the active subscription gauge
func (r *Recorder) SubscriptionClosed() {
	if r == nil {
		return
	}
	r.subscriptions.Dec()
}

// ObserveRefresh records an account refresh; trigger is "manual" or "background"
func (r *Recorder) ObserveRefresh(trigger string, ok bool) {
	if r == nil {
		return
	}
	r.refreshes.WithLabelValues(trigger, result(ok)).Inc()
}
