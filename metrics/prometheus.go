package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lnurlpay"

type PrometheusRecorder struct {
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusRecorder creates the engine's collectors and registers them
// with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder,
	error) {

	p := &PrometheusRecorder{
		counters: map[string]*prometheus.CounterVec{
			PaymentsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      PaymentsTotal,
					Help:      "Recipients paid, by final state",
				},
				[]string{"state", "stage"},
			),
			BatchesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      BatchesTotal,
					Help:      "Payment batches, by status",
				},
				[]string{"status"},
			),
			InvoicesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      InvoicesTotal,
					Help:      "Invoice requests served, by result",
				},
				[]string{"result"},
			),
		},
		histograms: map[string]*prometheus.HistogramVec{
			BatchDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      BatchDuration,
					Help:      "Payment batch latency",
					Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
				},
				[]string{"status"},
			),
		},
	}

	for _, c := range p.counters {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	for _, h := range p.histograms {
		if err := reg.Register(h); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// IncCounter increments the named counter. Unknown names and mismatching
// labels are ignored.
func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	c, ok := p.counters[name]
	if !ok {
		return
	}

	counter, err := c.GetMetricWith(labels)
	if err != nil {
		return
	}
	counter.Inc()
}

// ObserveLatency records d in the named histogram. Unknown names and
// mismatching labels are ignored.
func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration,
	labels map[string]string) {

	h, ok := p.histograms[name]
	if !ok {
		return
	}

	observer, err := h.GetMetricWith(labels)
	if err != nil {
		return
	}
	observer.Observe(d.Seconds())
}
