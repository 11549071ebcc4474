package metrics

import "time"

// Metric names recorded by the payment engine and the payee service.
const (
	// PaymentsTotal counts recipients by terminal state and the last
	// stage they reached.
	PaymentsTotal = "payments_total"

	// BatchesTotal counts batches by status.
	BatchesTotal = "batches_total"

	// BatchDuration observes how long batches took, by status.
	BatchDuration = "batch_duration_seconds"

	// InvoicesTotal counts callback requests served by the payee, by
	// result.
	InvoicesTotal = "invoices_total"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
