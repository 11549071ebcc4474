package lnurlpay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ellemouton/lnurlpay/metrics"
	"golang.org/x/sync/errgroup"
)

// Config holds the Orchestrator's collaborators and limits.
type Config struct {
	ExecutorConfig

	// MaxParallel caps the number of recipients paid at the same time.
	// Zero means no limit.
	MaxParallel int

	// Metrics records payment outcomes. Defaults to a no-op recorder.
	Metrics metrics.Recorder
}

// Orchestrator pays every recipient of a session concurrently and reduces
// their outcomes into a single BatchResult.
//
// A batch looks atomic from the outside but is not: if any recipient fails
// the batch is reported as failed, yet recipients that already settled stay
// paid. Lightning payments cannot be rolled back, so such a batch is
// reported as BatchPartiallySettled.
type Orchestrator struct {
	cfg      *Config
	executor *Executor
	metrics  metrics.Recorder
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(cfg *Config) (*Orchestrator, error) {
	executor, err := NewExecutor(&cfg.ExecutorConfig)
	if err != nil {
		return nil, err
	}

	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("invalid max parallel: %d",
			cfg.MaxParallel)
	}

	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	return &Orchestrator{
		cfg:      cfg,
		executor: executor,
		metrics:  recorder,
	}, nil
}

// errBatchInvalid is reported for valid recipients of a batch that was
// rejected because of another recipient.
var errBatchInvalid = fmt.Errorf("%w: another recipient of the batch is "+
	"invalid", ErrValidation)

type indexedOutcome struct {
	index   int
	outcome PaymentOutcome
}

// Execute pays the session's plan amount to each of its recipients. It
// always waits for every recipient to reach a terminal state.
//
// Every recipient is validated before any network call. If one fails
// validation, or ctx is already done, nothing is sent and the batch is
// BatchRejected.
func (o *Orchestrator) Execute(ctx context.Context,
	session *PaymentSession) *BatchResult {

	start := time.Now()
	attempts := session.attempts()

	result := &BatchResult{
		SessionID: session.ID,
		Outcomes:  make([]PaymentOutcome, len(attempts)),
	}

	if errs := o.prepare(ctx, attempts); errs != nil {
		log.Warnf("Session %v rejected: %v", session.ID,
			errors.Join(errs...))

		for i, a := range attempts {
			result.Outcomes[i] = PaymentOutcome{
				Index:    a.Index,
				Callback: a.Request.Callback,
				State:    StateFailed,
				Reached:  StatePrepared,
				Err:      errs[i],
			}
		}
		result.Status = BatchRejected
		o.record(result, start)

		return result
	}

	log.Infof("Session %v: paying %v to %d recipient(s)", session.ID,
		session.Plan.Amount, len(attempts))

	var g errgroup.Group
	if o.cfg.MaxParallel > 0 {
		g.SetLimit(o.cfg.MaxParallel)
	}

	results := make(chan indexedOutcome, len(attempts))
	collected := make(chan struct{})
	go func() {
		defer close(collected)

		for r := range results {
			result.Outcomes[r.index] = r.outcome
		}
	}()

	for i, a := range attempts {
		i, a := i, a
		g.Go(func() error {
			results <- indexedOutcome{
				index:   i,
				outcome: o.executor.Pay(ctx, a),
			}

			// Failures are carried in the outcome, never through the
			// group, so that one failure can't hide another's proof.
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	<-collected

	result.Status = reduce(result.Outcomes)
	o.record(result, start)

	log.Infof("Session %v %v: %d/%d settled", session.ID, result.Status,
		result.Settled(), len(result.Outcomes))

	return result
}

// prepare validates every attempt and returns one error per attempt if the
// batch must be rejected, nil otherwise.
func (o *Orchestrator) prepare(ctx context.Context,
	attempts []*Attempt) []error {

	errs := make([]error, len(attempts))
	var rejected bool
	for i, a := range attempts {
		if err := o.executor.Prepare(a); err != nil {
			errs[i] = err
			rejected = true
		}
	}

	if rejected {
		for i := range errs {
			if errs[i] == nil {
				errs[i] = errBatchInvalid
			}
		}

		return errs
	}

	if err := ctx.Err(); err != nil {
		for i := range errs {
			errs[i] = fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		return errs
	}

	return nil
}

func (o *Orchestrator) record(result *BatchResult, start time.Time) {
	for _, outcome := range result.Outcomes {
		o.metrics.IncCounter(metrics.PaymentsTotal, map[string]string{
			"state": outcome.State.String(),
			"stage": outcome.Reached.String(),
		})
	}

	o.metrics.IncCounter(metrics.BatchesTotal, map[string]string{
		"status": result.Status.String(),
	})
	o.metrics.ObserveLatency(metrics.BatchDuration, time.Since(start),
		map[string]string{"status": result.Status.String()})
}
