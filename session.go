package lnurlpay

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/lntypes"
)

// Payer is the sender's identity as configured in the wallet.
type Payer struct {
	// DisplayName is the configured name, empty if none.
	DisplayName string

	// SendName is the user's opt-in to identify themselves to recipients
	// that support it optionally.
	SendName bool
}

// PaymentSession is one user initiated payment action. It is created by the
// caller, handed to the Orchestrator and referenced by the result.
type PaymentSession struct {
	ID        uuid.UUID
	CreatedAt time.Time

	Requests []*PayRequest
	Plan     *AmountPlan
	Comment  string
	Payer    Payer

	// Progress, if set, is called on every state transition of every
	// recipient. It is called concurrently from the recipients'
	// goroutines.
	Progress func(index int, state State)
}

// NewPaymentSession creates a session paying plan.Amount to each of reqs.
func NewPaymentSession(reqs []*PayRequest, plan *AmountPlan, comment string,
	payer Payer) (*PaymentSession, error) {

	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrValidation)
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: no amount plan", ErrValidation)
	}
	for i, req := range reqs {
		if req == nil {
			return nil, fmt.Errorf("%w: recipient %d has no pay "+
				"request", ErrValidation, i)
		}
	}

	return &PaymentSession{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Requests:  reqs,
		Plan:      plan,
		Comment:   comment,
		Payer:     payer,
	}, nil
}

// attempts builds the per recipient inputs. Payer data and comments are
// derived per recipient since their policies may differ.
func (s *PaymentSession) attempts() []*Attempt {
	attempts := make([]*Attempt, 0, len(s.Requests))
	for i, req := range s.Requests {
		payerData := BuildPayerData(
			req, s.Payer.DisplayName, s.Payer.SendName,
		)
		comment := PrepareComment(
			req, s.Comment, s.Payer.DisplayName, s.Payer.SendName,
			payerData,
		)

		attempts = append(attempts, &Attempt{
			Index:     i,
			Request:   req,
			Amount:    s.Plan.Amount,
			Comment:   comment,
			PayerData: payerData,
			Progress:  s.Progress,
		})
	}

	return attempts
}

// BatchStatus is the overall status of a batch.
type BatchStatus uint8

const (
	// BatchSucceeded means every recipient was paid.
	BatchSucceeded BatchStatus = iota

	// BatchRejected means the batch failed before any network call was
	// made, either on validation or because it was cancelled.
	BatchRejected

	// BatchFailed means the batch failed and no recipient was paid.
	BatchFailed

	// BatchPartiallySettled means the batch failed but some recipients
	// were paid. Those payments are final.
	BatchPartiallySettled
)

func (s BatchStatus) String() string {
	switch s {
	case BatchSucceeded:
		return "succeeded"
	case BatchRejected:
		return "rejected"
	case BatchFailed:
		return "failed"
	case BatchPartiallySettled:
		return "partially settled"
	default:
		return fmt.Sprintf("BatchStatus(%d)", uint8(s))
	}
}

// BatchResult is the outcome of a session.
type BatchResult struct {
	SessionID uuid.UUID

	// Outcomes holds one entry per recipient, in request order.
	Outcomes []PaymentOutcome

	Status BatchStatus
}

// Settled returns the number of paid recipients.
func (r *BatchResult) Settled() int {
	var n int
	for i := range r.Outcomes {
		if r.Outcomes[i].Settled() {
			n++
		}
	}

	return n
}

// Preimage returns the representative proof of a fully settled batch: the
// first recipient's preimage. A batch as a whole has no single preimage,
// callers that need every proof must read Outcomes.
func (r *BatchResult) Preimage() (lntypes.Preimage, error) {
	if err := r.Err(); err != nil {
		return lntypes.Preimage{}, err
	}

	return r.Outcomes[0].Preimage, nil
}

// Err returns nil if every recipient settled and a *BatchError otherwise.
func (r *BatchResult) Err() error {
	if r.Status == BatchSucceeded {
		return nil
	}

	batchErr := &BatchError{Status: r.Status}
	for _, o := range r.Outcomes {
		if o.Settled() {
			batchErr.Settled++
			continue
		}
		batchErr.Failures = append(batchErr.Failures, o)
	}

	return batchErr
}

func reduce(outcomes []PaymentOutcome) BatchStatus {
	var settled, attempted int
	for _, o := range outcomes {
		if o.Settled() {
			settled++
		}
		if o.Reached >= StateCallbackInvoked {
			attempted++
		}
	}

	switch {
	case settled == len(outcomes):
		return BatchSucceeded
	case settled > 0:
		return BatchPartiallySettled
	case attempted == 0:
		return BatchRejected
	default:
		return BatchFailed
	}
}
