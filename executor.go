package lnurlpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
)

// State is a step of a single recipient's payment.
type State uint8

const (
	StatePrepared State = iota
	StateCallbackInvoked
	StateInvoiceReceived
	StateSettled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePrepared:
		return "Prepared"
	case StateCallbackInvoked:
		return "CallbackInvoked"
	case StateInvoiceReceived:
		return "InvoiceReceived"
	case StateSettled:
		return "Settled"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateFailed
}

// Attempt is the input of a single recipient's payment.
type Attempt struct {
	// Index is the recipient's position in its batch.
	Index int

	Request   *PayRequest
	Amount    lnwire.MilliSatoshi
	Comment   string
	PayerData PayerData

	// Progress, if set, is called on every state transition.
	Progress func(index int, state State)
}

// PaymentOutcome is the terminal result of a single recipient's payment.
type PaymentOutcome struct {
	Index    int
	Callback string

	// Identifier is the payee's Lightning Address from the metadata, if
	// present.
	Identifier string

	// State is StateSettled or StateFailed.
	State State

	// Reached is the last state reached before the terminal one. For a
	// failed recipient it tells whether the wallet was ever asked to pay.
	Reached State

	Invoice string

	// Preimage is the proof of payment, set if State is StateSettled.
	Preimage lntypes.Preimage

	// SuccessAction is the recipient's optional LUD-09 action.
	SuccessAction *SuccessAction

	// Err is set if State is StateFailed.
	Err error
}

// Settled reports whether the recipient was paid.
func (o *PaymentOutcome) Settled() bool {
	return o.State == StateSettled
}

// ExecutorConfig holds the collaborators of an Executor.
type ExecutorConfig struct {
	Transport Transport
	Wallet    Wallet

	// ChainParams are used to decode and verify invoices before they are
	// paid. If nil, invoices are handed to the wallet unverified.
	ChainParams *chaincfg.Params
}

// Executor drives a single recipient from callback invocation to
// settlement. It never retries: a Lightning payment attempt is not safe to
// repeat blindly.
type Executor struct {
	cfg *ExecutorConfig
}

// NewExecutor creates a new Executor.
func NewExecutor(cfg *ExecutorConfig) (*Executor, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport required")
	}
	if cfg.Wallet == nil {
		return nil, errors.New("wallet required")
	}

	return &Executor{cfg: cfg}, nil
}

// Prepare validates an attempt without touching the network.
func (e *Executor) Prepare(a *Attempt) error {
	if err := a.Request.Validate(); err != nil {
		return err
	}

	req := a.Request
	if a.Amount < req.MinSendable || a.Amount > req.MaxSendable {
		return &AmountOutOfRangeError{
			EffectiveMin: req.MinSendable,
			EffectiveMax: req.MaxSendable,
			Amount:       a.Amount,
		}
	}

	if n := utf8.RuneCountInString(a.Comment); n > req.CommentAllowed {
		return fmt.Errorf("%w: comment is %d characters long, "+
			"recipient allows %d", ErrValidation, n,
			req.CommentAllowed)
	}

	return nil
}

// Pay runs the attempt to a terminal state. Cancelling ctx stops the
// attempt only until the invoice is handed to the wallet, after which the
// payment is allowed to resolve.
func (e *Executor) Pay(ctx context.Context, a *Attempt) PaymentOutcome {
	p := &payment{
		Executor: e,
		attempt:  a,
		outcome: PaymentOutcome{
			Index:    a.Index,
			Callback: a.Request.Callback,
			State:    StatePrepared,
		},
	}

	if err := p.run(ctx); err != nil {
		p.fail(err)
	}

	return p.outcome
}

// payment holds the state of a single Pay call.
type payment struct {
	*Executor

	attempt *Attempt
	outcome PaymentOutcome
}

func (p *payment) run(ctx context.Context) error {
	a := p.attempt
	if err := p.Prepare(a); err != nil {
		return err
	}

	meta, err := DecodeMetadata(a.Request.Metadata)
	if err != nil {
		return err
	}
	p.outcome.Identifier = meta.Identifier

	var payerData []byte
	if a.PayerData != nil {
		payerData, err = json.Marshal(a.PayerData)
		if err != nil {
			return fmt.Errorf("%w: encode payer data: %v",
				ErrValidation, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	p.transition(StateCallbackInvoked)
	resp, err := p.cfg.Transport.InvokeCallback(ctx, &CallbackRequest{
		Callback:  a.Request.Callback,
		Amount:    a.Amount,
		Comment:   a.Comment,
		PayerData: payerData,
	})
	switch {
	case err != nil && ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrCancelled, err)

	case errors.Is(err, ErrCallbackTransport),
		errors.Is(err, ErrCallbackProtocol):

		return err

	case err != nil:
		return fmt.Errorf("%w: %w", ErrCallbackTransport, err)

	case resp == nil || resp.PayRequest == "":
		return fmt.Errorf("%w: response carries no invoice",
			ErrCallbackProtocol)
	}

	if p.cfg.ChainParams != nil {
		err := verifyInvoice(
			p.cfg.ChainParams, resp.PayRequest, a.Amount,
			a.Request.Metadata, payerData,
		)
		if err != nil {
			return err
		}
	}

	p.outcome.Invoice = resp.PayRequest
	p.outcome.SuccessAction = resp.SuccessAction
	p.transition(StateInvoiceReceived)

	// Last chance to back out without side effects.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	log.Debugf("Paying invoice for recipient %d (%s): %v", a.Index,
		meta.Description, a.Amount)

	preimage, err := p.cfg.Wallet.SendPayment(
		context.WithoutCancel(ctx), resp.PayRequest,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSettlement, err)
	}

	p.outcome.Preimage = preimage
	p.transition(StateSettled)

	log.Infof("Recipient %d settled, preimage: %v", a.Index, preimage)

	return nil
}

func (p *payment) transition(to State) {
	from := p.outcome.State
	p.outcome.Reached = from
	p.outcome.State = to

	log.Tracef("Recipient %d: %v -> %v", p.attempt.Index, from, to)

	if p.attempt.Progress != nil {
		p.attempt.Progress(p.attempt.Index, to)
	}
}

func (p *payment) fail(err error) {
	p.outcome.Err = err
	p.transition(StateFailed)

	log.Errorf("Recipient %d failed after %v: %v", p.attempt.Index,
		p.outcome.Reached, err)
}
