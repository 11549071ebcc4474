package lnurlpay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lightningnetwork/lnd/lnwire"
)

var (
	// ErrMalformedMetadata is returned when a pay request's metadata is
	// not a JSON array of [contentType, value] pairs.
	ErrMalformedMetadata = errors.New("malformed metadata")

	// ErrValidation is returned when an input fails validation before any
	// network call is made.
	ErrValidation = errors.New("validation error")

	// ErrAmountRequired is returned when the joint sendable range is not
	// a single value and no amount was supplied.
	ErrAmountRequired = fmt.Errorf("%w: amount required", ErrValidation)

	// ErrCallbackTransport is returned when the callback could not be
	// reached or answered with a transport level failure.
	ErrCallbackTransport = errors.New("callback transport error")

	// ErrCallbackProtocol is returned when the callback answered with an
	// LNURL error status or without a usable invoice.
	ErrCallbackProtocol = errors.New("callback protocol error")

	// ErrSettlement is returned when the wallet backend failed to pay
	// the invoice. The backend error is wrapped verbatim.
	ErrSettlement = errors.New("settlement error")

	// ErrCancelled is returned for recipients that were stopped before
	// their payment was handed to the wallet.
	ErrCancelled = errors.New("payment cancelled")
)

// AmountOutOfRangeError is returned when an amount falls outside of the
// (joint) sendable range, or when the joint range is empty.
type AmountOutOfRangeError struct {
	EffectiveMin lnwire.MilliSatoshi
	EffectiveMax lnwire.MilliSatoshi

	// Amount is the offending amount, zero if the range itself is empty.
	Amount lnwire.MilliSatoshi
}

func (e *AmountOutOfRangeError) Error() string {
	if e.EffectiveMin > e.EffectiveMax {
		return fmt.Sprintf("amount out of range: no amount satisfies "+
			"every recipient (min %v > max %v)", e.EffectiveMin,
			e.EffectiveMax)
	}

	return fmt.Sprintf("amount out of range: %v not within [%v, %v]",
		e.Amount, e.EffectiveMin, e.EffectiveMax)
}

// IsPreNetwork reports whether err was raised before any network call, in
// which case nothing happened and the attempt can be retried after the
// input is corrected. A batch error only qualifies if the whole batch was
// rejected.
func IsPreNetwork(err error) bool {
	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		return batchErr.Status == BatchRejected
	}

	// A recipient that got as far as its callback is past the point
	// where nothing happened, whatever the underlying cause.
	if errors.Is(err, ErrCallbackTransport) ||
		errors.Is(err, ErrCallbackProtocol) ||
		errors.Is(err, ErrSettlement) {

		return false
	}

	var rangeErr *AmountOutOfRangeError
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrMalformedMetadata) ||
		errors.As(err, &rangeErr)
}

// BatchError describes a batch that did not fully settle.
type BatchError struct {
	Status   BatchStatus
	Settled  int
	Failures []PaymentOutcome
}

func (e *BatchError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("recipient %d: %v",
			f.Index, f.Err))
	}

	msg := fmt.Sprintf("batch %v: %d of %d recipients failed", e.Status,
		len(e.Failures), len(e.Failures)+e.Settled)
	if e.PartiallySettled() {
		msg += fmt.Sprintf(" (%d already paid, funds have left the "+
			"wallet)", e.Settled)
	}

	return msg + ": " + strings.Join(reasons, "; ")
}

// PartiallySettled reports whether some recipients were paid even though
// the batch failed. Such payments cannot be reversed.
func (e *BatchError) PartiallySettled() bool {
	return e.Settled > 0
}

// Unwrap exposes the per recipient errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}

	return errs
}
