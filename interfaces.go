package lnurlpay

import (
	"context"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
)

// Transport invokes a recipient's LNURL-pay callback.
type Transport interface {
	// InvokeCallback requests an invoice from the recipient. Network and
	// HTTP failures should wrap ErrCallbackTransport, LNURL error
	// responses should wrap ErrCallbackProtocol. Errors wrapping neither
	// are treated as transport errors.
	InvokeCallback(ctx context.Context,
		req *CallbackRequest) (*InvoiceResponse, error)
}

// Wallet settles invoices.
type Wallet interface {
	// SendPayment pays the invoice and blocks until the payment reached a
	// final state. It may take an unbounded amount of time.
	SendPayment(ctx context.Context, invoice string) (lntypes.Preimage,
		error)

	// Balance returns the currently spendable balance. It is meant for
	// callers, the engine itself never consults it.
	Balance(ctx context.Context) (lnwire.MilliSatoshi, error)
}

// RateSource converts amounts into fiat strings for display only.
type RateSource interface {
	Convert(ctx context.Context, amt lnwire.MilliSatoshi,
		currency string) (string, error)
}
