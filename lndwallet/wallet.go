// Package lndwallet pays LNURL-pay invoices through an lnd node.
package lndwallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcutil"
	"github.com/ellemouton/lnurlpay"
	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
)

// DefaultMaxFee is the routing fee limit used if none is configured.
const DefaultMaxFee = btcutil.Amount(1000)

// LightningClient is the part of lndclient.LightningClient the wallet
// needs.
type LightningClient interface {
	PayInvoice(ctx context.Context, invoice string,
		maxFee btcutil.Amount,
		outgoingChannel *uint64) chan lndclient.PaymentResult

	ChannelBalance(ctx context.Context) (*lndclient.ChannelBalance, error)
}

// Config configures a Wallet.
type Config struct {
	Client LightningClient

	// MaxFee caps the routing fee of every payment. Defaults to
	// DefaultMaxFee.
	MaxFee btcutil.Amount
}

// Wallet is an lnurlpay.Wallet backed by lnd.
type Wallet struct {
	client LightningClient
	maxFee btcutil.Amount
}

// New creates a new Wallet.
func New(cfg *Config) (*Wallet, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("lightning client required")
	}

	maxFee := cfg.MaxFee
	if maxFee == 0 {
		maxFee = DefaultMaxFee
	}
	if maxFee < 0 {
		return nil, fmt.Errorf("negative max fee: %v", maxFee)
	}

	return &Wallet{
		client: cfg.Client,
		maxFee: maxFee,
	}, nil
}

// A compile time check to ensure Wallet implements lnurlpay.Wallet.
var _ lnurlpay.Wallet = (*Wallet)(nil)

// SendPayment pays the invoice and blocks until the payment has settled
// or failed.
func (w *Wallet) SendPayment(ctx context.Context,
	invoice string) (lntypes.Preimage, error) {

	var res lndclient.PaymentResult
	select {
	case res = <-w.client.PayInvoice(ctx, invoice, w.maxFee, nil):
	case <-ctx.Done():
		return lntypes.Preimage{}, ctx.Err()
	}

	if res.Err != nil {
		return lntypes.Preimage{}, fmt.Errorf("could not pay invoice: "+
			"%w", res.Err)
	}

	log.Debugf("Paid %v with %v fee", res.PaidAmt, res.PaidFee)

	return res.Preimage, nil
}

// Balance returns the spendable balance of the node's channels.
func (w *Wallet) Balance(ctx context.Context) (lnwire.MilliSatoshi, error) {
	balance, err := w.client.ChannelBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not get channel balance: %w", err)
	}

	return lnwire.NewMSatFromSatoshis(balance.Balance), nil
}
