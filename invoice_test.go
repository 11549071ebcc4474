package lnurlpay

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/stretchr/testify/require"
)

var testNetParams = &chaincfg.RegressionNetParams

// newTestInvoice returns a signed regtest invoice for amt committing to
// descHash.
func newTestInvoice(t *testing.T, amt lnwire.MilliSatoshi,
	descHash [32]byte) string {

	t.Helper()

	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)

	var paymentHash [32]byte
	copy(paymentHash[:], descHash[:])
	paymentHash[0] ^= 0xff

	inv, err := zpay32.NewInvoice(
		testNetParams, paymentHash, time.Now(),
		zpay32.Amount(amt), zpay32.DescriptionHash(descHash),
	)
	require.NoError(t, err)

	encoded, err := inv.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			hash := chainhash.HashB(msg)
			return btcec.SignCompact(btcec.S256(), key, hash, true)
		},
	})
	require.NoError(t, err)

	return encoded
}

func TestDescriptionHash(t *testing.T) {
	meta := `[["text/plain","Coffee"]]`
	require.Equal(t, DescriptionHash(meta, nil),
		DescriptionHash(meta, []byte{}))
	require.NotEqual(t, DescriptionHash(meta, nil),
		DescriptionHash(meta, []byte(`{"name":"Satoshi"}`)))
}

func TestExecutorVerifiesInvoice(t *testing.T) {
	req := payRequest("alice", 1000, 10_000)
	req.PayerData = &PayerDataSpec{Name: &PayerDataField{Mandatory: true}}
	payerData := PayerData{"name": "Satoshi"}
	payerJSON := []byte(`{"name":"Satoshi"}`)

	tests := []struct {
		name    string
		invoice string
		err     error
	}{
		{
			name: "valid",
			invoice: newTestInvoice(
				t, 5000, DescriptionHash(req.Metadata, payerJSON),
			),
		},
		{
			name: "wrong amount",
			invoice: newTestInvoice(
				t, 4000, DescriptionHash(req.Metadata, payerJSON),
			),
			err: ErrCallbackProtocol,
		},
		{
			name: "payer data not committed",
			invoice: newTestInvoice(
				t, 5000, DescriptionHash(req.Metadata, nil),
			),
			err: ErrCallbackProtocol,
		},
		{
			name:    "garbage",
			invoice: "lnbcrt-not-an-invoice",
			err:     ErrCallbackProtocol,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			transport := newMockTransport()
			wallet := newMockWallet()
			transport.invoices[req.Callback] = test.invoice

			e, err := NewExecutor(&ExecutorConfig{
				Transport:   transport,
				Wallet:      wallet,
				ChainParams: testNetParams,
			})
			require.NoError(t, err)

			outcome := e.Pay(context.Background(), &Attempt{
				Request:   req,
				Amount:    5000,
				PayerData: payerData,
			})

			if test.err != nil {
				require.ErrorIs(t, outcome.Err, test.err)
				require.Zero(t, wallet.numPaid())
				return
			}

			require.NoError(t, outcome.Err)
			require.True(t, outcome.Settled())
			require.Equal(t, 1, wallet.numPaid())
		})
	}
}
