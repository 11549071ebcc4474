package lnurlpay

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
)

// DescriptionHash is the hash a recipient's invoice must commit to: the
// metadata string, followed by the payer data JSON if any was sent.
func DescriptionHash(metadata string, payerData []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(metadata))
	h.Write(payerData)

	var hash [32]byte
	copy(hash[:], h.Sum(nil))

	return hash
}

// verifyInvoice decodes the invoice and checks that it is for the requested
// amount and commits to the recipient's metadata and payer data.
func verifyInvoice(params *chaincfg.Params, invoice string,
	amt lnwire.MilliSatoshi, metadata string, payerData []byte) error {

	inv, err := zpay32.Decode(invoice, params)
	if err != nil {
		return fmt.Errorf("%w: could not decode invoice: %v",
			ErrCallbackProtocol, err)
	}

	if inv.MilliSat == nil || *inv.MilliSat != amt {
		return fmt.Errorf("%w: invoice amount %v does not match "+
			"requested amount %v", ErrCallbackProtocol, inv.MilliSat,
			amt)
	}

	// Ensure that the invoice description hash matches the metadata
	// received before.
	hash := DescriptionHash(metadata, payerData)
	if inv.DescriptionHash == nil ||
		!bytes.Equal(inv.DescriptionHash[:], hash[:]) {

		return fmt.Errorf("%w: invalid invoice description hash",
			ErrCallbackProtocol)
	}

	return nil
}
