package lnurlpay

import (
	"github.com/lightningnetwork/lnd/lnwire"
)

// PayRequest is the response of an LN SERVICE to the first LNURL-pay GET
// request (LUD-06), extended with LUD-12 comments and LUD-18 payer data.
type PayRequest struct {
	// Callback is the URL from LN SERVICE which will accept the pay request
	// parameters.
	Callback string `json:"callback" validate:"required,url"`

	// MaxSendable is the max amount LN SERVICE is willing to receive.
	MaxSendable lnwire.MilliSatoshi `json:"maxSendable" validate:"gtefield=MinSendable"`

	// MinSendable is the min amount LN SERVICE is willing to receive, can
	// not be less than 1 or more than `maxSendable`.
	MinSendable lnwire.MilliSatoshi `json:"minSendable" validate:"gte=1"`

	// Metadata json which must be presented as raw string here, this is
	// required to pass signature verification at a later step.
	Metadata string `json:"metadata" validate:"required"`

	// CommentAllowed is the max length of a comment the LN SERVICE
	// accepts. Zero means comments are not accepted.
	CommentAllowed int `json:"commentAllowed,omitempty" validate:"gte=0"`

	// PayerData lists the payer identification fields the LN SERVICE
	// supports, nil if it supports none.
	PayerData *PayerDataSpec `json:"payerData,omitempty"`

	// Type of LNURL.
	Tag Type `json:"tag" validate:"eq=payRequest"`
}

// PayerDataSpec is the LUD-18 payer data capability descriptor.
type PayerDataSpec struct {
	Name       *PayerDataField `json:"name,omitempty"`
	Pubkey     *PayerDataField `json:"pubkey,omitempty"`
	Identifier *PayerDataField `json:"identifier,omitempty"`
	Email      *PayerDataField `json:"email,omitempty"`
	Auth       *PayerDataField `json:"auth,omitempty"`
}

// PayerDataField describes a single supported payer data field.
type PayerDataField struct {
	Mandatory bool `json:"mandatory"`
}

// PayerData maps supported payer data field names to the values sent to a
// single recipient.
type PayerData map[string]string

const (
	// PayerDataName is the LUD-18 field carrying the sender's name.
	PayerDataName = "name"
)

// InvoiceResponse is the LN SERVICE's answer to a callback request.
type InvoiceResponse struct {
	// PayRequest is a bech32-serialized lightning invoice.
	PayRequest string `json:"pr"`

	// Routes an empty array.
	Routes []interface{} `json:"routes"`

	// SuccessAction is the optional LUD-09 action to run after payment.
	SuccessAction *SuccessAction `json:"successAction,omitempty"`
}

// SuccessAction is a LUD-09 success action. Only the message and url
// variants are decoded; aes payloads are kept but not decrypted.
type SuccessAction struct {
	Tag         string `json:"tag"`
	Message     string `json:"message,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Ciphertext  string `json:"ciphertext,omitempty"`
	IV          string `json:"iv,omitempty"`
}

// CallbackRequest is everything a transport needs to invoke a recipient's
// callback.
type CallbackRequest struct {
	// Callback is the recipient's callback URL.
	Callback string

	// Amount is the negotiated amount.
	Amount lnwire.MilliSatoshi

	// Comment is the optional LUD-12 comment. Empty means none.
	Comment string

	// PayerData is the JSON encoded LUD-18 payer data, nil if none is
	// sent. The exact bytes are committed to by the invoice's
	// description hash.
	PayerData []byte
}

type Type string

const (
	TypePayRequest = "payRequest"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

type Error struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}
