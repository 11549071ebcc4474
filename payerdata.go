package lnurlpay

import (
	"fmt"
	"unicode/utf8"
)

// AnonymousName is sent as the payer's name to recipients that require one
// when no display name is configured.
const AnonymousName = "Anonymous"

// commentNameFormat appends the sender's name to a comment for recipients
// that do not support the name payer data field.
const commentNameFormat = "%s // %s"

// BuildPayerData assembles the payer data sent to a single recipient. It
// returns nil if no payer data should be sent at all.
//
// A mandatory name is always sent, falling back to AnonymousName. An
// optional name is only sent if the user opted in, and may be empty.
func BuildPayerData(req *PayRequest, displayName string,
	optedIn bool) PayerData {

	if req.PayerData == nil || req.PayerData.Name == nil {
		return nil
	}

	switch {
	case req.PayerData.Name.Mandatory:
		name := displayName
		if name == "" {
			name = AnonymousName
		}
		return PayerData{PayerDataName: name}

	case optedIn:
		return PayerData{PayerDataName: displayName}

	default:
		return nil
	}
}

// PrepareComment returns the comment sent to a recipient. If the recipient
// accepts comments but the sender's name is not already carried by payer
// data, the name is appended to a non-empty comment when the user opted in
// to sending it. The comment is left untouched if the result would exceed
// the recipient's comment limit.
func PrepareComment(req *PayRequest, comment, displayName string,
	optedIn bool, payerData PayerData) string {

	if req.CommentAllowed <= 0 || comment == "" || !optedIn ||
		displayName == "" {

		return comment
	}

	if _, ok := payerData[PayerDataName]; ok {
		return comment
	}

	named := fmt.Sprintf(commentNameFormat, comment, displayName)
	if utf8.RuneCountInString(named) > req.CommentAllowed {
		return comment
	}

	return named
}
