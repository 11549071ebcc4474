package lnurlpay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the pay request is structurally usable: it must be
// a payRequest, carry a callback URL and a non-empty sendable range, and
// have well formed metadata.
func (p *PayRequest) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: missing pay request", ErrValidation)
	}

	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}

	if _, err := ParseMetadata(p.Metadata); err != nil {
		return err
	}

	return nil
}

// describe turns validator errors into a short, field oriented message.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "eq":
			msgs = append(msgs, fmt.Sprintf("%s must be %q, got %q",
				fe.Field(), fe.Param(), fe.Value()))

		case "gtefield":
			msgs = append(msgs, fmt.Sprintf("%s must not be less "+
				"than %s", fe.Field(), fe.Param()))

		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q check",
				fe.Field(), fe.Tag()))
		}
	}

	return strings.Join(msgs, ", ")
}
