package payee

import (
	"fmt"
	"time"
)

// PayerNamePolicy is how the service asks for the payer's name.
type PayerNamePolicy string

const (
	PayerNameNone      PayerNamePolicy = "none"
	PayerNameOptional  PayerNamePolicy = "optional"
	PayerNameMandatory PayerNamePolicy = "mandatory"
)

// Config holds the service's settings. The envconfig tags let binaries
// load it from the environment.
type Config struct {
	// Protocol, Host and Port form the public base URL of the service.
	Protocol string `envconfig:"PROTOCOL" default:"https"`
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"8080"`

	// ListenAddr is the local address the HTTP server binds to.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Users are the usernames served as Lightning Addresses. The first
	// one is also served on /pay.
	Users []string `envconfig:"USERS" default:"satoshi"`

	Description     string `envconfig:"DESCRIPTION" default:"Pay to LNURL"`
	MinMsatSendable int64  `envconfig:"MIN_SENDABLE" default:"1000"`
	MaxMsatSendable int64  `envconfig:"MAX_SENDABLE" default:"100000000"`

	// CommentAllowed is the longest comment accepted, 0 to refuse
	// comments.
	CommentAllowed int `envconfig:"COMMENT_ALLOWED" default:"140"`

	PayerName PayerNamePolicy `envconfig:"PAYER_NAME" default:"optional"`

	// SuccessMessage, if set, is returned as a LUD-09 message action.
	SuccessMessage string `envconfig:"SUCCESS_MESSAGE"`

	// RequestTTL is how long a pay request's callback stays valid.
	RequestTTL time.Duration `envconfig:"REQUEST_TTL" default:"10m"`
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	switch {
	case len(c.Users) == 0:
		return fmt.Errorf("at least one user required")

	case c.MinMsatSendable < 1:
		return fmt.Errorf("min sendable must be at least 1 msat")

	case c.MaxMsatSendable < c.MinMsatSendable:
		return fmt.Errorf("max sendable %d below min sendable %d",
			c.MaxMsatSendable, c.MinMsatSendable)

	case c.CommentAllowed < 0:
		return fmt.Errorf("negative comment length")

	case c.RequestTTL <= 0:
		return fmt.Errorf("request ttl must be positive")
	}

	switch c.PayerName {
	case PayerNameNone, PayerNameOptional, PayerNameMandatory:
	default:
		return fmt.Errorf("unknown payer name policy %q", c.PayerName)
	}

	return nil
}

func (c *Config) baseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Host, c.Port)
}
