// Package transport implements the HTTP side of LNURL-pay: fetching pay
// requests (LUD-06), mapping Lightning Addresses to URLs (LUD-16) and
// invoking callbacks with comments (LUD-12) and payer data (LUD-18).
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ellemouton/lnurlpay"
)

const (
	// DefaultTimeout bounds every request if the caller does not.
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a response is read.
	maxBodySize = 1 << 20
)

// Config configures a Client.
type Config struct {
	// HTTPClient is used for every request. Defaults to a client with
	// DefaultTimeout.
	HTTPClient *http.Client

	// AllowInsecure permits plain http URLs. Only meant for local
	// testing.
	AllowInsecure bool
}

// Client is an LNURL-pay HTTP client.
type Client struct {
	http          *http.Client
	allowInsecure bool
}

// New creates a new Client.
func New(cfg *Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		http:          httpClient,
		allowInsecure: cfg.AllowInsecure,
	}
}

// A compile time check to ensure Client implements lnurlpay.Transport.
var _ lnurlpay.Transport = (*Client)(nil)

// FetchPayRequest performs the first LNURL-pay request against url and
// returns the validated pay request.
func (c *Client) FetchPayRequest(ctx context.Context,
	url string) (*lnurlpay.PayRequest, error) {

	if err := c.checkScheme(url); err != nil {
		return nil, err
	}

	var payReq lnurlpay.PayRequest
	if err := c.get(ctx, url, &payReq); err != nil {
		return nil, err
	}

	if err := payReq.Validate(); err != nil {
		return nil, err
	}

	// The callback must be as secure as the request that returned it.
	if err := c.checkScheme(payReq.Callback); err != nil {
		return nil, err
	}

	return &payReq, nil
}

// InvokeCallback requests an invoice from the recipient's callback.
func (c *Client) InvokeCallback(ctx context.Context,
	req *lnurlpay.CallbackRequest) (*lnurlpay.InvoiceResponse, error) {

	// By now the recipient is being paid, so a callback that should have
	// been refused at resolution is the recipient's fault.
	if err := c.checkScheme(req.Callback); err != nil {
		return nil, fmt.Errorf("%w: %v", lnurlpay.ErrCallbackProtocol,
			err)
	}

	callback, err := url.Parse(req.Callback)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid callback: %v",
			lnurlpay.ErrCallbackProtocol, err)
	}

	// Keep any query parameters the recipient put in the callback.
	q := callback.Query()
	q.Set("amount", strconv.FormatUint(uint64(req.Amount), 10))
	if req.Comment != "" {
		q.Set("comment", req.Comment)
	}
	if req.PayerData != nil {
		q.Set("payerdata", string(req.PayerData))
	}
	callback.RawQuery = q.Encode()

	var resp lnurlpay.InvoiceResponse
	if err := c.get(ctx, callback.String(), &resp); err != nil {
		return nil, err
	}

	if resp.PayRequest == "" {
		return nil, fmt.Errorf("%w: response carries no invoice",
			lnurlpay.ErrCallbackProtocol)
	}

	return &resp, nil
}

// get performs a GET request and decodes the JSON response into out. An
// LNURL error response is returned as ErrCallbackProtocol, everything else
// that goes wrong as ErrCallbackTransport.
func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", lnurlpay.ErrCallbackTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	log.Debugf("GET %s", url)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET request error: %w",
			lnurlpay.ErrCallbackTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: could not read response body: %w",
			lnurlpay.ErrCallbackTransport, err)
	}

	// Services answer errors with a status field, sometimes alongside a
	// non 2xx code.
	var lnurlErr lnurlpay.Error
	if json.Unmarshal(body, &lnurlErr) == nil &&
		lnurlErr.Status == lnurlpay.StatusError {

		return fmt.Errorf("%w: %s", lnurlpay.ErrCallbackProtocol,
			lnurlErr.Reason)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %s",
			lnurlpay.ErrCallbackTransport, resp.Status)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: invalid response: %v",
			lnurlpay.ErrCallbackProtocol, err)
	}

	return nil
}

func (c *Client) checkScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid url: %v", lnurlpay.ErrValidation,
			err)
	}

	switch {
	case u.Scheme == "https":
		return nil

	case u.Scheme == "http" && c.allowInsecure:
		return nil

	// Onion services are allowed over plain http by LUD-01.
	case u.Scheme == "http" && isOnion(u.Hostname()):
		return nil

	default:
		return fmt.Errorf("%w: url is not https: %s",
			lnurlpay.ErrValidation, rawURL)
	}
}
