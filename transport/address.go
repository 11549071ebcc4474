package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/ellemouton/lnurlpay"
	"golang.org/x/sync/errgroup"
)

// Target is a resolved pay target.
type Target struct {
	// Input is the string the target was resolved from.
	Input string

	// URL is the LNURL-pay endpoint.
	URL string

	Request *lnurlpay.PayRequest
}

// LightningAddressURL maps a Lightning Address to its LNURL-pay endpoint
// (LUD-16).
func LightningAddressURL(address string, insecure bool) (string, error) {
	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%w: invalid LN address %q. Expected "+
			"the form <username>@<domain>", lnurlpay.ErrValidation,
			address)
	}

	username, domain := strings.ToLower(parts[0]), strings.ToLower(parts[1])

	protocol := "https"
	if insecure || isOnion(domain) {
		protocol = "http"
	}

	return fmt.Sprintf("%s://%s/.well-known/lnurlp/%s", protocol, domain,
		username), nil
}

// TargetURL turns a Lightning Address, an lnurlp:// URL (LUD-17) or a plain
// URL into the URL of the first LNURL-pay request. Bech32 encoded LNURLs
// must be decoded by the caller.
func (c *Client) TargetURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	target = strings.TrimPrefix(target, "lightning:")

	protocol := "https"
	if c.allowInsecure {
		protocol = "http"
	}

	switch {
	case strings.HasPrefix(target, "lnurlp://"):
		rest := strings.TrimPrefix(target, "lnurlp://")
		host := strings.SplitN(rest, "/", 2)[0]
		if isOnion(host) {
			protocol = "http"
		}
		return protocol + "://" + rest, nil

	case strings.HasPrefix(target, "https://"),
		strings.HasPrefix(target, "http://"):

		return target, nil

	case strings.HasPrefix(strings.ToLower(target), "lnurl1"):
		return "", fmt.Errorf("%w: bech32 LNURLs must be decoded "+
			"first", lnurlpay.ErrValidation)

	case strings.Contains(target, "@"):
		return LightningAddressURL(target, c.allowInsecure)

	default:
		return "", fmt.Errorf("%w: unsupported scheme: %q",
			lnurlpay.ErrValidation, target)
	}
}

// Resolve fetches the pay request of a single target.
func (c *Client) Resolve(ctx context.Context, target string) (*Target,
	error) {

	url, err := c.TargetURL(target)
	if err != nil {
		return nil, err
	}

	req, err := c.FetchPayRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}

	return &Target{Input: target, URL: url, Request: req}, nil
}

// ResolveAll resolves the deduplicated targets concurrently. It fails as
// soon as one target can't be resolved, since a batch can only be paid if
// every recipient is known. Resolution has no side effects, so the others
// are simply abandoned.
func (c *Client) ResolveAll(ctx context.Context, targets []string) (
	[]*Target, error) {

	targets = Dedupe(targets)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no targets", lnurlpay.ErrValidation)
	}

	resolved := make([]*Target, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			r, err := c.Resolve(ctx, t)
			if err != nil {
				return err
			}
			resolved[i] = r

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return resolved, nil
}

// Dedupe trims targets, drops empty ones and removes case-insensitive
// duplicates, keeping the first occurrence.
func Dedupe(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}

		key := strings.ToLower(strings.TrimPrefix(t, "lightning:"))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}

	return out
}

// SplitTargets splits a comma separated list of targets.
func SplitTargets(s string) []string {
	return Dedupe(strings.Split(s, ","))
}

func isOnion(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), ".onion")
}
