// Package rates converts between bitcoin amounts and fiat currencies using
// the CoinGecko price API.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/ellemouton/lnurlpay"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/shopspring/decimal"
)

const (
	coingeckoAPI = "https://api.coingecko.com/api/v3"

	// DefaultTTL is how long a price is reused before it is fetched
	// again.
	DefaultTTL = time.Minute
)

var (
	// ErrUnknownCurrency is returned if the API has no price for the
	// requested currency.
	ErrUnknownCurrency = errors.New("unknown currency")

	satsPerBTC = decimal.NewFromInt(btcutil.SatoshiPerBitcoin)
)

// Config configures a CoinGecko client.
type Config struct {
	// BaseURL defaults to the public CoinGecko API.
	BaseURL string

	// HTTPClient defaults to a client with a 15 second timeout.
	HTTPClient *http.Client

	// TTL defaults to DefaultTTL.
	TTL time.Duration
}

type cachedPrice struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// CoinGecko is a client for the CoinGecko simple price API. Prices are
// cached per currency.
type CoinGecko struct {
	baseURL string
	client  *http.Client
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]cachedPrice

	// now is replaced in tests.
	now func() time.Time
}

// NewCoinGecko creates a new CoinGecko client.
func NewCoinGecko(cfg *Config) *CoinGecko {
	c := &CoinGecko{
		baseURL: cfg.BaseURL,
		client:  cfg.HTTPClient,
		ttl:     cfg.TTL,
		cache:   make(map[string]cachedPrice),
		now:     time.Now,
	}
	if c.baseURL == "" {
		c.baseURL = coingeckoAPI
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 15 * time.Second}
	}
	if c.ttl == 0 {
		c.ttl = DefaultTTL
	}

	return c
}

// A compile time check to ensure CoinGecko implements lnurlpay.RateSource.
var _ lnurlpay.RateSource = (*CoinGecko)(nil)

// Price returns the price of one bitcoin in currency.
func (c *CoinGecko) Price(ctx context.Context,
	currency string) (decimal.Decimal, error) {

	currency = strings.ToLower(currency)

	c.mu.Lock()
	cached, ok := c.cache[currency]
	c.mu.Unlock()
	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return cached.price, nil
	}

	price, err := c.fetch(ctx, currency)
	if err != nil {
		return decimal.Decimal{}, err
	}

	c.mu.Lock()
	c.cache[currency] = cachedPrice{price: price, fetchedAt: c.now()}
	c.mu.Unlock()

	return price, nil
}

func (c *CoinGecko) fetch(ctx context.Context,
	currency string) (decimal.Decimal, error) {

	url := fmt.Sprintf("%s/simple/price?ids=bitcoin&vs_currencies=%s",
		c.baseURL, currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to get rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("failed to get rate: "+
			"status %d", resp.StatusCode)
	}

	var prices map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to decode rate: %w",
			err)
	}

	price, ok := prices["bitcoin"][currency]
	if !ok || !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s",
			ErrUnknownCurrency, currency)
	}

	log.Debugf("BTC/%s: %v", strings.ToUpper(currency), price)

	return price, nil
}

// Convert formats amt in currency, for example "12.34 USD". Amounts are
// converted in whole satoshis.
func (c *CoinGecko) Convert(ctx context.Context, amt lnwire.MilliSatoshi,
	currency string) (string, error) {

	price, err := c.Price(ctx, currency)
	if err != nil {
		return "", err
	}

	fiat := decimal.NewFromInt(int64(amt.ToSatoshis())).
		Div(satsPerBTC).
		Mul(price)

	return fiat.StringFixed(2) + " " + strings.ToUpper(currency), nil
}

// FiatToMsat converts a fiat amount to millisatoshis. The result is
// truncated to whole satoshis.
func (c *CoinGecko) FiatToMsat(ctx context.Context, fiat decimal.Decimal,
	currency string) (lnwire.MilliSatoshi, error) {

	if fiat.IsNegative() {
		return 0, fmt.Errorf("negative amount: %v", fiat)
	}

	price, err := c.Price(ctx, currency)
	if err != nil {
		return 0, err
	}

	sats := fiat.Mul(satsPerBTC).Div(price).Truncate(0)

	return lnwire.NewMSatFromSatoshis(btcutil.Amount(sats.IntPart())), nil
}
