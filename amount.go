package lnurlpay

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/shopspring/decimal"
)

// AmountPlan is the single amount paid to every recipient of a batch.
type AmountPlan struct {
	// Amount is the amount each recipient is paid.
	Amount lnwire.MilliSatoshi

	// EffectiveMin is the largest minSendable of all recipients.
	EffectiveMin lnwire.MilliSatoshi

	// EffectiveMax is the smallest maxSendable of all recipients.
	EffectiveMax lnwire.MilliSatoshi

	// Fixed is true if the joint range was a single value and no amount
	// had to be chosen.
	Fixed bool
}

// Total is the amount that leaves the wallet if every one of n recipients
// is paid, excluding routing fees.
func (p *AmountPlan) Total(n int) lnwire.MilliSatoshi {
	return p.Amount * lnwire.MilliSatoshi(n)
}

// JointRange returns the intersection of the recipients' sendable ranges.
func JointRange(reqs []*PayRequest) (lnwire.MilliSatoshi,
	lnwire.MilliSatoshi, error) {

	if len(reqs) == 0 {
		return 0, 0, fmt.Errorf("%w: no recipients", ErrValidation)
	}

	min, max := reqs[0].MinSendable, reqs[0].MaxSendable
	for _, r := range reqs[1:] {
		if r.MinSendable > min {
			min = r.MinSendable
		}
		if r.MaxSendable < max {
			max = r.MaxSendable
		}
	}

	if min > max {
		return min, max, &AmountOutOfRangeError{
			EffectiveMin: min,
			EffectiveMax: max,
		}
	}

	return min, max, nil
}

// NeedsAmount reports whether the user has to be asked for an amount, which
// is only the case if the joint range holds more than one value.
func NeedsAmount(reqs []*PayRequest) bool {
	min, max, err := JointRange(reqs)
	return err == nil && min != max
}

// Negotiate picks the amount paid to every recipient. If the joint range is
// a single value that value is used and requested is ignored. Otherwise
// requested must lie within the joint range, zero meaning that no amount
// was supplied.
func Negotiate(reqs []*PayRequest, requested lnwire.MilliSatoshi) (
	*AmountPlan, error) {

	min, max, err := JointRange(reqs)
	if err != nil {
		return nil, err
	}

	plan := &AmountPlan{
		EffectiveMin: min,
		EffectiveMax: max,
	}

	if min == max {
		plan.Amount = min
		plan.Fixed = true

		return plan, nil
	}

	if requested == 0 {
		return nil, ErrAmountRequired
	}

	if requested < min || requested > max {
		return nil, &AmountOutOfRangeError{
			EffectiveMin: min,
			EffectiveMax: max,
			Amount:       requested,
		}
	}
	plan.Amount = requested

	log.Debugf("Negotiated %v for %d recipient(s) within [%v, %v]",
		requested, len(reqs), min, max)

	return plan, nil
}

// RangeDisplay holds the joint range formatted for display.
type RangeDisplay struct {
	Min, Max         string
	MinFiat, MaxFiat string
	Fixed            bool
}

// DescribeRange formats the joint range in bitcoin and, if rates is set, in
// the given fiat currency. Fiat strings are left empty if the rate source
// fails since they are informational only.
func DescribeRange(ctx context.Context, reqs []*PayRequest, rates RateSource,
	currency string) (*RangeDisplay, error) {

	min, max, err := JointRange(reqs)
	if err != nil {
		return nil, err
	}

	d := &RangeDisplay{
		Min:   formatBitcoin(min),
		Max:   formatBitcoin(max),
		Fixed: min == max,
	}

	if rates == nil {
		return d, nil
	}

	d.MinFiat, err = rates.Convert(ctx, min, currency)
	if err != nil {
		log.Warnf("Unable to convert %v to %s: %v", min, currency, err)
		return d, nil
	}

	d.MaxFiat, err = rates.Convert(ctx, max, currency)
	if err != nil {
		log.Warnf("Unable to convert %v to %s: %v", max, currency, err)
		d.MinFiat = ""
	}

	return d, nil
}

// formatBitcoin formats amt in satoshis, keeping any millisatoshi fraction
// so that the displayed range bounds are payable as shown.
func formatBitcoin(amt lnwire.MilliSatoshi) string {
	sats := decimal.New(int64(amt), -3)
	return sats.String() + " " + btcutil.AmountSatoshi.String()
}
