package main

import (
	"fmt"

	"github.com/ellemouton/lnurlpay"
	"github.com/ellemouton/lnurlpay/rates"
	"github.com/urfave/cli/v2"
)

var currencyFlag = &cli.StringFlag{
	Name:    "currency",
	Value:   "usd",
	Usage:   "the fiat currency amounts are shown in",
	EnvVars: []string{"FIAT_CURRENCY"},
}

var quoteCommand = &cli.Command{
	Name:      "quote",
	Usage:     "Show what the given recipients accept",
	ArgsUsage: "target [target...]",
	Description: `
	Resolve one or more Lightning Addresses or lnurlp:// URLs and show the
	amount range all of them accept.`,
	Flags:  []cli.Flag{currencyFlag},
	Action: quote,
}

func quote(ctx *cli.Context) error {
	reqs, err := resolve(ctx)
	if err != nil {
		return err
	}

	return printRange(ctx, reqs)
}

// resolve fetches the pay requests of every target and prints what each
// recipient asks to be paid for.
func resolve(ctx *cli.Context) ([]*lnurlpay.PayRequest, error) {
	all := targets(ctx)
	if len(all) == 0 {
		return nil, fmt.Errorf("no recipient given")
	}

	resolved, err := getTransport(ctx).ResolveAll(ctx.Context, all)
	if err != nil {
		return nil, err
	}

	reqs := make([]*lnurlpay.PayRequest, 0, len(resolved))
	for _, target := range resolved {
		meta, err := lnurlpay.DecodeMetadata(target.Request.Metadata)
		if err != nil {
			return nil, err
		}

		name := meta.Identifier
		if name == "" {
			name = target.Input
		}
		fmt.Printf("%s: %s\n", name, meta.Description)

		reqs = append(reqs, target.Request)
	}

	return reqs, nil
}

func printRange(ctx *cli.Context, reqs []*lnurlpay.PayRequest) error {
	coingecko := rates.NewCoinGecko(&rates.Config{})
	d, err := lnurlpay.DescribeRange(
		ctx.Context, reqs, coingecko, ctx.String("currency"),
	)
	if err != nil {
		return err
	}

	withFiat := func(btc, fiat string) string {
		if fiat == "" {
			return btc
		}
		return fmt.Sprintf("%s (%s)", btc, fiat)
	}

	if d.Fixed {
		fmt.Printf("Amount: %s\n", withFiat(d.Min, d.MinFiat))
		return nil
	}

	fmt.Printf("Amount: %s to %s\n", withFiat(d.Min, d.MinFiat),
		withFiat(d.Max, d.MaxFiat))

	return nil
}
