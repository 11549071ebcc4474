package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil"
	"github.com/ellemouton/lnurlpay"
	"github.com/ellemouton/lnurlpay/lndwallet"
	"github.com/ellemouton/lnurlpay/rates"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

var payCommand = &cli.Command{
	Name:      "pay",
	Usage:     "Pay to LNURL",
	ArgsUsage: "target [target...]",
	Description: `
	Pay the same amount to one or more Lightning Addresses or lnurlp://
	URLs. Every recipient is paid concurrently. If one of them fails the
	others may still have been paid.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "lnurl",
			Usage: "The LNURL to pay too.",
		},
		&cli.Int64Flag{
			Name:  "amt",
			Usage: "The amt of millisats to pay each recipient",
		},
		&cli.StringFlag{
			Name: "fiat",
			Usage: "The amount to pay each recipient in --currency, " +
				"instead of --amt",
		},
		currencyFlag,
		&cli.StringFlag{
			Name:  "comment",
			Usage: "a comment sent to recipients that accept one",
		},
		&cli.StringFlag{
			Name:    "name",
			Usage:   "your name, sent to recipients that ask for it",
			EnvVars: []string{"LNURLPAY_NAME"},
		},
		&cli.BoolFlag{
			Name: "sendname",
			Usage: "send your name to recipients that accept but " +
				"don't require it",
		},
		&cli.Int64Flag{
			Name:  "maxfee",
			Usage: "max fee to pay for each payment (in sats)",
			Value: int64(lndwallet.DefaultMaxFee),
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "max number of recipients paid at once, 0 for all",
		},
	},
	Action: payToLNURL,
}

func payToLNURL(ctx *cli.Context) error {
	params, err := chainParams(ctx.String("network"))
	if err != nil {
		return err
	}

	reqs, err := resolve(ctx)
	if err != nil {
		return err
	}

	if err := printRange(ctx, reqs); err != nil {
		return err
	}

	plan, err := negotiate(ctx, reqs)
	if err != nil {
		return err
	}

	lndClient, err := getLND(ctx)
	if err != nil {
		return fmt.Errorf("could not connect to LND: %w", err)
	}
	defer lndClient.Close()

	wallet, err := lndwallet.New(&lndwallet.Config{
		Client: lndClient.Client,
		MaxFee: btcutil.Amount(ctx.Int64("maxfee")),
	})
	if err != nil {
		return err
	}

	// Fees come on top, so this only catches the obvious cases.
	total := plan.Total(len(reqs))
	balance, err := wallet.Balance(ctx.Context)
	if err != nil {
		return err
	}
	if balance < total {
		return fmt.Errorf("insufficient balance: need %v, have %v",
			total.ToSatoshis(), balance.ToSatoshis())
	}

	session, err := lnurlpay.NewPaymentSession(
		reqs, plan, ctx.String("comment"), lnurlpay.Payer{
			DisplayName: ctx.String("name"),
			SendName:    ctx.Bool("sendname"),
		},
	)
	if err != nil {
		return err
	}
	session.Progress = func(index int, state lnurlpay.State) {
		fmt.Printf("[%d] %v\n", index, state)
	}

	orchestrator, err := lnurlpay.NewOrchestrator(&lnurlpay.Config{
		ExecutorConfig: lnurlpay.ExecutorConfig{
			Transport:   getTransport(ctx),
			Wallet:      wallet,
			ChainParams: params,
		},
		MaxParallel: ctx.Int("parallel"),
	})
	if err != nil {
		return err
	}

	result := orchestrator.Execute(ctx.Context, session)
	for _, o := range result.Outcomes {
		name := o.Identifier
		if name == "" {
			name = o.Callback
		}

		if !o.Settled() {
			fmt.Printf("Failed to pay %s: %v\n", name, o.Err)
			continue
		}

		fmt.Printf("Paid %s! Preimage: %s\n", name, o.Preimage)
		if sa := o.SuccessAction; sa != nil {
			printSuccessAction(sa)
		}
	}

	return result.Err()
}

// negotiate settles on the amount paid to every recipient, asking the user
// if none was given on the command line.
func negotiate(ctx *cli.Context,
	reqs []*lnurlpay.PayRequest) (*lnurlpay.AmountPlan, error) {

	millisats := lnwire.MilliSatoshi(ctx.Int64("amt"))
	if fiat := ctx.String("fiat"); fiat != "" {
		amt, err := decimal.NewFromString(fiat)
		if err != nil {
			return nil, fmt.Errorf("invalid fiat amount: %w", err)
		}

		coingecko := rates.NewCoinGecko(&rates.Config{})
		millisats, err = coingecko.FiatToMsat(
			ctx.Context, amt, ctx.String("currency"),
		)
		if err != nil {
			return nil, err
		}
	}

	// Check if the user specified an amount in the original call. If they
	// did not or if the specified amount is not within the joint range,
	// ask the user to enter a valid amount.
	reader := bufio.NewReader(os.Stdin)
	for {
		plan, err := lnurlpay.Negotiate(reqs, millisats)

		var rangeErr *lnurlpay.AmountOutOfRangeError
		switch {
		case err == nil:
			return plan, nil

		// No amount satisfies every recipient, asking won't help.
		case errors.As(err, &rangeErr) &&
			rangeErr.EffectiveMin > rangeErr.EffectiveMax:

			return nil, err

		case errors.As(err, &rangeErr):
			fmt.Printf("Invalid amount. Expected an amount between "+
				"%d and %d, got %d\n", rangeErr.EffectiveMin,
				rangeErr.EffectiveMax, millisats)

		case !errors.Is(err, lnurlpay.ErrAmountRequired):
			return nil, err
		}

		min, max, _ := lnurlpay.JointRange(reqs)
		fmt.Printf("Enter an amount (in millisatoshis) between "+
			"%d and %d\n", min, max)

		userInput, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("could not read from console: %w",
				err)
		}
		userInput = strings.TrimSpace(userInput)

		amt, err := strconv.ParseUint(userInput, 10, 64)
		if err != nil {
			fmt.Printf("error parsing input: %v\n", err)
			millisats = 0
			continue
		}
		millisats = lnwire.MilliSatoshi(amt)
	}
}

func printSuccessAction(sa *lnurlpay.SuccessAction) {
	switch sa.Tag {
	case "message":
		fmt.Printf("  %s\n", sa.Message)

	case "url":
		fmt.Printf("  %s: %s\n", sa.Description, sa.URL)

	case "aes":
		fmt.Printf("  %s (encrypted, decrypt with the preimage)\n",
			sa.Description)
	}
}
