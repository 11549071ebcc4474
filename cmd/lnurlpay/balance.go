package main

import (
	"fmt"

	"github.com/ellemouton/lnurlpay/lndwallet"
	"github.com/urfave/cli/v2"
)

var balanceCommand = &cli.Command{
	Name:   "balance",
	Usage:  "Show the spendable channel balance",
	Action: showBalance,
}

func showBalance(ctx *cli.Context) error {
	lndClient, err := getLND(ctx)
	if err != nil {
		return fmt.Errorf("could not connect to LND: %w", err)
	}
	defer lndClient.Close()

	wallet, err := lndwallet.New(&lndwallet.Config{
		Client: lndClient.Client,
	})
	if err != nil {
		return err
	}

	balance, err := wallet.Balance(ctx.Context)
	if err != nil {
		return err
	}

	fmt.Printf("Spendable balance: %v\n", balance.ToSatoshis())

	return nil
}
