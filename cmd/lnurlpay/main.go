package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btclog"
	"github.com/ellemouton/lnurlpay"
	"github.com/ellemouton/lnurlpay/lndwallet"
	"github.com/ellemouton/lnurlpay/rates"
	"github.com/ellemouton/lnurlpay/transport"
	"github.com/lightninglabs/lndclient"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()

	app.Name = "lnurlpay"
	app.Usage = "Pay one or more LNURL-pay recipients"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost:10009",
			Usage:   "lnd instance rpc address",
			EnvVars: []string{"LND_ADDR"},
		},
		&cli.StringFlag{
			Name:    "network",
			Value:   "regtest",
			Usage:   "the network",
			EnvVars: []string{"NETWORK"},
		},
		&cli.StringFlag{
			Name:    "macpath",
			Usage:   "Path to lnd's mac dir",
			EnvVars: []string{"MACAROON_DIR"},
		},
		&cli.StringFlag{
			Name:    "tlspath",
			Usage:   "Path to lnd's tls cert",
			EnvVars: []string{"TLS_PATH"},
		},
		&cli.BoolFlag{
			Name:  "notls",
			Usage: "set to true to use http instead of https",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: transport.DefaultTimeout,
			Usage: "timeout of every LNURL http request",
		},
		&cli.StringFlag{
			Name:    "debuglevel",
			Value:   "info",
			Usage:   "logging level: trace, debug, info, warn, error",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
	app.Before = func(ctx *cli.Context) error {
		return setupLogging(ctx.String("debuglevel"))
	}
	app.Commands = append(
		app.Commands, payCommand, quoteCommand, balanceCommand,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[lnurlpay] %v\n", err)
	os.Exit(1)
}

// setupLogging writes every subsystem's logs to stderr.
func setupLogging(level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("unknown debug level %q", level)
	}

	backend := btclog.NewBackend(os.Stderr)
	for subsystem, use := range map[string]func(btclog.Logger){
		lnurlpay.Subsystem:  lnurlpay.UseLogger,
		transport.Subsystem: transport.UseLogger,
		lndwallet.Subsystem: lndwallet.UseLogger,
		rates.Subsystem:     rates.UseLogger,
	} {
		logger := backend.Logger(subsystem)
		logger.SetLevel(lvl)
		use(logger)
	}

	return nil
}

func getLND(ctx *cli.Context) (*lndclient.GrpcLndServices, error) {
	return lndclient.NewLndServices(&lndclient.LndServicesConfig{
		LndAddress:  ctx.String("host"),
		Network:     lndclient.Network(ctx.String("network")),
		MacaroonDir: ctx.String("macpath"),
		TLSPath:     ctx.String("tlspath"),
	})
}

func getTransport(ctx *cli.Context) *transport.Client {
	return transport.New(&transport.Config{
		HTTPClient:    &http.Client{Timeout: ctx.Duration("timeout")},
		AllowInsecure: ctx.Bool("notls"),
	})
}

// chainParams returns the parameters invoices of network are decoded with.
func chainParams(network string) (*chaincfg.Params, error) {
	switch lndclient.Network(strings.ToLower(network)) {
	case lndclient.NetworkMainnet:
		return &chaincfg.MainNetParams, nil
	case lndclient.NetworkTestnet:
		return &chaincfg.TestNet3Params, nil
	case lndclient.NetworkRegtest:
		return &chaincfg.RegressionNetParams, nil
	case lndclient.NetworkSimnet:
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

// targets collects the pay targets given as arguments, each of which may
// be a comma separated list.
func targets(ctx *cli.Context) []string {
	var all []string
	for _, arg := range ctx.Args().Slice() {
		all = append(all, strings.Split(arg, ",")...)
	}
	if lnurl := ctx.String("lnurl"); lnurl != "" {
		all = append(all, lnurl)
	}

	return transport.Dedupe(all)
}
