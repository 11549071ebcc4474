package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/ellemouton/lnurlpay/metrics"
	"github.com/ellemouton/lnurlpay/payee"
	"github.com/kelseyhightower/envconfig"
	"github.com/lightninglabs/lndclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// config is the payee service configuration, loaded from the environment.
type config struct {
	payee.Config

	LndAddr     string `envconfig:"LND_ADDR" default:"localhost:10009"`
	Network     string `envconfig:"NETWORK" default:"regtest"`
	MacaroonDir string `envconfig:"MACAROON_DIR"`
	TLSPath     string `envconfig:"TLS_PATH"`

	// MetricsAddr is where Prometheus metrics are served, empty to
	// disable them.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

var log btclog.Logger

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "[payee] %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}

	level, ok := btclog.LevelFromString(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	backend := btclog.NewBackend(os.Stderr)
	log = backend.Logger("MAIN")
	log.SetLevel(level)
	payeeLog := backend.Logger(payee.Subsystem)
	payeeLog.SetLevel(level)
	payee.UseLogger(payeeLog)

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	lndClient, err := lndclient.NewLndServices(&lndclient.LndServicesConfig{
		LndAddress:  cfg.LndAddr,
		Network:     lndclient.Network(cfg.Network),
		MacaroonDir: cfg.MacaroonDir,
		TLSPath:     cfg.TLSPath,
	})
	if err != nil {
		return fmt.Errorf("could not connect to LND: %w", err)
	}
	defer lndClient.Close()

	log.Infof("Connected to lnd %v (%v)", lndClient.NodeAlias,
		lndClient.NodePubkey)

	recorder, err := metrics.NewPrometheusRecorder(
		prometheus.DefaultRegisterer,
	)
	if err != nil {
		return err
	}

	server, err := payee.NewServer(&cfg.Config, lndClient.Client, recorder)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	return server.Run(ctx)
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Infof("Serving metrics on %s", addr)
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Metrics server failed: %v", err)
	}
}
