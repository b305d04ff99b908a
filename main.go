package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/stellar/go/support/errors"
	"github.com/stellar/go/support/log"
	"github.com/urfave/cli/v2"

	"github.com/saif727/hedera-wallet-backend/config"
	"github.com/saif727/hedera-wallet-backend/controllers"
	"github.com/saif727/hedera-wallet-backend/ledger"
	"github.com/saif727/hedera-wallet-backend/ledger/memnet"
	"github.com/saif727/hedera-wallet-backend/metrics"
	"github.com/saif727/hedera-wallet-backend/models"
	"github.com/saif727/hedera-wallet-backend/services"
	"github.com/saif727/hedera-wallet-backend/store"
	"github.com/saif727/hedera-wallet-backend/watch"
)

const shutdownTimeout = 10 * time.Second

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to a TOML config file",
		EnvVars: []string{"WALLET_CONFIG"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "log level: panic, fatal, error, warn, info, debug, trace",
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "mainnet, testnet, previewnet or demo",
	}
	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "HTTP listen address",
	}
)

func main() {
	app := &cli.App{
		Name:   "hedera-wallet",
		Usage:  "HTTP backend for a Hedera wallet",
		Flags:  []cli.Flag{configFlag, logLevelFlag, networkFlag, listenFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return cfg, err
	}
	if c.IsSet(logLevelFlag.Name) {
		cfg.LogLevel = c.String(logLevelFlag.Name)
	}
	if c.IsSet(networkFlag.Name) {
		cfg.Network = c.String(networkFlag.Name)
	}
	if c.IsSet(listenFlag.Name) {
		cfg.ListenAddr = c.String(listenFlag.Name)
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	log.DefaultLogger.SetLevel(level)
	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := log.DefaultLogger.WithField("network", cfg.Network)

	network, bootstrap, err := openNetwork(cfg, logger)
	if err != nil {
		return err
	}
	defer network.Close()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return errors.Wrap(err, "failed to create data directory")
	}
	credentials, err := store.Open(cfg.CredentialsPath(), cfg.Passphrase, logger)
	if err != nil {
		return err
	}
	defer credentials.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service := services.NewWalletService(services.Config{
		Network: network,
		Store:   credentials,
		Metrics: metrics.New(registry),
		Log:     logger,
	})
	if cfg.AccountID != "" {
		bootstrap = &models.Credentials{AccountID: cfg.AccountID, PrivateKey: cfg.PrivateKey}
	}
	startSession(service, bootstrap, logger)
	defer service.Close()

	alerts := watch.NewAlertFeed(0, logger)
	poller := watch.NewAccountPoller(watch.PollerConfig{
		Fetcher:  service,
		Interval: cfg.RefreshInterval,
		Alerts:   alerts,
		Metrics:  service.Config.Metrics,
		Log:      logger,
	})
	defer poller.Stop()
	listener := watch.NewTopicListener(service, alerts, logger)
	defer listener.Close()
	if service.IsConnected() {
		poller.Activate(service.OperatorAccountID())
	}

	ctrl := controllers.NewWalletController(service, poller, listener, alerts)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           controllers.NewRouter(ctrl, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("starting HTTP server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != http.ErrServerClosed {
			return errors.Wrap(err, "failed to start server")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openNetwork connects to the configured network. For the demo network it
// also returns the credentials of the funded demo operator.
func openNetwork(cfg config.Config, logger *log.Entry) (ledger.Network, *models.Credentials, error) {
	if cfg.Network == config.NetworkDemo {
		network, creds, err := memnet.NewDemo()
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to start demo network")
		}
		logger.WithField("operator", creds.AccountID).Info("demo network ready")
		return network, &creds, nil
	}

	mirror, err := ledger.NewMirrorClient(ledger.MirrorConfig{
		BaseURL:   cfg.MirrorURL,
		Timeout:   cfg.MirrorTimeout,
		RateLimit: cfg.MirrorRateLimit,
		Burst:     int(cfg.MirrorRateLimit),
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	network, err := ledger.NewHederaNetwork(cfg.Network, mirror, logger)
	if err != nil {
		return nil, nil, err
	}
	return network, nil, nil
}

// startSession restores the stored operator, falling back to the bootstrap
// credentials. Failures leave the wallet disconnected.
func startSession(service *services.WalletService, bootstrap *models.Credentials, logger *log.Entry) {
	restored, err := service.Restore()
	if err != nil {
		logger.WithField("err", err).Warn("failed to restore stored credentials")
	}
	if restored || bootstrap == nil {
		return
	}
	if err := service.SetOperator(bootstrap.AccountID, bootstrap.PrivateKey); err != nil {
		logger.WithField("err", err).Warn("failed to install bootstrap operator")
		return
	}
	logger.WithField("operator", bootstrap.AccountID).Info("operator installed from configuration")
}
