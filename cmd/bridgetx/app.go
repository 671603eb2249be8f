package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc"
	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/bridgetx/internal/config"
	"github.com/rovshanmuradov/bridgetx/internal/license"
	"github.com/rovshanmuradov/bridgetx/internal/logger"
	"github.com/rovshanmuradov/bridgetx/internal/transaction"
	"github.com/rovshanmuradov/bridgetx/internal/wallet"
)

// app holds everything a submission needs.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	logBuf   *logger.LogBuffer
	pool     *rpc.Pool
	client   *solbc.Client
	registry *prometheus.Registry
	metrics  *transaction.Metrics
}

// newApp loads the configuration and builds the logger and the network client.
// With a log buffer the console is left to the progress view.
func newApp(opts *globalOptions, logBuf *logger.LogBuffer) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.DebugLogging = true
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Debug = cfg.DebugLogging

	var log *zap.Logger
	if logBuf != nil {
		log, err = logger.NewWithBuffer(logCfg, logBuf)
	} else {
		log, err = logger.New(logCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := rpc.NewPool(cfg.RPCList, log,
		rpc.WithRetry(uint(cfg.RPCRetries), rpc.RetryDelay),
		rpc.WithTimeout(cfg.RPCTimeoutDuration()),
	)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	return &app{
		cfg:      cfg,
		logger:   log,
		logBuf:   logBuf,
		pool:     pool,
		client:   solbc.NewClient(pool, clientConfig(cfg), log),
		registry: reg,
		metrics:  transaction.NewMetrics(reg),
	}, nil
}

func clientConfig(cfg *config.Config) solbc.Config {
	return solbc.Config{
		ConfirmPollInterval: cfg.ConfirmPollDuration(),
		MinPriorityFee:      cfg.MinPriorityFee,
		MaxPriorityFee:      cfg.MaxPriorityFee,
	}
}

func submitterConfig(cfg *config.Config) transaction.Config {
	return transaction.Config{
		MaxSimulationAttempts:      cfg.SimulationAttempts,
		SimulationRetryDelay:       cfg.SimulationRetryDelayDuration(),
		ResendInterval:             cfg.ResendIntervalDuration(),
		DefaultComputeUnits:        cfg.DefaultComputeUnits,
		ComputeUnitHeadroom:        cfg.ComputeUnitHeadroom,
		FeePercentile:              cfg.FeePercentile,
		Commitment:                 cfg.CommitmentType(),
		RetryableSimulationMarkers: cfg.RetryableMarkers,
		MaxResends:                 cfg.MaxResends,
	}
}

// checkLicense runs the Keygen gate when it is configured.
func (a *app) checkLicense(ctx context.Context) error {
	s := license.Settings{
		Account: a.cfg.KeygenAccount,
		Product: a.cfg.KeygenProduct,
		Token:   a.cfg.KeygenToken,
		License: a.cfg.License,
	}
	if !s.Enabled() {
		return license.Gate(ctx, s, nil, a.logger)
	}
	return license.Gate(ctx, s, license.NewKeygenValidator(s, a.logger), a.logger)
}

// ready runs the license gate and marks unreachable RPC nodes inactive.
func (a *app) ready(ctx context.Context) error {
	if err := a.checkLicense(ctx); err != nil {
		return err
	}
	if err := a.pool.CheckHealth(ctx); err != nil {
		return fmt.Errorf("rpc health check: %w", err)
	}
	return nil
}

// loadWallet picks the fee payer: keyring entry, then wallets file, then keypair file.
func (a *app) loadWallet() (*wallet.Wallet, error) {
	cfg := a.cfg
	switch {
	case cfg.KeyringWallet != "":
		ks, err := wallet.OpenKeyring(wallet.KeyringOptions{FileDir: cfg.KeyringDir})
		if err != nil {
			return nil, err
		}
		return wallet.LoadFromKeystore(ks, cfg.KeyringWallet)
	case cfg.WalletsFile != "":
		return pickWallet(cfg.WalletsFile, cfg.WalletName)
	case cfg.KeypairPath != "":
		return wallet.LoadKeypairFile(cfg.KeypairPath)
	default:
		return nil, errors.New("no wallet configured: set keyring_wallet, wallets_file or keypair_path")
	}
}

func pickWallet(path, name string) (*wallet.Wallet, error) {
	wallets, err := wallet.LoadWallets(path)
	if err != nil {
		return nil, err
	}
	if name != "" {
		w, ok := wallets[name]
		if !ok {
			return nil, fmt.Errorf("wallet %q not found in %s", name, path)
		}
		return w, nil
	}
	if len(wallets) != 1 {
		return nil, fmt.Errorf("%s holds %d wallets, set wallet_name", path, len(wallets))
	}
	var only *wallet.Wallet
	for _, w := range wallets {
		only = w
	}
	return only, nil
}

// serveMetrics exposes the registry until ctx is done.
func (a *app) serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.logger.Info("Serving metrics", zap.String("addr", addr))
}

func (a *app) close() {
	_ = logger.Sync(a.logger)
}
