// Command treasury reconciles the DAO treasury balances across public
// indexers and serves the latest snapshot over HTTP.
//
// Usage:
//
//	treasury --config config.yaml
//	treasury --setup (interactive wizard, writes config.gen.yaml)
//
// Optional environment variables (also read from .env):
//
//	SHYFT_API_KEY, HELIUS_API_KEY, ETHERSCAN_API_KEY, ALCHEMY_ETH_API_KEY,
//	COINGECKO_API_KEY, BINANCE_API_KEY, BYBIT_API_KEY, TREASURY_PROXY_URL
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/vadiminshakov/treasury/config"
	"github.com/vadiminshakov/treasury/internal/app"
	"github.com/vadiminshakov/treasury/internal/setup"
	"go.uber.org/zap"
)

func main() {
	runSetup := flag.Bool("setup", false, "run the configuration wizard")

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if *runSetup {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
		if cfg, err = config.Resolve(path); err != nil {
			log.Fatal(err)
		}
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	treasury, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build treasury service", zap.Error(err))
	}
	defer treasury.Close()

	logger.Info("treasury started",
		zap.Strings("btc", cfg.BTCAddresses),
		zap.String("eth", cfg.ETHAddress),
		zap.String("sol", cfg.SOLAddress),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
	)

	if err := treasury.Run(ctx); err != nil {
		logger.Error("treasury stopped with error", zap.Error(err))
		return
	}
	logger.Info("treasury stopped")
}
