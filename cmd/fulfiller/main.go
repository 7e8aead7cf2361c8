// Package main provides the standalone fulfillment worker entry point.
// It polls the randomness oracle and resolves pending premium boosts.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boost-engine/internal/adapter"
	"github.com/boost-engine/internal/config"
	"github.com/boost-engine/internal/logging"
	"github.com/boost-engine/internal/service"
	"github.com/boost-engine/internal/storage"
	"github.com/boost-engine/internal/worker"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	if cfg.Chain.UseLocalOracle {
		// The local oracle keeps request state in the server process;
		// a standalone fulfiller would never see its requests.
		logger.Fatal("The standalone fulfiller requires a chain oracle; unset USE_LOCAL_ORACLE")
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	ctx := context.Background()

	key, err := crypto.HexToECDSA(cfg.Chain.OperatorKey)
	if err != nil {
		logger.WithError(err).Fatal("Invalid CHAIN_OPERATOR_KEY")
	}

	provider, err := adapter.NewRPCProvider(cfg.Chain.RPCPrimary, cfg.Chain.RPCSecondary)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create RPC provider")
	}

	client, err := ethclient.DialContext(ctx, provider.CurrentURL())
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to chain RPC")
	}

	merit, err := adapter.NewEthMeritManager(ctx, client, key, common.HexToAddress(cfg.Chain.MeritManagerAddress))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create merit manager adapter")
	}
	oracle, err := adapter.NewEthRandomOracle(ctx, client, key, common.HexToAddress(cfg.Chain.RandomOracleAddress))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create randomness oracle adapter")
	}

	pendingRepo := storage.NewPendingRequestRepository(postgres)
	eventLog := storage.NewBoostEventLog(clickhouse)
	resolver := service.NewPremiumResolver(pendingRepo, merit, eventLog)

	fulfillmentWorker, err := worker.NewFulfillmentWorker(&worker.FulfillmentWorkerConfig{
		Pending:      pendingRepo,
		Oracle:       oracle,
		Resolver:     resolver,
		PollInterval: cfg.Worker.PollInterval,
		StaleAge:     cfg.Worker.StaleAge,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create fulfillment worker")
	}

	if err := fulfillmentWorker.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start fulfillment worker")
	}
	logger.Info("Fulfillment worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down fulfillment worker...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := fulfillmentWorker.Stop(stopCtx); err != nil {
		logger.WithError(err).Fatal("Fulfillment worker forced to stop")
	}

	logger.Info("Fulfillment worker exited")
}
