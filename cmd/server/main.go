// Package main provides the API server entry point for the boost engine.
package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boost-engine/internal/adapter"
	"github.com/boost-engine/internal/api"
	"github.com/boost-engine/internal/auth"
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
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging
	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

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

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	ctx := context.Background()

	if err := clickhouse.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to prepare ClickHouse schema")
	}

	// Initialize repositories
	recordRepo := storage.NewBoostRecordRepository(postgres)
	pendingRepo := storage.NewPendingRequestRepository(postgres)
	settingsRepo := storage.NewSettingsRepository(postgres)
	eventLog := storage.NewBoostEventLog(clickhouse)
	signatureStore := storage.NewRedisSignatureStore(redis)

	// Initialize collaborator adapters
	collaborators, localOracle := buildCollaborators(ctx, cfg, logger)

	verifier := auth.NewVerifier(signatureStore, cfg.Engine.SignatureTolerance)

	boostService := service.NewBoostService(
		service.Config{
			DefaultSigner:    common.HexToAddress(cfg.Engine.FrontendSigner),
			GraceDayInterval: 30,
		},
		recordRepo, pendingRepo, settingsRepo, eventLog,
		verifier, collaborators.minter,
		collaborators.merit, collaborators.treasury, collaborators.holdings, collaborators.oracle,
	)
	if repointer, ok := collaborators.minter.(*adapter.EthBadgeMinter); ok {
		boostService.SetBadgeNFTChangeHook(repointer.SetContract)
	}
	boostService.SetQueryCache(storage.NewQueryCache(redis, 30*time.Second))

	resolver := service.NewPremiumResolver(pendingRepo, collaborators.merit, eventLog)

	// With the local oracle, fulfillment state lives in this process,
	// so the worker has to run here too.
	var fulfillmentWorker *worker.FulfillmentWorker
	if localOracle != nil {
		fulfillmentWorker, err = worker.NewFulfillmentWorker(&worker.FulfillmentWorkerConfig{
			Pending:      pendingRepo,
			Oracle:       collaborators.oracle,
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
		logger.Info("In-process fulfillment worker started for local oracle")
	}

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RequestsPerSec:  cfg.Server.RequestsPerSec,
		ManagerKey:      cfg.Engine.ManagerKey,
		OracleKey:       cfg.Engine.OracleKey,
	}

	server := api.NewServer(serverConfig, boostService, resolver)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if fulfillmentWorker != nil {
		if err := fulfillmentWorker.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Fulfillment worker stop failed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// collaboratorSet bundles the engine's external collaborators
type collaboratorSet struct {
	merit    adapter.MeritManager
	treasury adapter.Treasury
	minter   adapter.BadgeMinter
	holdings adapter.HoldingChecker
	oracle   adapter.RandomnessOracle
}

// buildCollaborators wires either the chain-backed collaborators or
// the local development stand-ins. The second return value is non-nil
// when the local oracle is in use.
func buildCollaborators(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*collaboratorSet, *adapter.LocalRandomOracle) {
	if cfg.Chain.UseLocalOracle {
		logger.Warn("Using local collaborators - development mode only")
		local := adapter.NewLocalRandomOracle(5 * time.Second)
		return &collaboratorSet{
			merit:    adapter.NewLocalMeritManager(),
			treasury: adapter.NewLocalTreasury(),
			minter:   adapter.NewLocalBadgeMinter(),
			holdings: adapter.NewLocalHoldingChecker(),
			oracle:   local,
		}, local
	}

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
	treasury, err := adapter.NewEthTreasury(ctx, client, key, common.HexToAddress(cfg.Chain.TreasuryAddress))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create treasury adapter")
	}
	minter, err := adapter.NewEthBadgeMinter(ctx, client, key, common.HexToAddress(cfg.Chain.BadgeNFTAddress))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create badge minter adapter")
	}
	holdings, err := adapter.NewEthHoldingChecker(client, big.NewInt(cfg.Chain.HoldingThreshold))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create holding checker")
	}
	oracle, err := adapter.NewEthRandomOracle(ctx, client, key, common.HexToAddress(cfg.Chain.RandomOracleAddress))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create randomness oracle adapter")
	}

	logger.WithField("rpc", provider.CurrentURL()).Info("Chain collaborators initialized")

	return &collaboratorSet{
		merit:    merit,
		treasury: treasury,
		minter:   minter,
		holdings: holdings,
		oracle:   oracle,
	}, nil
}
