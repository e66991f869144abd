package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dexArb/internal/chain"
	"dexArb/internal/config"
	"dexArb/internal/dex"
	"dexArb/internal/engine"
	"dexArb/internal/gas"
	"dexArb/internal/lock"
	"dexArb/internal/metrics"
	"dexArb/internal/settlement"
	"dexArb/internal/state"
	"dexArb/internal/storage"
	"dexArb/internal/storage/postgres"
	"dexArb/internal/subscriber"
	"dexArb/internal/wallet"
)

const feeHistoryBlocks = 10

func runArbitrage(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	assets, err := config.ParseAddresses(cfg.Assets)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	if chainID.Cmp(big.NewInt(cfg.ChainID)) != 0 {
		return fmt.Errorf("chain id mismatch: node %s, configured %d", chainID, cfg.ChainID)
	}

	funding, err := wallet.New(cfg.FundingKey, chainClient)
	if err != nil {
		return err
	}

	journal, closeJournal, err := openJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	resolver := dex.NewResolver(chainClient, dex.ResolverConfig{
		FactoryV2: common.HexToAddress(cfg.FactoryV2),
		FactoryV3: common.HexToAddress(cfg.FactoryV3),
		Base:      common.HexToAddress(cfg.BaseAsset),
		FeeTiers:  cfg.FeeTiers,
	})
	prices := state.NewPriceState()
	subCfg := subscriber.Config{
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		BackfillBlocks: cfg.BackfillBlocks,
		BatchSize:      cfg.BatchSize,
	}
	sub := subscriber.New(subCfg, chainClient, chainClient, resolver, prices, m, logger)
	sub.EnableBackfill(chainClient)

	contract := settlement.NewContract(common.HexToAddress(cfg.Settlement), chainID, chainClient, funding)
	oracle := gas.NewRPCOracle(chainClient, feeHistoryBlocks, logger)

	eng := engine.New(engine.Config{
		Assets:             assets,
		FundingAmount:      cfg.FundingAmount,
		GasTier:            cfg.GasTier,
		GasLimitMultiplier: cfg.GasLimitMultiplier,
		Deadline:           cfg.Deadline,
		SettleDelay:        cfg.SettleDelay,
		LockTTL:            cfg.LockTTL,
		DryRun:             cfg.DryRun,
	}, prices, contract, oracle, funding,
		engine.WithJournal(journal),
		engine.WithLocker(locker),
		engine.WithMetrics(m),
		engine.WithLogger(logger),
	)

	logger.Info("arbitrage start",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("funding", funding.Address().Hex()),
		zap.String("settlement", cfg.Settlement),
		zap.Int("assets", len(assets)),
		zap.String("funding_amount", cfg.FundingAmount.String()),
		zap.String("gas_tier", string(cfg.GasTier)),
		zap.Bool("dry_run", cfg.DryRun),
	)

	g, gctx := errgroup.WithContext(ctx)

	if err := sub.SubscribeAll(gctx, assets); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	heads := subscriber.WatchHeads(gctx, chainClient, subCfg, logger)

	g.Go(func() error {
		return eng.Run(gctx, heads)
	})
	g.Go(func() error {
		sub.Wait()
		return nil
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.MetricsAddr, reg, logger)
		})
	}

	err = g.Wait()
	logger.Info("arbitrage stopped")
	return err
}

func openJournal(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Storage, func(), error) {
	var sinks storage.Multi
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	switch {
	case cfg.Journal == "":
	case cfg.JournalRotate:
		sinks = append(sinks, storage.NewDailyJsonlStorage(cfg.Journal))
	default:
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Journal))
	}
	if cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, closeAll, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, store)
	}

	if len(sinks) == 0 {
		logger.Warn("decision journal disabled")
		return storage.Nop{}, closeAll, nil
	}
	return sinks, closeAll, nil
}

func openLocker(ctx context.Context, cfg config.Config) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, func() {}, fmt.Errorf("connect redis: %w", err)
	}
	return lock.NewRedis(rdb), func() { _ = rdb.Close() }, nil
}
