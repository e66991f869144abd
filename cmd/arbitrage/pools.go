package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"dexArb/internal/chain"
	"dexArb/internal/config"
	"dexArb/internal/dex"
)

func runPools(cmd *cobra.Command, _ []string) error {
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

	if err := cfg.ValidateResolve(); err != nil {
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

	resolver := dex.NewResolver(chainClient, dex.ResolverConfig{
		FactoryV2: common.HexToAddress(cfg.FactoryV2),
		FactoryV3: common.HexToAddress(cfg.FactoryV3),
		Base:      common.HexToAddress(cfg.BaseAsset),
		FeeTiers:  cfg.FeeTiers,
	})
	tokens := dex.NewTokenMetaCache()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tSYMBOL\tV2 PAIR\tV3 POOL\tFEE")
	for _, asset := range assets {
		symbol := "?"
		if meta, err := tokens.Lookup(ctx, chainClient, asset, logger); err == nil && meta.Symbol != "" {
			symbol = meta.Symbol
		}
		v2, v3, err := resolver.Resolve(ctx, asset)
		if errors.Is(err, dex.ErrPoolNotFound) {
			fmt.Fprintf(w, "%s\t%s\tmissing\tmissing\t-\n", asset.Hex(), symbol)
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve %s: %w", asset.Hex(), err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f%%\n", asset.Hex(), symbol, v2.Address.Hex(), v3.Address.Hex(), float64(v3.Fee)/10_000)
	}
	return w.Flush()
}
