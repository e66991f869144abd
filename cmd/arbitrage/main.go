package main

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("load .env: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:          "arbitrage",
		Short:        "Two-venue DEX spread arbitrage",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Track swap prices and settle spreads that cover gas",
		RunE:  runArbitrage,
	}

	addCommonFlags(runCmd)
	runCmd.Flags().String("settlement", "", "settlement contract address")
	runCmd.Flags().String("funding-key", "", "funding private key (hex)")
	runCmd.Flags().String("funding-amount", "1", "base asset attached to each execution")
	runCmd.Flags().Int64("chain-id", 1, "expected chain id")
	runCmd.Flags().String("gas-tier", "fast", "gas tier (low, standard, fast, instant)")
	runCmd.Flags().String("gas-limit-multiplier", "1.2", "gas limit over the estimate")
	runCmd.Flags().Duration("settle-delay", 500*time.Millisecond, "wait after a new head before scanning")
	runCmd.Flags().Duration("deadline", 60*time.Second, "execution deadline after submission time")
	runCmd.Flags().Bool("dry-run", false, "estimate and log but never submit")
	runCmd.Flags().String("journal", "./data/decisions.jsonl", "decision journal JSONL path (empty disables)")
	runCmd.Flags().Bool("journal-rotate", false, "start a new journal file each UTC day")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the decision journal")
	runCmd.Flags().String("redis-addr", "", "Redis address for the execution lock")
	runCmd.Flags().String("redis-password", "", "Redis password")
	runCmd.Flags().Duration("lock-ttl", 2*time.Minute, "execution lock TTL")
	runCmd.Flags().String("metrics-addr", ":9108", "metrics listen address (empty disables)")
	runCmd.Flags().Uint64("backfill-blocks", 1000, "recent blocks of swaps replayed before subscribing (0 disables)")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per backfill query")
	runCmd.Flags().Int("max-retries", 5, "maximum resubscribe attempts before backing off")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	root.AddCommand(runCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "Resolve and print the venue pools of each tracked asset",
		RunE:  runPools,
	}

	addCommonFlags(poolsCmd)

	root.AddCommand(poolsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "websocket RPC URL")
	cmd.Flags().Duration("rpc-timeout", 15*time.Second, "timeout for unary RPC calls")
	cmd.Flags().String("factory-v2", "", "v2 factory address")
	cmd.Flags().String("factory-v3", "", "v3 factory address")
	cmd.Flags().String("base-asset", "", "base asset address")
	cmd.Flags().StringSlice("assets", nil, "tracked asset addresses (comma-separated)")
	cmd.Flags().String("fee-tiers", "500,3000", "v3 fee tiers in lookup order")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
