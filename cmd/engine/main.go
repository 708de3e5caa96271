package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "tickscope",
		Short:        "Uniswap v3 tick-level accounting engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay decoded pool events into aggregates",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("rpc", "", "Ethereum RPC URL (optional, enables fee-growth refresh)")
	replayCmd.Flags().String("in", "", "input typed events JSONL")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional, enables persistence)")
	replayCmd.Flags().String("factory", "", "factory contract address")
	replayCmd.Flags().StringSlice("excluded-pools", nil, "pool addresses whose swaps are skipped (comma-separated)")
	replayCmd.Flags().Int32("max-tick-crossings", 100, "max tick spacings resolved per swap")
	replayCmd.Flags().Int("batch-size", 1000, "events per DB flush")
	replayCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	replayCmd.Flags().String("resume-from", "", "reprocess from timestamp (unix seconds or RFC3339)")
	replayCmd.Flags().String("wrapped-native", "", "wrapped native token address")
	replayCmd.Flags().StringSlice("stablecoins", nil, "stablecoin addresses (comma-separated)")
	replayCmd.Flags().StringSlice("whitelist", nil, "whitelisted token addresses (comma-separated)")
	replayCmd.Flags().String("reference-pool", "", "stable/native pool the ETH price is read from")
	replayCmd.Flags().Int("max-retries", 5, "maximum RPC retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
