package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tickscope/internal/chain"
	"tickscope/internal/config"
	"tickscope/internal/dispatch"
	"tickscope/internal/engine"
	"tickscope/internal/pricing"
	"tickscope/internal/rollup"
	"tickscope/internal/state"
	"tickscope/internal/storage"
	"tickscope/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
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

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.FactoryAddress == "" {
		return fmt.Errorf("factory address is required")
	}

	resumeFrom, err := config.ParseTimestamp(cfg.ResumeFrom)
	if err != nil {
		return fmt.Errorf("parse resume-from: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bridge engine.Bridge = dispatch.NullBridge{}
	var decimalsSource dispatch.DecimalsSource
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		caller := chain.NewPoolCaller(chainClient, cfg.MaxRetries, cfg.RetryBackoff)
		bridge = caller
		decimalsSource = caller
	}

	var db *postgres.Store
	if cfg.PGDSN != "" {
		db, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
	}

	var stateStore dispatch.StateStore
	switch {
	case cfg.StateFile != "":
		stateStore = &dispatch.FileStateStore{Path: cfg.StateFile}
	case db != nil:
		stateStore = &dispatch.DBStateStore{Store: db, Name: "replay"}
	}

	entities := state.NewStore()
	rollups := rollup.NewRegistry(entities)

	pricer := pricing.NewWhitelistPricer(pricing.Config{
		WrappedNative: cfg.WrappedNative,
		Stablecoins:   cfg.Stablecoins,
		Whitelist:     cfg.Whitelist,
		ReferencePool: cfg.ReferencePool,
	}, entities, logger)

	eng := engine.New(engine.Config{
		FactoryAddress:   cfg.FactoryAddress,
		ExcludedPools:    cfg.ExcludedPools,
		MaxTickCrossings: cfg.MaxTickCrossings,
	}, entities, bridge, pricer, rollups, logger)

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		FactoryAddress: cfg.FactoryAddress,
		BatchSize:      cfg.BatchSize,
		ResumeFrom:     resumeFrom,
		StateStore:     stateStore,
		PoolRegistry:   pricer,
	}, eng, entities, rollups, db, decimalsSource, logger)

	source, err := storage.NewEventReader(cfg.Input)
	if err != nil {
		return err
	}
	defer source.Close()

	logger.Info("replay start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("factory", cfg.FactoryAddress),
		zap.Bool("rpc_enabled", cfg.RPCURL != ""),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("resume_from", resumeFrom),
	)

	return dispatcher.Run(ctx, source)
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
