// Command nextdued runs the recurring task generation engine: it drains
// task completion events from Redis, persists successor occurrences to
// SQLite and publishes creation events for downstream subscribers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	nextdue "github.com/NextDue/nextdue-go"
	"github.com/NextDue/nextdue-go/gormstore"
	"github.com/NextDue/nextdue-go/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:           "nextdued",
		Short:         "Recurring task generation engine",
		Long:          "nextdued consumes task completion events and generates the next occurrence of recurring tasks.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configDir)
		},
	}
	cmd.Flags().StringVarP(&configDir, "config-dir", "c", "", "directory containing nextdue.yaml")
	return cmd
}

func run(configDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := nextdue.NewFmtLogger()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}

	db, err := gormstore.Open(cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	engine := nextdue.NewEngine(rdb, gormstore.New(db), nextdue.EngineConfig{
		ConsumeStream: cfg.ConsumeStream,
		PublishStream: cfg.PublishStream,
		Concurrency:   cfg.Concurrency,
		VisibilityTTL: cfg.VisibilityTTL,
		RunTimeout:    cfg.RunTimeout,
		Backoff: nextdue.Backoff{
			MaxAttempts: cfg.BackoffMaxAttempts,
			BaseDelay:   cfg.BackoffBaseDelay,
			Multiplier:  cfg.BackoffMultiplier,
			MaxDelay:    cfg.BackoffMaxDelay,
		},
		SucceededRetention: cfg.SucceededRetention,
		Logger:             log,
	})
	engine.Start()
	defer engine.Stop()

	if cfg.ReportInterval > 0 {
		scheduler := cron.New()
		inbound := nextdue.NewStream(rdb, cfg.ConsumeStream)
		outbound := nextdue.NewStream(rdb, cfg.PublishStream)
		spec := fmt.Sprintf("@every %s", cfg.ReportInterval)
		if _, err := scheduler.AddFunc(spec, func() {
			reportDepths(ctx, log, inbound)
			reportDepths(ctx, log, outbound)
		}); err != nil {
			return fmt.Errorf("schedule report: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Infof("nextdued running: consume=%s publish=%s store=%s", cfg.ConsumeStream, cfg.PublishStream, cfg.StoreDSN)
	<-ctx.Done()
	log.Infof("shutting down")
	return nil
}

// reportDepths logs how many events sit in each state of a stream so
// operators can spot backlogs and growing dead lists.
func reportDepths(ctx context.Context, log nextdue.Logger, s *nextdue.Stream) {
	depths, err := s.Depths(ctx)
	if err != nil {
		log.Warnf("depth report failed for %s: %v", s.Name(), err)
		return
	}
	log.Infof("stream %s: pending=%d active=%d delayed=%d succeeded=%d dead=%d",
		s.Name(),
		depths[nextdue.StatePending], depths[nextdue.StateActive],
		depths[nextdue.StateDelayed], depths[nextdue.StateSucceeded],
		depths[nextdue.StateDead])
}
