package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/scheduler"
)

var scheduleRunNow bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run enrichment and rescoring at the configured times of day",
	RunE: func(cmd *cobra.Command, args []string) error {
		lock, err := scheduler.Acquire(cfg.Scheduler.LockFile)
		if errors.Is(err, scheduler.ErrLocked) {
			zap.L().Info("scheduler already running elsewhere, exiting", zap.String("lock", cfg.Scheduler.LockFile))
			return nil
		}
		if err != nil {
			return err
		}
		defer lock.Release() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "schedule", true)
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := scheduler.New(cfg.Scheduler.Times, cfg.Scheduler.Timezone, env.Orchestrator, env.Scoring, cfg.Scoring.RescoreBatchSize)
		if err != nil {
			return err
		}
		if scheduleRunNow {
			s.Run(ctx)
		}

		s.Start()
		zap.L().Info("scheduler started",
			zap.Strings("times", cfg.Scheduler.Times),
			zap.String("timezone", cfg.Scheduler.Timezone),
			zap.String("lock", lock.Path()),
			zap.Times("next", s.Entries()),
		)

		<-ctx.Done()
		zap.L().Info("scheduler stopping")
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Stop(stopCtx)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "now", false, "run one cycle immediately before waiting")
	rootCmd.AddCommand(scheduleCmd)
}
