package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rescoreBatchSize int

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute scores for every listing with the current weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		size := rescoreBatchSize
		if size <= 0 {
			size = cfg.Scoring.RescoreBatchSize
		}
		report, err := env.Scoring.RescoreAll(ctx, size)
		if err != nil {
			return err
		}
		zap.L().Info("rescore complete",
			zap.Int("total", report.Total),
			zap.Int("scored", report.Scored),
			zap.Int("failed_batches", report.FailedBatches),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "rescored %d/%d listings (%d failed batches)\n", report.Scored, report.Total, report.FailedBatches)
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score <listing-id>",
	Short: "Score one listing and print the breakdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "score: invalid listing id %q", args[0])
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		b, err := env.Scoring.ScoreListing(ctx, id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	},
}

func init() {
	rescoreCmd.Flags().IntVar(&rescoreBatchSize, "batch-size", 0, "listings per batch (default from config)")
	rootCmd.AddCommand(rescoreCmd, scoreCmd)
}
