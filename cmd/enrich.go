package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
)

var (
	enrichAll     bool
	enrichPending bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [listing-id]",
	Short: "Geocode, enrich and score listings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !enrichAll && !enrichPending {
			return eris.New("enrich: pass a listing id, --all or --pending")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "enrich", true)
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return eris.Wrapf(err, "enrich: invalid listing id %q", args[0])
			}
			run, err := env.Orchestrator.Enrich(ctx, id)
			if run != nil {
				for _, p := range run.Phases {
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-9s %6dms %s\n", p.Name, p.Status, p.Duration, p.Error)
				}
			}
			return err
		}

		filter := store.ListingFilter{OnlyPending: enrichPending || (!enrichAll && cfg.Enrichment.OnlyPending)}
		report, err := env.Orchestrator.EnrichAll(ctx, filter)
		if err != nil {
			return err
		}
		zap.L().Info("enrich complete",
			zap.Int("total", report.Total),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "enriched %d/%d listings (%d failed)\n", report.Succeeded, report.Total, report.Failed)
		return nil
	},
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichAll, "all", false, "enrich every listing")
	enrichCmd.Flags().BoolVar(&enrichPending, "pending", false, "enrich only listings missing coordinates or scores")
	rootCmd.AddCommand(enrichCmd)
}
