package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"affiliate-payouts/internal/app"
	"affiliate-payouts/internal/config"
	"affiliate-payouts/internal/logger"
	"affiliate-payouts/internal/model"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "payoutctl",
		Short:         "Operator commands for affiliate payouts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads config and wires the application for one command run.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, cfg *config.Config) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg, logger.NewWithOutput(cfg.Log, os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, cfg)
}

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Select eligible commissions and submit one payout batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			minAmount, _ := cmd.Flags().GetString("min-amount")

			return withApp(cmd, func(ctx context.Context, a *app.App, cfg *config.Config) error {
				minCents := model.DecimalToCents(cfg.Policy.MinPayout)
				if minAmount != "" {
					var err error
					if minCents, err = model.ParseAmount(minAmount); err != nil {
						return err
					}
				}

				batch, err := a.Services.Payout.ProcessPayouts(ctx, minCents)
				if errors.Is(err, model.ErrNoEligibleCommissions) {
					fmt.Println("No eligible commissions")
					return nil
				}
				if batch != nil {
					printJSON(batch)
				}
				return err
			})
		},
	}

	cmd.Flags().String("min-amount", "", "Payout threshold per affiliate (default from policy)")

	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [batch-id]",
		Short: "Poll PayPal for one batch, or for every open batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, _ *config.Config) error {
				if len(args) == 1 {
					batch, err := a.Services.Payout.Reconcile(ctx, args[0])
					if err != nil {
						return err
					}
					printJSON(batch)
					return nil
				}

				n, err := a.Services.Payout.ReconcileOpen(ctx)
				fmt.Printf("Reconciled %d open batch(es)\n", n)
				return err
			})
		},
	}
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show program totals, or one affiliate's stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			affiliateID, _ := cmd.Flags().GetString("affiliate")

			return withApp(cmd, func(ctx context.Context, a *app.App, _ *config.Config) error {
				if affiliateID != "" {
					stats, err := a.Services.Report.AffiliateStats(ctx, affiliateID)
					if err != nil {
						return err
					}
					printJSON(stats)
					return nil
				}

				stats, err := a.Services.Report.AdminStats(ctx)
				if err != nil {
					return err
				}
				printJSON(stats)
				return nil
			})
		},
	}

	cmd.Flags().StringP("affiliate", "a", "", "Affiliate id")

	return cmd
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
