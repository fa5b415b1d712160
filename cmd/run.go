package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/tncsim/app"
	"github.com/kilianp07/tncsim/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate one day and write the configured outputs",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d trips, %d chains, %d legs, %d vehicles in %s\n",
		res.RunID, len(res.TripIDs), len(res.Chains), len(res.Legs), len(res.Vehicles), res.Elapsed)
	return err
}
