package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/tncsim/config"
	"github.com/kilianp07/tncsim/core/timebin"
)

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "Print the time bins of the configured day with their clock time and period",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		idx, err := timebin.New(cfg.TimeBins)
		if err != nil {
			return err
		}
		return printPeriods(cmd.OutOrStdout(), idx)
	},
}

func init() {
	rootCmd.AddCommand(periodsCmd)
}

func printPeriods(out io.Writer, idx *timebin.Index) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BIN\tCLOCK\tPERIOD")
	for bin := 0; bin < idx.BinsPerDay(); bin++ {
		clock, period, err := idx.PeriodFor(bin)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", bin, timebin.FormatClock(clock), period)
	}
	return w.Flush()
}
