package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/tncsim/config"
	"github.com/kilianp07/tncsim/infra/store"
)

var runsDB string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs saved in the SQLite output",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := runsDB
		if path == "" {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path = cfg.Output.SQLitePath
		}
		if path == "" {
			return fmt.Errorf("no sqlite database: set output.sqlite_path or --db")
		}
		st, err := store.NewSQLiteStore(path)
		if err != nil {
			return err
		}
		defer st.Close()
		runs, err := st.Runs(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range runs {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsDB, "db", "", "SQLite database, defaults to output.sqlite_path")
	rootCmd.AddCommand(runsCmd)
}
