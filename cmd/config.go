package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/tncsim/config"
)

var secretKeys = map[string]bool{"password": true, "token": true, "dsn": true}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration after defaults and environment overrides",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return printConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// printConfig renders cfg as YAML using its json keys, with secrets masked.
func printConfig(out io.Writer, cfg *config.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}
	redact(tree)
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return err
	}
	return enc.Close()
}

func redact(v any) {
	switch n := v.(type) {
	case map[string]any:
		for k, child := range n {
			if s, ok := child.(string); ok && secretKeys[k] && s != "" {
				n[k] = "***"
				continue
			}
			redact(child)
		}
	case []any:
		for _, child := range n {
			redact(child)
		}
	}
}
