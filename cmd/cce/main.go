// Package main is the entrypoint for the cce CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/continuity-labs/cce/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "cce",
		Short: "Context Continuity Engine query server",
		Long:  "cce — query and management front end for the Context Continuity Engine's activity history.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&config.ConfigOverride, "config", "", "Path to engine config.toml")

	root.AddCommand(versionCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(recentCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(predictCmd())
	root.AddCommand(suggestCmd())
	root.AddCommand(relatedCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(contextsCmd())
	root.AddCommand(cleanupCmd())
	root.AddCommand(privacyCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cce: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cce version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cce %s\n", Version)
		},
	}
}

func configCmd() *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or generate the engine configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if generate {
				if err := config.Generate(cfg.DataDir()); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", cfg.DataDir()+"/config.toml")
				return nil
			}
			fmt.Printf("data dir:        %s\n", cfg.DataDir())
			fmt.Printf("database:        %s\n", cfg.DatabasePath())
			fmt.Printf("collection:      %s\n", cfg.Vector.Collection)
			fmt.Printf("embed provider:  %s (%s)\n", cfg.Vector.Provider, cfg.Vector.Model)
			fmt.Printf("graph:           max_nodes=%d decay=%.2f max_depth=%d\n",
				cfg.Graph.MaxNodes, cfg.Graph.DecayFactor, cfg.GraphDepthCeiling())
			fmt.Printf("prediction:      window=%dh floor=%.2f\n",
				cfg.Prediction.PredictionWindow, cfg.MinConfidence())
			fmt.Printf("request timeout: %s\n", cfg.RequestTimeout())
			fmt.Printf("blacklist:       %s\n", cfg.BlacklistPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&generate, "generate", false, "Write a default config.toml to the data dir")
	return cmd
}
