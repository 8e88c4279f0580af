package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics for all engine stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			dbStats, dbErr := eng.db.GetStats()
			graphStats, graphErr := eng.graph.GetStats()
			privStats := eng.filter.GetStats()

			if jsonOut {
				out := map[string]any{}
				if dbErr == nil {
					out["activities"] = dbStats
				}
				if graphErr == nil {
					out["graph"] = graphStats
				}
				out["privacy"] = privStats
				return printJSON(out)
			}

			if dbErr != nil {
				fmt.Printf("activity store: unavailable (%v)\n", dbErr)
			} else {
				fmt.Printf("activities: %d  contexts: %d  embedded: %d\n",
					dbStats.TotalActivities, dbStats.TotalContexts, dbStats.EmbeddedRows)
			}
			if graphErr != nil {
				fmt.Printf("graph: unavailable (%v)\n", graphErr)
			} else {
				fmt.Printf("graph: %d nodes, %d edges, avg degree %.2f\n",
					graphStats.TotalNodes, graphStats.TotalEdges, graphStats.AvgDegree)
			}
			fmt.Printf("privacy: %d apps, %d directories blacklisted\n",
				privStats.BlacklistedApps, privStats.BlacklistedDirectories)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func cleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove activity data older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("days must be non-negative")
			}
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			deleted, err := eng.db.Cleanup(days)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d records older than %d days.\n", deleted, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "Retain data for this many days")
	return cmd
}

func privacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "privacy",
		Short: "Manage the privacy blacklist",
	}
	cmd.AddCommand(privacyListCmd())
	cmd.AddCommand(privacyEditCmd("add"))
	cmd.AddCommand(privacyEditCmd("remove"))
	return cmd
}

func privacyListCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the current blacklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			snap := eng.filter.Snapshot()
			if jsonOut {
				return printJSON(snap)
			}
			printGroup("Apps", snap.Apps)
			printGroup("Directories", snap.Directories)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func privacyEditCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <app|directory> <value>",
		Short: action + " a blacklist entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			snap, err := eng.filter.Edit(args[0], args[1], action)
			if err != nil {
				return err
			}
			fmt.Printf("%sed %s blacklist entry: %s\n", action, args[0], args[1])
			printGroup("Apps", snap.Apps)
			printGroup("Directories", snap.Directories)
			return nil
		},
	}
}
