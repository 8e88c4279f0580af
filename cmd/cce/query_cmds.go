package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/continuity-labs/cce/internal/privacy"
	"github.com/continuity-labs/cce/internal/store"
)

func recentCmd() *cobra.Command {
	var (
		hours   int
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recently tracked activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			activities, err := eng.db.RecentActivities(hours, limit)
			if err != nil {
				return err
			}
			activities = applyFilter(eng, activities)

			if jsonOut {
				return printJSON(activities)
			}
			if len(activities) == 0 {
				fmt.Println("No activities in the selected window.")
				return nil
			}
			for _, a := range activities {
				ts := time.Unix(a.Timestamp, 0).Format("2006-01-02 15:04")
				line := fmt.Sprintf("%s  %-20s %s", ts, a.AppName, a.WindowTitle)
				if a.FilePath != "" {
					line += "  (" + a.FilePath + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "Look back this many hours")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max activities to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search across tracked activities",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("query must not be empty")
			}

			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			vec, err := eng.embed.GetQueryEmbedding(query)
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}
			results, err := eng.db.SearchSimilar(vec, limit)
			if err != nil {
				return err
			}

			kept := results[:0]
			for _, r := range results {
				if eng.filter.Allows(r.AppName, r.FilePath) {
					r.WindowTitle = privacy.SanitizeText(r.WindowTitle)
					kept = append(kept, r)
				}
			}
			results = kept

			if jsonOut {
				return printJSON(results)
			}
			if len(results) == 0 {
				fmt.Println("No matching activities.")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%.3f  %-20s %s\n", r.Score, r.AppName, r.WindowTitle)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Max results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func predictCmd() *cobra.Command {
	var (
		maxResults int
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "predict <activity description>",
		Short: "Predict relevant context for an activity description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			predictions, err := eng.predict.PredictContext(strings.Join(args, " "), maxResults)
			if err != nil {
				return err
			}

			kept := predictions[:0]
			for _, p := range predictions {
				if eng.filter.Allows(p.AppName, p.FilePath) {
					p.WindowTitle = privacy.SanitizeText(p.WindowTitle)
					kept = append(kept, p)
				}
			}
			predictions = kept

			if jsonOut {
				return printJSON(predictions)
			}
			if len(predictions) == 0 {
				fmt.Printf("No predictions above the %.2f confidence floor.\n", eng.predict.MinConfidence())
				return nil
			}
			for _, p := range predictions {
				fmt.Printf("%.3f  %-20s %s\n", p.Confidence, p.AppName, p.WindowTitle)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 5, "Max predictions")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func suggestCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "suggest <activity description>",
		Short: "Get actionable context suggestions for an activity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			suggestions, err := eng.predict.GetSuggestions(strings.Join(args, " "))
			if err != nil {
				return err
			}

			files := suggestions.Files[:0]
			for _, f := range suggestions.Files {
				if eng.filter.AllowsPath(f) {
					files = append(files, f)
				}
			}
			suggestions.Files = files
			apps := suggestions.Apps[:0]
			for _, a := range suggestions.Apps {
				if eng.filter.AllowsApp(a) {
					apps = append(apps, a)
				}
			}
			suggestions.Apps = apps

			if jsonOut {
				return printJSON(suggestions)
			}
			printGroup("Files", suggestions.Files)
			printGroup("Apps", suggestions.Apps)
			printGroup("Next actions", suggestions.NextActions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func relatedCmd() *cobra.Command {
	var (
		maxDepth int
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "related <activity-id>",
		Short: "Show activities related through the temporal graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if ceiling := eng.cfg.GraphDepthCeiling(); maxDepth > ceiling {
				maxDepth = ceiling
			}
			if _, err := eng.db.GetActivity(args[0]); err != nil {
				return fmt.Errorf("unknown activity: %s", args[0])
			}
			related, err := eng.graph.Related(args[0], maxDepth)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(related)
			}
			if len(related) == 0 {
				fmt.Println("No related activities.")
				return nil
			}
			for _, r := range related {
				fmt.Printf("d=%d strength=%.3f  %s  via %s\n",
					r.Distance, r.Strength, r.ActivityID, strings.Join(r.RelationPath, " → "))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 2, "Max graph depth")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func contextsCmd() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "List tracked work contexts by last activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			contexts, err := eng.db.ListContexts(limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(contexts)
			}
			if len(contexts) == 0 {
				fmt.Println("No contexts tracked yet.")
				return nil
			}
			for _, c := range contexts {
				last := time.Unix(c.LastActive, 0).Format("2006-01-02 15:04")
				fmt.Printf("%s  %-24s %s\n", last, c.Name, strings.Join(c.Tags, ","))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Max contexts to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func applyFilter(eng *engine, activities []store.Activity) []store.Activity {
	kept := activities[:0]
	for _, a := range activities {
		if eng.filter.Allows(a.AppName, a.FilePath) {
			a.WindowTitle = privacy.SanitizeText(a.WindowTitle)
			kept = append(kept, a)
		}
	}
	return kept
}

func printGroup(name string, items []string) {
	fmt.Printf("%s:\n", name)
	if len(items) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, it := range items {
		fmt.Printf("  - %s\n", it)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
