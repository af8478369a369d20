package main

import (
	"fmt"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/models"
	"github.com/osmangurlek/arxiv-trend-radar/services"

	"github.com/spf13/cobra"
)

var (
	trendsWeekStart string
	trendsType      string
	trendsLimit     int
	digestWeekStart string
)

func init() {
	trendsCmd.Flags().StringVar(&trendsWeekStart, "week-start", "", "Window start, YYYY-MM-DD; the week is [start, start+7d) (default: Monday of the current week)")
	trendsCmd.Flags().StringVar(&trendsType, "type", string(models.EntityMethod), "Entity type: task, dataset, method, library")
	trendsCmd.Flags().IntVar(&trendsLimit, "limit", 10, "Maximum entities per list")
	digestCmd.Flags().StringVar(&digestWeekStart, "week-start", "", "Window start, YYYY-MM-DD; the week is [start, start+7d) (default: Monday of last week)")
	rootCmd.AddCommand(trendsCmd, mergesCmd, digestCmd)
}

// weekOf liest den Fensterbeginn unverändert; ohne Angabe gilt der Montag der Woche von def.
func weekOf(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return services.WeekStart(def), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --week-start %q: expected YYYY-MM-DD", v)
	}
	return t.UTC(), nil
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show top and fastest-growing entities",
	Long: `Show the top entities of a week and the fastest-growing entities
of the last seven days compared with the seven days before.

Examples:
  radar trends
  radar trends --type dataset --week-start 2026-01-05 --human`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := models.ParseEntityType(trendsType)
		if err != nil {
			return err
		}
		weekStart, err := weekOf(trendsWeekStart, time.Now())
		if err != nil {
			return err
		}
		radar, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer radar.Close()

		ctx := cmd.Context()
		top, err := radar.Analytics.TopEntitiesByWeek(ctx, weekStart, typ, trendsLimit)
		if err != nil {
			return err
		}
		growth, err := radar.Analytics.FastestGrowingEntities(ctx, typ)
		if err != nil {
			return err
		}
		if !humanOutput {
			return outputJSON(map[string]any{"week_start": weekStart, "top": top, "growth": growth})
		}
		fmt.Printf("Top %s entities, week of %s:\n", typ, weekStart.Format("2006-01-02"))
		for _, e := range top {
			fmt.Printf("  %-40s %d\n", e.Name, e.Count)
		}
		fmt.Println("\nFastest growing (last 7 days):")
		for _, g := range growth {
			fmt.Printf("  %-40s %+d (%d vs %d)\n", g.Name, g.Growth, g.ThisWeek, g.LastWeek)
		}
		return nil
	},
}

var mergesCmd = &cobra.Command{
	Use:   "merges",
	Short: "List canonical entities and their aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		radar, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer radar.Close()

		merges, err := radar.Analytics.CanonicalMergesReport(cmd.Context())
		if err != nil {
			return err
		}
		if !humanOutput {
			return outputJSON(merges)
		}
		if len(merges) == 0 {
			fmt.Println("No merged entities")
		}
		for _, m := range merges {
			fmt.Printf("  %s [%s] <- %v\n", m.Canonical, m.Type, m.Aliases)
		}
		return nil
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Generate and store a weekly digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		weekStart, err := weekOf(digestWeekStart, time.Now().AddDate(0, 0, -7))
		if err != nil {
			return err
		}
		radar, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer radar.Close()

		digest, err := radar.Digests.Generate(cmd.Context(), weekStart)
		if err != nil {
			return err
		}
		if !humanOutput {
			return outputJSON(digest)
		}
		fmt.Println(digest.ContentMD)
		if digest.ArchiveURL != "" {
			fmt.Printf("\nArchived at %s\n", digest.ArchiveURL)
		}
		return nil
	},
}
