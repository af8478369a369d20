package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	ingestQuery string
	ingestLimit int
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestQuery, "query", "q", "", "arXiv search query (required)")
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "Maximum papers to fetch (0 = ARXIV_MAX_RESULTS)")
	_ = ingestCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(ingestCmd, canonicalizeCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, enrich and store papers for a query",
	Long: `Fetch papers from arXiv, extract entities and tags, and store everything
in one transaction. Per-paper failures are listed in the report.

Examples:
  radar ingest --query "retrieval augmented generation"
  radar ingest -q "state space models" --limit 20 --human`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	radar, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer radar.Close()

	limit := ingestLimit
	if limit <= 0 {
		limit = radar.Config.ArxivMaxResults
	}
	report, err := radar.Ingestion.Ingest(cmd.Context(), ingestQuery, limit)
	if err != nil {
		return err
	}
	if !humanOutput {
		return outputJSON(report)
	}
	fmt.Printf("Query %q: fetched %d, stored %d (%d new), %d entity links, %d tag links\n",
		report.Query, report.Fetched, report.Stored, report.New, report.EntityLinks, report.TagLinks)
	for _, f := range report.Failures {
		fmt.Printf("  failed %-10s %s: %s\n", f.Stage, f.Item, f.Error)
	}
	return nil
}

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize",
	Short: "Group unresolved entities and link aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		radar, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer radar.Close()

		report, err := radar.Canonicalize.Run(cmd.Context())
		if err != nil {
			return err
		}
		if !humanOutput {
			return outputJSON(report)
		}
		fmt.Printf("%d candidates, %d groups, %d aliases linked\n", report.Candidates, report.Groups, len(report.Linked))
		for _, l := range report.Linked {
			fmt.Printf("  %s -> %s\n", l.Alias, l.CanonicalName)
		}
		for _, s := range report.Skipped {
			fmt.Printf("  skipped %s (%s)\n", s.Item, s.Reason)
		}
		return nil
	},
}
