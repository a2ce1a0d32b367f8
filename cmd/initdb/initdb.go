// Package initdb tops every category up to the stock floor once.
package initdb

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/questioncrawler/wikidata-cache/internal/app"
	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/entrycache"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
	"github.com/questioncrawler/wikidata-cache/internal/scheduler"
)

// Command creates the initdb command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Fill every category up to the stock floor",
		Long: "Fetch entries from Wikidata until every category holds cache.minentriespercategory entries. " +
			"Categories already at the floor are left alone, so the command can be re-run safely.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Get("initdb").Warn("error closing components", logger.Error(err))
				}
			}()

			results := scheduler.NewStockKeeper(a.Service).RunOnce(cmd.Context())
			if err := PrintReport(cmd.OutOrStdout(), results, a.Service.MinEntriesPerCategory()); err != nil {
				return err
			}
			return ResultsError(results)
		},
	}
}

// PrintReport writes one row per category.
func PrintReport(w io.Writer, results []entrycache.InitResult, floor int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CATEGORY\tBEFORE\tREQUESTED\tSAVED\tFLOOR\tSTATUS\n")
	for _, r := range results {
		status := "ok"
		switch {
		case r.Err != nil:
			status = "error: " + r.Err.Error()
		case r.Requested == 0:
			status = "full"
		case r.Saved < r.Requested:
			status = "partial"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", r.Category, r.Before, r.Requested, r.Saved, floor, status)
	}
	return tw.Flush()
}

// ResultsError joins the per-category errors, or returns nil.
func ResultsError(results []entrycache.InitResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Category, r.Err))
		}
	}
	return errors.Join(errs...)
}
