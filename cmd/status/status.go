// Package status prints the stock of every category.
package status

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/questioncrawler/wikidata-cache/internal/app"
	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

// Report is the status output.
type Report struct {
	Initialized bool                        `json:"initialized"`
	Floor       int                         `json:"floor"`
	Stock       map[category.Category]int64 `json:"stock"`
}

// Command creates the status command.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stock of every category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Get("status").Warn("error closing components", logger.Error(err))
				}
			}()

			stock, err := a.Service.Stock(cmd.Context())
			if err != nil {
				return err
			}
			report := Report{
				Initialized: a.Service.IsDatabaseInitialized(cmd.Context()),
				Floor:       a.Service.MinEntriesPerCategory(),
				Stock:       stock,
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return Print(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

// Print writes the report as a table in category order.
func Print(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range category.All() {
		mark := ""
		if r.Stock[c] < int64(r.Floor) {
			mark = "below floor"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c, r.Stock[c], mark)
	}
	fmt.Fprintf(tw, "initialized\t%t\t\n", r.Initialized)
	return tw.Flush()
}
