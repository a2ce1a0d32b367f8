// Package fetch forces an upstream fetch for one category.
package fetch

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/questioncrawler/wikidata-cache/internal/app"
	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

const defaultCount = 5

// Command creates the fetch command.
func Command(settings *conf.Settings) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:       "fetch <category>",
		Short:     "Fetch and store new entries for a category",
		Args:      cobra.ExactArgs(1),
		ValidArgs: validArgs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ParseCategory(args[0])
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Get("fetch").Warn("error closing components", logger.Error(err))
				}
			}()

			saved := a.Service.FetchAndSaveEntries(cmd.Context(), c, count)
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d of %d requested %s entries\n", len(saved), count, c)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", defaultCount, "Number of entries to fetch")
	return cmd
}

// ParseCategory resolves a category name given on the command line.
func ParseCategory(name string) (category.Category, error) {
	c, ok := category.Parse(name)
	if !ok {
		return "", errors.Newf("unknown category %q (valid: %s)", name, strings.Join(validArgs(), ", ")).
			Category(errors.CategoryUnknownCategory).
			Component("cli").
			Build()
	}
	return c, nil
}

func validArgs() []string {
	all := category.All()
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = string(c)
	}
	return out
}
