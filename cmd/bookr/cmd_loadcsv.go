package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"bookr/internal/app"
)

func newLoadCSVCmd(stdout io.Writer) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "loadcsv",
		Short: "Import publishers, books, contributors and reviews from a CSV file",
		Long: `Import a sectioned catalogue CSV.

Each section starts with a header row and is followed by its data rows:

  content:Publisher        name, website, email
  content:Book             title, publication date (YYYY-MM-DD), isbn, publisher name
  content:Contributor      first names, last names, email
  content:BookContributor  book title, contributor email, role
  content:Review           content, rating, reviewer email, book title

Rows matching existing records are skipped, so a file can be loaded twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open csv: %w", err)
			}
			defer f.Close()

			return withApp(cmd.Context(), func(a *app.App) error {
				stats, err := a.Catalog().ImportCSV(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Imported %d publishers, %d books, %d contributors, %d credits, %d reviews (%d new users)\n",
					stats.Publishers, stats.Books, stats.Contributors, stats.BookContributors, stats.Reviews, stats.Users)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&path, "csv", "", "Path to the CSV file")
	_ = cmd.MarkFlagRequired("csv")

	return cmd
}
