package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bookr/internal/app"
	"bookr/internal/models"
)

func newBooksCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List books with review counts and average ratings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				summaries, err := a.Catalog().BookSummaries(cmd.Context())
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tPUBLISHER\tREVIEWS\tRATING")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
						s.Book.ID, s.Book.Title, s.PublisherName, s.ReviewCount, formatAverage(s))
				}
				return tw.Flush()
			})
		},
	}
}

// formatAverage renders the average rating with its rounded star display
func formatAverage(s models.BookSummary) string {
	if s.ReviewCount == 0 {
		return "-"
	}
	rounded := models.Rating(math.Round(s.AverageRating))
	return fmt.Sprintf("%.1f %s", s.AverageRating, rounded.Stars())
}
