package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bookr/internal/app"
)

func newRatingsCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "ratings <book-id>",
		Short: "Show a book's average rating per month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[0])
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				points, err := a.Catalog().RatingHistory(cmd.Context(), bookID)
				if err != nil {
					return err
				}
				if len(points) == 0 {
					fmt.Fprintln(stdout, "No ratings recorded")
					return nil
				}

				tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "MONTH\tRATINGS\tAVERAGE")
				for _, p := range points {
					fmt.Fprintf(tw, "%s\t%d\t%.2f\n", p.Month.Format("2006-01"), p.Count, p.Average)
				}
				return tw.Flush()
			})
		},
	}
}
