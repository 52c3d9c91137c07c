package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"bookr/internal/app"
	"bookr/internal/models"
)

func newReviewCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Write and edit book reviews",
	}
	cmd.AddCommand(newReviewAddCmd(stdout), newReviewEditCmd(stdout))
	return cmd
}

func newReviewAddCmd(stdout io.Writer) *cobra.Command {
	var (
		bookID   int64
		username string
		rating   int
		content  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a review of a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				user, err := a.Storage().GetUserByUsername(cmd.Context(), username)
				if err != nil {
					return fmt.Errorf("unknown user %q: %w", username, err)
				}
				review, err := a.Catalog().CreateReview(cmd.Context(), models.Review{
					Content:   content,
					Rating:    models.Rating(rating),
					CreatorID: user.ID,
					BookID:    bookID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Review %d created %s\n", review.ID, review.Rating.Stars())
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&bookID, "book", 0, "ID of the reviewed book")
	cmd.Flags().StringVar(&username, "user", "", "Username of the reviewer")
	cmd.Flags().IntVar(&rating, "rating", 0, "Rating from 1 to 5")
	cmd.Flags().StringVar(&content, "content", "", "Review text")
	for _, name := range []string{"book", "user", "rating", "content"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newReviewEditCmd(stdout io.Writer) *cobra.Command {
	var (
		rating  int
		content string
	)

	cmd := &cobra.Command{
		Use:   "edit <review-id>",
		Short: "Edit a review's content and rating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid review id %q", args[0])
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				review, err := a.Catalog().EditReview(cmd.Context(), id, content, models.Rating(rating))
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Review %d edited %s (at %s)\n",
					review.ID, review.Rating.Stars(), review.DateEdited.Format("2006-01-02 15:04"))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&rating, "rating", 0, "Rating from 1 to 5")
	cmd.Flags().StringVar(&content, "content", "", "Review text")
	_ = cmd.MarkFlagRequired("rating")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}
