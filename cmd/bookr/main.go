// bookr is the command line interface to the Bookr catalogue.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"bookr/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// openApp connects the configured stores. Tests replace it.
var openApp = app.New

// errExit signals a non-zero exit after the command has reported its own error.
var errExit = errors.New("exit")

// run executes the bookr CLI with the given args.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintf(stderr, "bookr: %v\n", err)
		}
		return 1
	}
	return 0
}

// newRootCmd creates the root cobra command with all subcommands.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "bookr",
		Short:         "Bookr book catalogue and reviews",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		newLoadCSVCmd(stdout),
		newBooksCmd(stdout),
		newReviewCmd(stdout),
		newRatingsCmd(stdout),
	)
	return root
}

// withApp opens the application for the duration of fn.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
