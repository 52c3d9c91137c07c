package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"bookr/internal/app"
	"bookr/internal/config"
	"bookr/internal/models"
)

// useMockApp points every command at one in-memory App for the test.
func useMockApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	cfg.UseMockDB = true
	a, err := app.NewWithConfig(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	prev := openApp
	openApp = func(context.Context) (*app.App, error) { return a, nil }
	t.Cleanup(func() { openApp = prev })
	return a
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRootCommand_Help(t *testing.T) {
	code, stdout, _ := runCmd(t)
	if code != 0 {
		t.Errorf("run() exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "loadcsv") {
		t.Errorf("expected help to list loadcsv, got:\n%s", stdout)
	}
}

func TestRootCommand_UnknownCommand(t *testing.T) {
	code, _, stderr := runCmd(t, "nonexistent")
	if code != 1 {
		t.Errorf("run(nonexistent) exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "unknown command") {
		t.Errorf("expected unknown command error, got %q", stderr)
	}
}

func TestLoadCSVAndBooks(t *testing.T) {
	useMockApp(t, &config.Config{})

	code, stdout, stderr := runCmd(t, "loadcsv", "--csv", "../../internal/catalog/testdata/sample.csv")
	if code != 0 {
		t.Fatalf("loadcsv exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Imported 2 publishers, 3 books, 4 contributors, 4 credits, 3 reviews (2 new users)") {
		t.Errorf("unexpected loadcsv output: %q", stdout)
	}

	code, stdout, stderr = runCmd(t, "books")
	if code != 0 {
		t.Fatalf("books exit code = %d, stderr: %s", code, stderr)
	}
	for _, want := range []string{"Web Development with Django", "Packt Publishing", "4.5 ☆☆☆☆☆", "Go in Action"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("books output missing %q:\n%s", want, stdout)
		}
	}
}

func TestLoadCSV_RequiresFlag(t *testing.T) {
	useMockApp(t, &config.Config{})

	code, _, stderr := runCmd(t, "loadcsv")
	if code != 1 {
		t.Errorf("loadcsv without --csv exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "csv") {
		t.Errorf("expected missing flag error, got %q", stderr)
	}
}

func TestReviewAddEditAndRatings(t *testing.T) {
	a := useMockApp(t, &config.Config{ClickHouseHost: "mock"})
	ctx := context.Background()

	store := a.Storage()
	publisher, err := store.CreatePublisher(ctx, models.Publisher{Name: "P", Website: "https://p.example.com", Email: "p@example.com"})
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}
	book, err := store.CreateBook(ctx, models.Book{Title: "B", PublicationDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), ISBN: "1", PublisherID: publisher.ID})
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}
	if _, err := store.CreateUser(ctx, models.User{Username: "reader", Email: "reader@example.com"}); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	code, stdout, stderr := runCmd(t, "review", "add", "--book", "1", "--user", "reader", "--rating", "3", "--content", "Fine.")
	if code != 0 {
		t.Fatalf("review add exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Review 1 created ☆☆☆") {
		t.Errorf("unexpected review add output: %q", stdout)
	}

	code, stdout, stderr = runCmd(t, "review", "edit", "1", "--rating", "4", "--content", "Better than fine.")
	if code != 0 {
		t.Fatalf("review edit exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Review 1 edited ☆☆☆☆") {
		t.Errorf("unexpected review edit output: %q", stdout)
	}

	code, _, stderr = runCmd(t, "review", "edit", "1", "--rating", "7", "--content", "x")
	if code != 1 || !strings.Contains(stderr, "rating") {
		t.Errorf("expected rating validation error, got code %d, stderr %q", code, stderr)
	}

	code, stdout, stderr = runCmd(t, "ratings", "1")
	if code != 0 {
		t.Fatalf("ratings exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "3.50") {
		t.Errorf("expected average of created and edited ratings, got:\n%s", stdout)
	}

	reviews, err := store.ListReviews(ctx, book.ID)
	if err != nil {
		t.Fatalf("Failed to list reviews: %v", err)
	}
	if len(reviews) != 1 || !reviews[0].Edited() {
		t.Errorf("expected one edited review, got %+v", reviews)
	}
}

func TestReviewAdd_UnknownUser(t *testing.T) {
	useMockApp(t, &config.Config{})

	code, _, stderr := runCmd(t, "review", "add", "--book", "1", "--user", "ghost", "--rating", "3", "--content", "x")
	if code != 1 || !strings.Contains(stderr, `unknown user "ghost"`) {
		t.Errorf("expected unknown user error, got code %d, stderr %q", code, stderr)
	}
}

func TestRatings_HistoryDisabled(t *testing.T) {
	useMockApp(t, &config.Config{})

	code, _, stderr := runCmd(t, "ratings", "1")
	if code != 1 || !strings.Contains(stderr, "rating history is not configured") {
		t.Errorf("expected history disabled error, got code %d, stderr %q", code, stderr)
	}
}
