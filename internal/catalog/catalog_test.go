package catalog

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bookr/internal/models"
	"bookr/internal/storage"
	"bookr/internal/storage/stubs"
)

type failingHistory struct{}

func (failingHistory) RecordRating(context.Context, models.RatingEvent) error {
	return errors.New("clickhouse unavailable")
}

func (failingHistory) MonthlyRatings(context.Context, int64) ([]models.RatingPoint, error) {
	return nil, errors.New("clickhouse unavailable")
}

func importSample(t *testing.T, svc *Service) ImportStats {
	t.Helper()
	f, err := os.Open("testdata/sample.csv")
	require.NoError(t, err)
	defer f.Close()

	stats, err := svc.ImportCSV(context.Background(), f)
	require.NoError(t, err)
	return stats
}

func bookByTitle(t *testing.T, store storage.Storage, title string) models.Book {
	t.Helper()
	books, err := store.ListBooks(context.Background())
	require.NoError(t, err)
	for _, b := range books {
		if b.Title == title {
			return b
		}
	}
	t.Fatalf("book %q not found", title)
	return models.Book{}
}

func TestService_ImportCSV(t *testing.T) {
	store := stubs.NewMockDB()
	svc := NewService(store, stubs.NewMockHistory(), zap.NewNop())

	stats := importSample(t, svc)
	assert.Equal(t, ImportStats{
		Users:            2,
		Publishers:       2,
		Contributors:     4,
		Books:            3,
		BookContributors: 4,
		Reviews:          3,
	}, stats)

	ctx := context.Background()
	django := bookByTitle(t, store, "Web Development with Django")
	assert.Equal(t, "9781839212505", django.ISBN)
	assert.Equal(t, time.Date(2021, 2, 25, 0, 0, 0, 0, time.UTC), django.PublicationDate)

	credits, err := store.ListBookContributors(ctx, django.ID)
	require.NoError(t, err)
	require.Len(t, credits, 2)
	assert.Equal(t, models.RoleAuthor, credits[0].Role)
	assert.Equal(t, models.RoleCoAuthor, credits[1].Role)

	reviews, err := store.ListReviews(ctx, django.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	peter, err := store.GetUserByUsername(ctx, "peter")
	require.NoError(t, err)
	assert.Equal(t, "peter@example.com", peter.Email)

	summaries, err := svc.BookSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "Web Development with Django", summaries[2].Book.Title)
	assert.Equal(t, 2, summaries[2].ReviewCount)
	assert.InDelta(t, 4.5, summaries[2].AverageRating, 0.0001)
}

func TestService_ImportCSVTwiceCreatesNothing(t *testing.T) {
	svc := NewService(stubs.NewMockDB(), nil, zap.NewNop())

	importSample(t, svc)
	stats := importSample(t, svc)
	assert.Equal(t, ImportStats{}, stats)
}

func TestService_ImportCSVKeepsReviewersApart(t *testing.T) {
	store := stubs.NewMockDB()
	svc := NewService(store, nil, zap.NewNop())
	ctx := context.Background()

	// An account that already owns the name "alice" under another address
	existing, err := store.CreateUser(ctx, models.User{Username: "alice", Email: "alice@zero.example"})
	require.NoError(t, err)

	input := "content:Publisher\nP,https://p.example.com,p@example.com\n" +
		"content:Book\nB,2020-01-01,1,P\n" +
		"content:Review\n" +
		"Great,5,alice@one.example,B\n" +
		"Poor,1,alice@two.example,B\n" +
		"Again,4,ALICE@one.example,B\n"

	stats, err := svc.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 3, stats.Reviews)

	book := bookByTitle(t, store, "B")
	reviews, err := store.ListReviews(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 3)

	creators := make(map[string]models.User)
	for _, r := range reviews {
		u, err := store.GetUser(ctx, r.CreatorID)
		require.NoError(t, err)
		creators[r.Content] = u
	}
	assert.Equal(t, "alice@one.example", creators["Great"].Email)
	assert.Equal(t, "alice@two.example", creators["Poor"].Email)
	assert.Equal(t, creators["Great"].ID, creators["Again"].ID)
	assert.NotEqual(t, creators["Great"].ID, creators["Poor"].ID)
	for _, u := range creators {
		assert.NotEqual(t, existing.ID, u.ID)
	}
	assert.Equal(t, "alice2", creators["Great"].Username)
	assert.Equal(t, "alice3", creators["Poor"].Username)

	again, err := svc.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, ImportStats{}, again)
}

func TestService_ImportCSVErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
		wantErr  error
		contains string
	}{
		{
			name:     "unknown section",
			input:    "content:Author\nA,B\n",
			wantLine: 1,
			contains: `unknown section "content:Author"`,
		},
		{
			name:     "row before header",
			input:    "Packt,https://p.example.com,p@example.com\n",
			wantLine: 1,
			contains: "row before any section header",
		},
		{
			name:     "short row",
			input:    "content:Publisher\nPackt,https://p.example.com\n",
			wantLine: 2,
			contains: "has 2 fields, want 3",
		},
		{
			name:     "unknown publisher",
			input:    "content:Book\nTitle,2020-01-01,123,Nobody\n",
			wantLine: 2,
			contains: `unknown publisher "Nobody"`,
		},
		{
			name:     "bad date",
			input:    "content:Publisher\nP,https://p.example.com,p@example.com\ncontent:Book\nTitle,01/02/2020,123,P\n",
			wantLine: 4,
			contains: "invalid publication date",
		},
		{
			name: "invalid role",
			input: "content:Publisher\nP,https://p.example.com,p@example.com\n" +
				"content:Book\nT,2020-01-01,1,P\n" +
				"content:Contributor\nA,B,a@example.com\n" +
				"content:BookContributor\nT,a@example.com,ILLUSTRATOR\n",
			wantLine: 8,
			contains: `unknown contribution role "ILLUSTRATOR"`,
		},
		{
			name: "rating out of range",
			input: "content:Publisher\nP,https://p.example.com,p@example.com\n" +
				"content:Book\nT,2020-01-01,1,P\n" +
				"content:Review\nMeh,6,r@example.com,T\n",
			wantLine: 6,
			contains: "out of range",
		},
		{
			name:     "invalid publisher",
			input:    "content:Publisher\nP,not-a-url,p@example.com\n",
			wantLine: 2,
			contains: "website",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(stubs.NewMockDB(), nil, zap.NewNop())
			_, err := svc.ImportCSV(context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)

			var importErr *ImportError
			require.ErrorAs(t, err, &importErr)
			assert.Equal(t, tt.wantLine, importErr.Line)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestService_ReviewLifecycleRecordsHistory(t *testing.T) {
	store := stubs.NewMockDB()
	history := stubs.NewMockHistory()
	svc := NewService(store, history, zap.NewNop())
	importSample(t, svc)

	ctx := context.Background()
	goBook := bookByTitle(t, store, "Go in Action")
	user, err := store.CreateUser(ctx, models.User{Username: "gopher", Email: "gopher@example.com"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }
	review, err := svc.CreateReview(ctx, models.Review{Content: "Solid.", Rating: 3, CreatorID: user.ID, BookID: goBook.ID})
	require.NoError(t, err)
	assert.Equal(t, "☆☆☆", review.Rating.Stars())
	assert.False(t, review.Edited())

	svc.now = func() time.Time { return time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC) }
	edited, err := svc.EditReview(ctx, review.ID, "Solid, and still relevant.", 5)
	require.NoError(t, err)
	assert.True(t, edited.Edited())
	assert.Equal(t, "Solid, and still relevant.", edited.Content)

	points, err := svc.RatingHistory(ctx, goBook.ID)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, time.March, points[0].Month.Month())
	assert.InDelta(t, 3.0, points[0].Average, 0.0001)
	assert.Equal(t, time.April, points[1].Month.Month())
	assert.InDelta(t, 5.0, points[1].Average, 0.0001)

	_, err = svc.EditReview(ctx, review.ID, "x", 0)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "rating", vErr.Field)

	_, err = svc.EditReview(ctx, 9999, "x", 3)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestService_RatingHistoryErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewService(stubs.NewMockDB(), nil, zap.NewNop())
	_, err := svc.RatingHistory(ctx, 1)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	svc = NewService(stubs.NewMockDB(), stubs.NewMockHistory(), zap.NewNop())
	_, err = svc.RatingHistory(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestService_HistoryFailureDoesNotFailReview(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := stubs.NewMockDB()
	svc := NewService(store, failingHistory{}, zap.New(core))

	ctx := context.Background()
	importSample(t, svc)
	book := bookByTitle(t, store, "Go in Action")
	user, err := store.CreateUser(ctx, models.User{Username: "gopher", Email: "gopher@example.com"})
	require.NoError(t, err)

	_, err = svc.CreateReview(ctx, models.Review{Content: "ok", Rating: 4, CreatorID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	warnings := logs.FilterMessage("Failed to record rating").All()
	assert.NotEmpty(t, warnings)
}
