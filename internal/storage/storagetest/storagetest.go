// Package storagetest is a conformance suite run against every storage.Storage
// implementation.
package storagetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookr/internal/models"
	"bookr/internal/storage"
)

// Factory returns an empty store. Cleanup should be registered with t.
type Factory func(t *testing.T) storage.Storage

// Run exercises every storage behaviour against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"PublisherCRUD", testPublisherCRUD},
		{"PublisherValidation", testPublisherValidation},
		{"BookRequiresPublisher", testBookRequiresPublisher},
		{"DeletePublisherCascadesBooks", testDeletePublisherCascadesBooks},
		{"ContributorCRUD", testContributorCRUD},
		{"BookContributorRoles", testBookContributorRoles},
		{"BookContributorCascades", testBookContributorCascades},
		{"ReviewLifecycle", testReviewLifecycle},
		{"ReviewRatingRange", testReviewRatingRange},
		{"ReviewCascades", testReviewCascades},
		{"ReviewerProfileUniqueUser", testReviewerProfileUniqueUser},
		{"FavouriteBookSetNull", testFavouriteBookSetNull},
		{"DeleteUserCascadesProfile", testDeleteUserCascadesProfile},
		{"UniqueUsername", testUniqueUsername},
		{"UserByEmail", testUserByEmail},
		{"NotFound", testNotFound},
		{"BookSummaries", testBookSummaries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

type fixture struct {
	publisher models.Publisher
	book      models.Book
	user      models.User
}

func newFixture(t *testing.T, s storage.Storage) fixture {
	t.Helper()
	ctx := context.Background()

	publisher, err := s.CreatePublisher(ctx, models.Publisher{
		Name:    "Packt Publishing",
		Website: "https://www.packtpub.com/",
		Email:   "info@packtpub.com",
	})
	require.NoError(t, err)

	book := createBook(t, s, publisher.ID, "Web Development with Django")

	user, err := s.CreateUser(ctx, models.User{Username: "reviewer", Email: "reviewer@example.com"})
	require.NoError(t, err)

	return fixture{publisher: publisher, book: book, user: user}
}

func createBook(t *testing.T, s storage.Storage, publisherID int64, title string) models.Book {
	t.Helper()
	book, err := s.CreateBook(context.Background(), models.Book{
		Title:           title,
		PublicationDate: time.Date(2021, 2, 25, 0, 0, 0, 0, time.UTC),
		ISBN:            "9781839212505",
		PublisherID:     publisherID,
	})
	require.NoError(t, err)
	return book
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, field, vErr.Field)
}

func testPublisherCRUD(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	created, err := s.CreatePublisher(ctx, models.Publisher{
		Name:    "Pocket Books",
		Website: "https://pocketbooks.example.com",
		Email:   "hello@pocketbooks.example.com",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := s.GetPublisher(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	created.Name = "Pocket Books Ltd"
	require.NoError(t, s.UpdatePublisher(ctx, created))

	publishers, err := s.ListPublishers(ctx)
	require.NoError(t, err)
	require.Len(t, publishers, 1)
	assert.Equal(t, "Pocket Books Ltd", publishers[0].Name)

	require.NoError(t, s.DeletePublisher(ctx, created.ID))
	_, err = s.GetPublisher(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testPublisherValidation(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	_, err := s.CreatePublisher(ctx, models.Publisher{Website: "https://example.com", Email: "a@example.com"})
	requireFieldError(t, err, "name")

	_, err = s.CreatePublisher(ctx, models.Publisher{Name: "X", Website: "not a url", Email: "a@example.com"})
	requireFieldError(t, err, "website")

	_, err = s.CreatePublisher(ctx, models.Publisher{Name: "X", Website: "https://example.com", Email: "nope"})
	requireFieldError(t, err, "email")

	publishers, err := s.ListPublishers(ctx)
	require.NoError(t, err)
	assert.Empty(t, publishers)
}

func testBookRequiresPublisher(t *testing.T, s storage.Storage) {
	_, err := s.CreateBook(context.Background(), models.Book{
		Title:           "Orphan",
		PublicationDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		ISBN:            "0000000000",
		PublisherID:     424242,
	})
	assert.ErrorIs(t, err, storage.ErrForeignKeyViolation)
}

func testDeletePublisherCascadesBooks(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)
	second := createBook(t, s, f.publisher.ID, "Another Book")

	require.NoError(t, s.DeletePublisher(ctx, f.publisher.ID))

	for _, id := range []int64{f.book.ID, second.ID} {
		_, err := s.GetBook(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func testContributorCRUD(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	c, err := s.CreateContributor(ctx, models.Contributor{
		FirstNames: "Ben",
		LastNames:  "Shaw",
		Email:      "ben@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ben Shaw", c.String())

	c.Email = "ben.shaw@example.com"
	require.NoError(t, s.UpdateContributor(ctx, c))

	got, err := s.GetContributor(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ben.shaw@example.com", got.Email)

	_, err = s.CreateContributor(ctx, models.Contributor{FirstNames: "Saurabh", LastNames: "Badhwar", Email: "saurabh@example.com"})
	require.NoError(t, err)

	contributors, err := s.ListContributors(ctx)
	require.NoError(t, err)
	require.Len(t, contributors, 2)
	assert.Equal(t, "Badhwar", contributors[0].LastNames)
	assert.Equal(t, "Shaw", contributors[1].LastNames)

	require.NoError(t, s.DeleteContributor(ctx, c.ID))
	_, err = s.GetContributor(ctx, c.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testBookContributorRoles(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)
	c, err := s.CreateContributor(ctx, models.Contributor{FirstNames: "Chris", LastNames: "Guest", Email: "chris@example.com"})
	require.NoError(t, err)

	for _, role := range models.ContributionRoles {
		_, err := s.AddBookContributor(ctx, models.BookContributor{BookID: f.book.ID, ContributorID: c.ID, Role: role})
		require.NoError(t, err, "role %s", role)
	}

	_, err = s.AddBookContributor(ctx, models.BookContributor{BookID: f.book.ID, ContributorID: c.ID, Role: "ILLUSTRATOR"})
	requireFieldError(t, err, "role")

	credits, err := s.ListBookContributors(ctx, f.book.ID)
	require.NoError(t, err)
	require.Len(t, credits, 3)
	assert.Equal(t, models.RoleAuthor, credits[0].Role)
	assert.Equal(t, models.RoleCoAuthor, credits[1].Role)
	assert.Equal(t, models.RoleEditor, credits[2].Role)

	require.NoError(t, s.DeleteBookContributor(ctx, credits[0].ID))
	credits, err = s.ListBookContributors(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Len(t, credits, 2)

	_, err = s.AddBookContributor(ctx, models.BookContributor{BookID: f.book.ID, ContributorID: 999999, Role: models.RoleEditor})
	assert.ErrorIs(t, err, storage.ErrForeignKeyViolation)
}

func testBookContributorCascades(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)
	c, err := s.CreateContributor(ctx, models.Contributor{FirstNames: "Chris", LastNames: "Guest", Email: "chris@example.com"})
	require.NoError(t, err)
	other := createBook(t, s, f.publisher.ID, "Second Edition")

	_, err = s.AddBookContributor(ctx, models.BookContributor{BookID: f.book.ID, ContributorID: c.ID, Role: models.RoleAuthor})
	require.NoError(t, err)
	_, err = s.AddBookContributor(ctx, models.BookContributor{BookID: other.ID, ContributorID: c.ID, Role: models.RoleAuthor})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBook(ctx, f.book.ID))
	credits, err := s.ListBookContributors(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Empty(t, credits)

	require.NoError(t, s.DeleteContributor(ctx, c.ID))
	credits, err = s.ListBookContributors(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, credits)

	_, err = s.GetBook(ctx, other.ID)
	assert.NoError(t, err, "deleting a contributor must not delete books")
}

func testReviewLifecycle(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)

	review, err := s.CreateReview(ctx, models.Review{
		Content:   "A solid introduction.",
		Rating:    3,
		CreatorID: f.user.ID,
		BookID:    f.book.ID,
	})
	require.NoError(t, err)
	assert.NotZero(t, review.ID)
	assert.False(t, review.DateCreated.IsZero())
	assert.Nil(t, review.DateEdited)
	assert.False(t, review.Edited())
	assert.Equal(t, "☆☆☆", review.Rating.Stars())

	review.Content = "A solid introduction, revisited."
	review.Rating = 4
	edited, err := s.UpdateReview(ctx, review)
	require.NoError(t, err)
	require.NotNil(t, edited.DateEdited)
	assert.True(t, edited.Edited())
	assert.False(t, edited.DateEdited.Before(edited.DateCreated))
	assert.WithinDuration(t, review.DateCreated, edited.DateCreated, time.Millisecond)

	got, err := s.GetReview(ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Rating(4), got.Rating)
	assert.Equal(t, "A solid introduction, revisited.", got.Content)
	require.NotNil(t, got.DateEdited)

	reviews, err := s.ListReviews(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)

	require.NoError(t, s.DeleteReview(ctx, review.ID))
	_, err = s.GetReview(ctx, review.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testReviewRatingRange(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)

	for _, rating := range []models.Rating{0, 6, -1} {
		_, err := s.CreateReview(ctx, models.Review{Content: "x", Rating: rating, CreatorID: f.user.ID, BookID: f.book.ID})
		requireFieldError(t, err, "rating")
	}

	review, err := s.CreateReview(ctx, models.Review{Content: "x", Rating: 5, CreatorID: f.user.ID, BookID: f.book.ID})
	require.NoError(t, err)

	review.Rating = 9
	_, err = s.UpdateReview(ctx, review)
	requireFieldError(t, err, "rating")

	got, err := s.GetReview(ctx, review.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DateEdited, "a rejected update must not mark the review as edited")
}

func testReviewCascades(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)
	other, err := s.CreateUser(ctx, models.User{Username: "other", Email: "other@example.com"})
	require.NoError(t, err)

	first, err := s.CreateReview(ctx, models.Review{Content: "first", Rating: 2, CreatorID: f.user.ID, BookID: f.book.ID})
	require.NoError(t, err)
	second, err := s.CreateReview(ctx, models.Review{Content: "second", Rating: 5, CreatorID: other.ID, BookID: f.book.ID})
	require.NoError(t, err)

	_, err = s.CreateReview(ctx, models.Review{Content: "ghost", Rating: 1, CreatorID: 999999, BookID: f.book.ID})
	assert.ErrorIs(t, err, storage.ErrForeignKeyViolation)

	require.NoError(t, s.DeleteUser(ctx, f.user.ID))
	_, err = s.GetReview(ctx, first.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetReview(ctx, second.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteBook(ctx, f.book.ID))
	_, err = s.GetReview(ctx, second.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testReviewerProfileUniqueUser(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)

	photo := "profile_photos/reviewer.png"
	profile, err := s.CreateReviewerProfile(ctx, models.ReviewerProfile{
		UserID:       f.user.ID,
		Location:     "Melbourne",
		ProfilePhoto: &photo,
	})
	require.NoError(t, err)
	assert.Nil(t, profile.FavouriteBookID)

	_, err = s.CreateReviewerProfile(ctx, models.ReviewerProfile{UserID: f.user.ID, Location: "Sydney"})
	assert.ErrorIs(t, err, storage.ErrUniqueViolation)

	got, err := s.GetReviewerProfile(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Melbourne", got.Location)
	require.NotNil(t, got.ProfilePhoto)
	assert.Equal(t, photo, *got.ProfilePhoto)

	got.FavouriteBookID = &f.book.ID
	got.Location = "Hobart"
	require.NoError(t, s.UpdateReviewerProfile(ctx, got))

	got, err = s.GetReviewerProfile(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hobart", got.Location)
	require.NotNil(t, got.FavouriteBookID)
	assert.Equal(t, f.book.ID, *got.FavouriteBookID)

	_, err = s.CreateReviewerProfile(ctx, models.ReviewerProfile{UserID: f.user.ID, Location: strings.Repeat("x", 101)})
	requireFieldError(t, err, "location")

	require.NoError(t, s.DeleteReviewerProfile(ctx, got.ID))
	_, err = s.GetReviewerProfile(ctx, f.user.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testFavouriteBookSetNull(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)

	profile, err := s.CreateReviewerProfile(ctx, models.ReviewerProfile{
		UserID:          f.user.ID,
		Location:        "Perth",
		FavouriteBookID: &f.book.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, profile.FavouriteBookID)

	require.NoError(t, s.DeleteBook(ctx, f.book.ID))

	got, err := s.GetReviewerProfile(ctx, f.user.ID)
	require.NoError(t, err, "deleting the favourite book must not delete the profile")
	assert.Equal(t, profile.ID, got.ID)
	assert.Nil(t, got.FavouriteBookID)
}

func testDeleteUserCascadesProfile(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)

	_, err := s.CreateReviewerProfile(ctx, models.ReviewerProfile{UserID: f.user.ID, Location: "Darwin"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, f.user.ID))

	_, err = s.GetReviewerProfile(ctx, f.user.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetUser(ctx, f.user.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUniqueUsername(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	u, err := s.CreateUser(ctx, models.User{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.False(t, u.DateJoined.IsZero())

	_, err = s.CreateUser(ctx, models.User{Username: "alice", Email: "alice2@example.com"})
	assert.ErrorIs(t, err, storage.ErrUniqueViolation)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func testUserByEmail(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	first, err := s.CreateUser(ctx, models.User{Username: "alice", Email: "alice@one.example"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, models.User{Username: "alice2", Email: "alice@two.example"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, models.User{Username: "alice_again", Email: "Alice@One.example"})
	require.NoError(t, err)

	got, err := s.GetUserByEmail(ctx, "ALICE@one.example")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = s.GetUserByEmail(ctx, "alice@two.example")
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)

	_, err = s.GetUserByEmail(ctx, "alice@three.example")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testNotFound(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	const missing = 987654

	_, err := s.GetBook(ctx, missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetUser(ctx, missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.UpdateReview(ctx, models.Review{ID: missing, Content: "x", Rating: 1, CreatorID: 1, BookID: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, s.DeleteBook(ctx, missing), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeletePublisher(ctx, missing), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteContributor(ctx, missing), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteReview(ctx, missing), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteReviewerProfile(ctx, missing), storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdatePublisher(ctx, models.Publisher{
		ID: missing, Name: "x", Website: "https://example.com", Email: "x@example.com",
	}), storage.ErrNotFound)
}

func testBookSummaries(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	f := newFixture(t, s)
	unreviewed := createBook(t, s, f.publisher.ID, "Advanced Web Development")

	for _, rating := range []models.Rating{5, 4} {
		_, err := s.CreateReview(ctx, models.Review{Content: "ok", Rating: rating, CreatorID: f.user.ID, BookID: f.book.ID})
		require.NoError(t, err)
	}

	summaries, err := s.ListBookSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, unreviewed.ID, summaries[0].Book.ID)
	assert.Equal(t, 0, summaries[0].ReviewCount)
	assert.Zero(t, summaries[0].AverageRating)

	assert.Equal(t, f.book.ID, summaries[1].Book.ID)
	assert.Equal(t, "Packt Publishing", summaries[1].PublisherName)
	assert.Equal(t, 2, summaries[1].ReviewCount)
	assert.InDelta(t, 4.5, summaries[1].AverageRating, 0.0001)
}
