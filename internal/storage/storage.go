package storage

import (
	"context"
	"errors"

	"bookr/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrForeignKeyViolation is returned when a reference points at a missing row.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrUniqueViolation is returned when a unique constraint is violated.
	ErrUniqueViolation = errors.New("duplicate key value")

	// ErrCheckViolation is returned when a value is outside a column's declared choices.
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a required column is missing.
	ErrNotNullViolation = errors.New("not null violation")

	// ErrValueTooLong is returned when a value exceeds a column's maximum length.
	ErrValueTooLong = errors.New("value too long")
)

// Storage defines the interface for data storage operations.
// Delete operations follow the schema's ON DELETE rules: removing a row
// cascades to rows that require it and clears optional references to it.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	// GetUserByEmail matches the address case-insensitively. E-mail is not
	// unique, so the oldest matching account is returned.
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	DeleteUser(ctx context.Context, id int64) error

	// Publisher operations
	CreatePublisher(ctx context.Context, publisher models.Publisher) (models.Publisher, error)
	GetPublisher(ctx context.Context, id int64) (models.Publisher, error)
	ListPublishers(ctx context.Context) ([]models.Publisher, error)
	UpdatePublisher(ctx context.Context, publisher models.Publisher) error
	DeletePublisher(ctx context.Context, id int64) error

	// Contributor operations
	CreateContributor(ctx context.Context, contributor models.Contributor) (models.Contributor, error)
	GetContributor(ctx context.Context, id int64) (models.Contributor, error)
	ListContributors(ctx context.Context) ([]models.Contributor, error)
	UpdateContributor(ctx context.Context, contributor models.Contributor) error
	DeleteContributor(ctx context.Context, id int64) error

	// Book operations
	CreateBook(ctx context.Context, book models.Book) (models.Book, error)
	GetBook(ctx context.Context, id int64) (models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	UpdateBook(ctx context.Context, book models.Book) error
	DeleteBook(ctx context.Context, id int64) error

	// ListBookSummaries returns every book with its publisher name, review
	// count and average rating, ordered by title. Books without reviews have
	// an average of zero.
	ListBookSummaries(ctx context.Context) ([]models.BookSummary, error)

	// Book contributor operations
	AddBookContributor(ctx context.Context, bc models.BookContributor) (models.BookContributor, error)
	ListBookContributors(ctx context.Context, bookID int64) ([]models.BookContributor, error)
	DeleteBookContributor(ctx context.Context, id int64) error

	// Review operations

	// CreateReview stores a new review. DateCreated is set by the store and
	// DateEdited is always nil.
	CreateReview(ctx context.Context, review models.Review) (models.Review, error)
	GetReview(ctx context.Context, id int64) (models.Review, error)
	ListReviews(ctx context.Context, bookID int64) ([]models.Review, error)
	// UpdateReview changes content and rating and stamps DateEdited.
	UpdateReview(ctx context.Context, review models.Review) (models.Review, error)
	DeleteReview(ctx context.Context, id int64) error

	// Reviewer profile operations
	CreateReviewerProfile(ctx context.Context, profile models.ReviewerProfile) (models.ReviewerProfile, error)
	GetReviewerProfile(ctx context.Context, userID int64) (models.ReviewerProfile, error)
	UpdateReviewerProfile(ctx context.Context, profile models.ReviewerProfile) error
	DeleteReviewerProfile(ctx context.Context, id int64) error

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
