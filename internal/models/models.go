package models

import "time"

// User is an account owned by the authentication subsystem. Bookr only uses
// it as a foreign key target for reviews and reviewer profiles.
type User struct {
	ID         int64
	Username   string
	Email      string
	DateJoined time.Time
}

// Publisher is a company that publishes books
type Publisher struct {
	ID      int64
	Name    string
	Website string
	Email   string
}

func (p Publisher) String() string {
	return p.Name
}

// Contributor is a person who contributed to a book, e.g. author, editor, co-author
type Contributor struct {
	ID         int64
	FirstNames string
	LastNames  string
	Email      string
}

func (c Contributor) String() string {
	return c.FirstNames + " " + c.LastNames
}

// Book is a published book
type Book struct {
	ID              int64
	Title           string
	PublicationDate time.Time
	ISBN            string
	PublisherID     int64
}

func (b Book) String() string {
	return b.Title
}

// BookContributor links a contributor to a book with the role they had
type BookContributor struct {
	ID            int64
	BookID        int64
	ContributorID int64
	Role          ContributionRole
}

// Review is a user's rating and text for a book.
// DateEdited stays nil until the review is first updated.
type Review struct {
	ID          int64
	Content     string
	Rating      Rating
	DateCreated time.Time
	DateEdited  *time.Time
	CreatorID   int64
	BookID      int64
}

// Edited reports whether the review has been updated since it was created.
func (r Review) Edited() bool {
	return r.DateEdited != nil
}

// ReviewerProfile holds per-user reviewer details. There is at most one per user.
type ReviewerProfile struct {
	ID              int64
	UserID          int64
	Location        string
	ProfilePhoto    *string
	FavouriteBookID *int64
}

// BookSummary is a book with aggregated review statistics
type BookSummary struct {
	Book          Book
	PublisherName string
	ReviewCount   int
	AverageRating float64
}

// RatingPoint is the average rating a book received in one month
type RatingPoint struct {
	Month   time.Time
	Count   int
	Average float64
}

// RatingEventKind says what happened to a review's rating
type RatingEventKind string

const (
	RatingCreated RatingEventKind = "created"
	RatingEdited  RatingEventKind = "edited"
)

// RatingEvent is one entry in a book's rating history
type RatingEvent struct {
	ReviewID   int64
	BookID     int64
	Rating     Rating
	Kind       RatingEventKind
	RecordedAt time.Time
}
