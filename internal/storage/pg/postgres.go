package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookr/internal/models"
	"bookr/internal/storage"
)

var _ storage.Storage = (*PostgresDB)(nil)

// SQLSTATE codes for integrity constraint violations.
const (
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeStringTooLong       = "22001"
)

// PostgresDB is the Postgres implementation of storage.Storage. Referential
// actions (cascade, set null) are enforced by the schema's foreign keys.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to the database at url
func NewPostgresDB(ctx context.Context, url string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Initialize only checks connectivity - tables are managed via migrations
func (db *PostgresDB) Initialize(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (db *PostgresDB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// mapError translates driver errors into storage errors, keeping the
// original error in the chain.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	var kind error
	switch pgErr.Code {
	case codeForeignKeyViolation:
		kind = storage.ErrForeignKeyViolation
	case codeUniqueViolation:
		kind = storage.ErrUniqueViolation
	case codeCheckViolation:
		kind = storage.ErrCheckViolation
	case codeNotNullViolation:
		kind = storage.ErrNotNullViolation
	case codeStringTooLong:
		kind = storage.ErrValueTooLong
	default:
		return err
	}
	return fmt.Errorf("%w (%s): %w", kind, pgErr.ConstraintName, err)
}

func (db *PostgresDB) exec(ctx context.Context, query string, args ...any) error {
	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateUser creates a user account
func (db *PostgresDB) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if err := user.Validate(); err != nil {
		return models.User{}, err
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, date_joined) VALUES ($1, $2, $3) RETURNING id`,
		user.Username, user.Email, user.DateJoined,
	).Scan(&user.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to create user: %w", mapError(err))
	}
	return user, nil
}

// GetUser returns a user by ID
func (db *PostgresDB) GetUser(ctx context.Context, id int64) (models.User, error) {
	return db.getUser(ctx, `SELECT id, username, email, date_joined FROM users WHERE id = $1`, id)
}

// GetUserByUsername returns a user by username
func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return db.getUser(ctx, `SELECT id, username, email, date_joined FROM users WHERE username = $1`, username)
}

// GetUserByEmail returns the oldest user with the given e-mail address
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return db.getUser(ctx, `SELECT id, username, email, date_joined FROM users WHERE lower(email) = lower($1) ORDER BY id LIMIT 1`, email)
}

func (db *PostgresDB) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	rows, _ := db.pool.Query(ctx, query, arg)
	user, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.User])
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user: %w", mapError(err))
	}
	return user, nil
}

// DeleteUser deletes a user together with their reviews and profile
func (db *PostgresDB) DeleteUser(ctx context.Context, id int64) error {
	if err := db.exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// CreatePublisher creates a publisher
func (db *PostgresDB) CreatePublisher(ctx context.Context, p models.Publisher) (models.Publisher, error) {
	if err := p.Validate(); err != nil {
		return models.Publisher{}, err
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO publishers (name, website, email) VALUES ($1, $2, $3) RETURNING id`,
		p.Name, p.Website, p.Email,
	).Scan(&p.ID)
	if err != nil {
		return models.Publisher{}, fmt.Errorf("failed to create publisher: %w", mapError(err))
	}
	return p, nil
}

// GetPublisher returns a publisher by ID
func (db *PostgresDB) GetPublisher(ctx context.Context, id int64) (models.Publisher, error) {
	rows, _ := db.pool.Query(ctx, `SELECT id, name, website, email FROM publishers WHERE id = $1`, id)
	p, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.Publisher])
	if err != nil {
		return models.Publisher{}, fmt.Errorf("failed to get publisher: %w", mapError(err))
	}
	return p, nil
}

// ListPublishers returns all publishers ordered by name
func (db *PostgresDB) ListPublishers(ctx context.Context) ([]models.Publisher, error) {
	rows, _ := db.pool.Query(ctx, `SELECT id, name, website, email FROM publishers ORDER BY name, id`)
	publishers, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Publisher])
	if err != nil {
		return nil, fmt.Errorf("failed to list publishers: %w", mapError(err))
	}
	return publishers, nil
}

// UpdatePublisher updates a publisher's fields
func (db *PostgresDB) UpdatePublisher(ctx context.Context, p models.Publisher) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := db.exec(ctx, `UPDATE publishers SET name = $2, website = $3, email = $4 WHERE id = $1`,
		p.ID, p.Name, p.Website, p.Email)
	if err != nil {
		return fmt.Errorf("failed to update publisher: %w", err)
	}
	return nil
}

// DeletePublisher deletes a publisher and, by cascade, its books
func (db *PostgresDB) DeletePublisher(ctx context.Context, id int64) error {
	if err := db.exec(ctx, `DELETE FROM publishers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete publisher: %w", err)
	}
	return nil
}

// CreateContributor creates a contributor
func (db *PostgresDB) CreateContributor(ctx context.Context, c models.Contributor) (models.Contributor, error) {
	if err := c.Validate(); err != nil {
		return models.Contributor{}, err
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO contributors (first_names, last_names, email) VALUES ($1, $2, $3) RETURNING id`,
		c.FirstNames, c.LastNames, c.Email,
	).Scan(&c.ID)
	if err != nil {
		return models.Contributor{}, fmt.Errorf("failed to create contributor: %w", mapError(err))
	}
	return c, nil
}

// GetContributor returns a contributor by ID
func (db *PostgresDB) GetContributor(ctx context.Context, id int64) (models.Contributor, error) {
	rows, _ := db.pool.Query(ctx, `SELECT id, first_names, last_names, email FROM contributors WHERE id = $1`, id)
	c, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.Contributor])
	if err != nil {
		return models.Contributor{}, fmt.Errorf("failed to get contributor: %w", mapError(err))
	}
	return c, nil
}

// ListContributors returns all contributors ordered by last then first names
func (db *PostgresDB) ListContributors(ctx context.Context) ([]models.Contributor, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT id, first_names, last_names, email FROM contributors ORDER BY last_names, first_names, id`)
	contributors, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Contributor])
	if err != nil {
		return nil, fmt.Errorf("failed to list contributors: %w", mapError(err))
	}
	return contributors, nil
}

// UpdateContributor updates a contributor's fields
func (db *PostgresDB) UpdateContributor(ctx context.Context, c models.Contributor) error {
	if err := c.Validate(); err != nil {
		return err
	}
	err := db.exec(ctx, `UPDATE contributors SET first_names = $2, last_names = $3, email = $4 WHERE id = $1`,
		c.ID, c.FirstNames, c.LastNames, c.Email)
	if err != nil {
		return fmt.Errorf("failed to update contributor: %w", err)
	}
	return nil
}

// DeleteContributor deletes a contributor and their book credits
func (db *PostgresDB) DeleteContributor(ctx context.Context, id int64) error {
	if err := db.exec(ctx, `DELETE FROM contributors WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete contributor: %w", err)
	}
	return nil
}

const bookColumns = `id, title, publication_date, isbn, publisher_id`

// CreateBook creates a book for an existing publisher
func (db *PostgresDB) CreateBook(ctx context.Context, b models.Book) (models.Book, error) {
	if err := b.Validate(); err != nil {
		return models.Book{}, err
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO books (title, publication_date, isbn, publisher_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		b.Title, b.PublicationDate, b.ISBN, b.PublisherID,
	).Scan(&b.ID)
	if err != nil {
		return models.Book{}, fmt.Errorf("failed to create book: %w", mapError(err))
	}
	return b, nil
}

// GetBook returns a book by ID
func (db *PostgresDB) GetBook(ctx context.Context, id int64) (models.Book, error) {
	rows, _ := db.pool.Query(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	b, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.Book])
	if err != nil {
		return models.Book{}, fmt.Errorf("failed to get book: %w", mapError(err))
	}
	return b, nil
}

// ListBooks returns all books ordered by title
func (db *PostgresDB) ListBooks(ctx context.Context) ([]models.Book, error) {
	rows, _ := db.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title, id`)
	books, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Book])
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", mapError(err))
	}
	return books, nil
}

// UpdateBook updates a book's fields
func (db *PostgresDB) UpdateBook(ctx context.Context, b models.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	err := db.exec(ctx,
		`UPDATE books SET title = $2, publication_date = $3, isbn = $4, publisher_id = $5 WHERE id = $1`,
		b.ID, b.Title, b.PublicationDate, b.ISBN, b.PublisherID)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	return nil
}

// DeleteBook deletes a book, its credits and reviews, and clears it as anyone's favourite
func (db *PostgresDB) DeleteBook(ctx context.Context, id int64) error {
	if err := db.exec(ctx, `DELETE FROM books WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

// ListBookSummaries returns every book with review statistics
func (db *PostgresDB) ListBookSummaries(ctx context.Context) ([]models.BookSummary, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT b.id, b.title, b.publication_date, b.isbn, b.publisher_id, p.name,
			count(r.id), coalesce(avg(r.rating), 0)::float8
		FROM books b
		JOIN publishers p ON p.id = b.publisher_id
		LEFT JOIN reviews r ON r.book_id = b.id
		GROUP BY b.id, p.name
		ORDER BY b.title, b.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list book summaries: %w", mapError(err))
	}
	defer rows.Close()

	var summaries []models.BookSummary
	for rows.Next() {
		var s models.BookSummary
		if err := rows.Scan(&s.Book.ID, &s.Book.Title, &s.Book.PublicationDate, &s.Book.ISBN,
			&s.Book.PublisherID, &s.PublisherName, &s.ReviewCount, &s.AverageRating); err != nil {
			return nil, fmt.Errorf("failed to scan book summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list book summaries: %w", mapError(err))
	}
	return summaries, nil
}

// AddBookContributor credits a contributor on a book
func (db *PostgresDB) AddBookContributor(ctx context.Context, bc models.BookContributor) (models.BookContributor, error) {
	if err := bc.Validate(); err != nil {
		return models.BookContributor{}, err
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO book_contributors (book_id, contributor_id, role) VALUES ($1, $2, $3) RETURNING id`,
		bc.BookID, bc.ContributorID, string(bc.Role),
	).Scan(&bc.ID)
	if err != nil {
		return models.BookContributor{}, fmt.Errorf("failed to add book contributor: %w", mapError(err))
	}
	return bc, nil
}

// ListBookContributors returns the credits of a book
func (db *PostgresDB) ListBookContributors(ctx context.Context, bookID int64) ([]models.BookContributor, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT id, book_id, contributor_id, role FROM book_contributors WHERE book_id = $1 ORDER BY id`, bookID)
	credits, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.BookContributor])
	if err != nil {
		return nil, fmt.Errorf("failed to list book contributors: %w", mapError(err))
	}
	return credits, nil
}

// DeleteBookContributor removes a credit
func (db *PostgresDB) DeleteBookContributor(ctx context.Context, id int64) error {
	if err := db.exec(ctx, `DELETE FROM book_contributors WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete book contributor: %w", err)
	}
	return nil
}

const reviewColumns = `id, content, rating, date_created, date_edited, creator_id, book_id`

// CreateReview creates an unedited review stamped with the database clock
func (db *PostgresDB) CreateReview(ctx context.Context, r models.Review) (models.Review, error) {
	if err := r.Validate(); err != nil {
		return models.Review{}, err
	}
	rows, _ := db.pool.Query(ctx,
		`INSERT INTO reviews (content, rating, date_created, creator_id, book_id)
		VALUES ($1, $2, now(), $3, $4) RETURNING `+reviewColumns,
		r.Content, int(r.Rating), r.CreatorID, r.BookID)
	created, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.Review])
	if err != nil {
		return models.Review{}, fmt.Errorf("failed to create review: %w", mapError(err))
	}
	return created, nil
}

// GetReview returns a review by ID
func (db *PostgresDB) GetReview(ctx context.Context, id int64) (models.Review, error) {
	rows, _ := db.pool.Query(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	r, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.Review])
	if err != nil {
		return models.Review{}, fmt.Errorf("failed to get review: %w", mapError(err))
	}
	return r, nil
}

// ListReviews returns a book's reviews, newest first
func (db *PostgresDB) ListReviews(ctx context.Context, bookID int64) ([]models.Review, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE book_id = $1 ORDER BY date_created DESC, id DESC`, bookID)
	reviews, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Review])
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", mapError(err))
	}
	return reviews, nil
}

// UpdateReview changes content and rating and marks the review as edited
func (db *PostgresDB) UpdateReview(ctx context.Context, r models.Review) (models.Review, error) {
	if err := r.Validate(); err != nil {
		return models.Review{}, err
	}
	rows, _ := db.pool.Query(ctx,
		`UPDATE reviews SET content = $2, rating = $3, date_edited = now()
		WHERE id = $1 RETURNING `+reviewColumns,
		r.ID, r.Content, int(r.Rating))
	updated, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.Review])
	if err != nil {
		return models.Review{}, fmt.Errorf("failed to update review: %w", mapError(err))
	}
	return updated, nil
}

// DeleteReview deletes a review
func (db *PostgresDB) DeleteReview(ctx context.Context, id int64) error {
	if err := db.exec(ctx, `DELETE FROM reviews WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return nil
}

const profileColumns = `id, user_id, location, profile_photo, favourite_book_id`

// CreateReviewerProfile creates the profile of a user
func (db *PostgresDB) CreateReviewerProfile(ctx context.Context, p models.ReviewerProfile) (models.ReviewerProfile, error) {
	if err := p.Validate(); err != nil {
		return models.ReviewerProfile{}, err
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO reviewer_profiles (user_id, location, profile_photo, favourite_book_id)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		p.UserID, p.Location, p.ProfilePhoto, p.FavouriteBookID,
	).Scan(&p.ID)
	if err != nil {
		return models.ReviewerProfile{}, fmt.Errorf("failed to create reviewer profile: %w", mapError(err))
	}
	return p, nil
}

// GetReviewerProfile returns the profile belonging to a user
func (db *PostgresDB) GetReviewerProfile(ctx context.Context, userID int64) (models.ReviewerProfile, error) {
	rows, _ := db.pool.Query(ctx, `SELECT `+profileColumns+` FROM reviewer_profiles WHERE user_id = $1`, userID)
	p, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.ReviewerProfile])
	if err != nil {
		return models.ReviewerProfile{}, fmt.Errorf("failed to get reviewer profile: %w", mapError(err))
	}
	return p, nil
}

// UpdateReviewerProfile updates a profile's fields
func (db *PostgresDB) UpdateReviewerProfile(ctx context.Context, p models.ReviewerProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := db.exec(ctx,
		`UPDATE reviewer_profiles SET user_id = $2, location = $3, profile_photo = $4, favourite_book_id = $5 WHERE id = $1`,
		p.ID, p.UserID, p.Location, p.ProfilePhoto, p.FavouriteBookID)
	if err != nil {
		return fmt.Errorf("failed to update reviewer profile: %w", err)
	}
	return nil
}

// DeleteReviewerProfile deletes a profile
func (db *PostgresDB) DeleteReviewerProfile(ctx context.Context, id int64) error {
	if err := db.exec(ctx, `DELETE FROM reviewer_profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete reviewer profile: %w", err)
	}
	return nil
}
