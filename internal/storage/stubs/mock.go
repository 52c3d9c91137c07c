package stubs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bookr/internal/models"
	"bookr/internal/storage"
)

var _ storage.Storage = (*MockDB)(nil)

// MockDB is an in-memory implementation of the Storage interface. It applies
// the same foreign key, cascade, set-null and uniqueness rules as the
// Postgres schema.
type MockDB struct {
	mu           sync.RWMutex
	seq          map[string]int64
	users        map[int64]models.User
	publishers   map[int64]models.Publisher
	contributors map[int64]models.Contributor
	books        map[int64]models.Book
	credits      map[int64]models.BookContributor
	reviews      map[int64]models.Review
	profiles     map[int64]models.ReviewerProfile
	now          func() time.Time
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		seq:          make(map[string]int64),
		users:        make(map[int64]models.User),
		publishers:   make(map[int64]models.Publisher),
		contributors: make(map[int64]models.Contributor),
		books:        make(map[int64]models.Book),
		credits:      make(map[int64]models.BookContributor),
		reviews:      make(map[int64]models.Review),
		profiles:     make(map[int64]models.ReviewerProfile),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Initialize does nothing for the mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// Close does nothing for the mock DB
func (m *MockDB) Close() error {
	return nil
}

func (m *MockDB) nextID(table string) int64 {
	m.seq[table]++
	return m.seq[table]
}

func fkError(table, column string) error {
	return fmt.Errorf("%w (%s_%s_fkey)", storage.ErrForeignKeyViolation, table, column)
}

func uniqueError(table, column string) error {
	return fmt.Errorf("%w (%s_%s_key)", storage.ErrUniqueViolation, table, column)
}

func notFound(what string) error {
	return fmt.Errorf("failed to get %s: %w", what, storage.ErrNotFound)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyReview(r models.Review) models.Review {
	r.DateEdited = copyTime(r.DateEdited)
	return r
}

func copyProfile(p models.ReviewerProfile) models.ReviewerProfile {
	if p.ProfilePhoto != nil {
		v := *p.ProfilePhoto
		p.ProfilePhoto = &v
	}
	if p.FavouriteBookID != nil {
		v := *p.FavouriteBookID
		p.FavouriteBookID = &v
	}
	return p
}

// CreateUser creates a user account
func (m *MockDB) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if err := user.Validate(); err != nil {
		return models.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return models.User{}, fmt.Errorf("failed to create user: %w", uniqueError("users", "username"))
		}
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = m.now()
	}
	user.ID = m.nextID("users")
	m.users[user.ID] = user
	return user, nil
}

// GetUser returns a user by ID
func (m *MockDB) GetUser(ctx context.Context, id int64) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return models.User{}, notFound("user")
	}
	return u, nil
}

// GetUserByUsername returns a user by username
func (m *MockDB) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, notFound("user")
}

// GetUserByEmail returns the oldest user with the given e-mail address
func (m *MockDB) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *models.User
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) && (found == nil || u.ID < found.ID) {
			found = &u
		}
	}
	if found == nil {
		return models.User{}, notFound("user")
	}
	return *found, nil
}

// DeleteUser deletes a user together with their reviews and profile
func (m *MockDB) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("failed to delete user: %w", storage.ErrNotFound)
	}
	for rid, r := range m.reviews {
		if r.CreatorID == id {
			delete(m.reviews, rid)
		}
	}
	for pid, p := range m.profiles {
		if p.UserID == id {
			delete(m.profiles, pid)
		}
	}
	delete(m.users, id)
	return nil
}

// CreatePublisher creates a publisher
func (m *MockDB) CreatePublisher(ctx context.Context, p models.Publisher) (models.Publisher, error) {
	if err := p.Validate(); err != nil {
		return models.Publisher{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.nextID("publishers")
	m.publishers[p.ID] = p
	return p, nil
}

// GetPublisher returns a publisher by ID
func (m *MockDB) GetPublisher(ctx context.Context, id int64) (models.Publisher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.publishers[id]
	if !ok {
		return models.Publisher{}, notFound("publisher")
	}
	return p, nil
}

// ListPublishers returns all publishers ordered by name
func (m *MockDB) ListPublishers(ctx context.Context) ([]models.Publisher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var publishers []models.Publisher
	for _, p := range m.publishers {
		publishers = append(publishers, p)
	}
	sort.Slice(publishers, func(i, j int) bool {
		if publishers[i].Name != publishers[j].Name {
			return publishers[i].Name < publishers[j].Name
		}
		return publishers[i].ID < publishers[j].ID
	})
	return publishers, nil
}

// UpdatePublisher updates a publisher's fields
func (m *MockDB) UpdatePublisher(ctx context.Context, p models.Publisher) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.publishers[p.ID]; !ok {
		return fmt.Errorf("failed to update publisher: %w", storage.ErrNotFound)
	}
	m.publishers[p.ID] = p
	return nil
}

// DeletePublisher deletes a publisher and its books
func (m *MockDB) DeletePublisher(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.publishers[id]; !ok {
		return fmt.Errorf("failed to delete publisher: %w", storage.ErrNotFound)
	}
	for bid, b := range m.books {
		if b.PublisherID == id {
			m.deleteBookLocked(bid)
		}
	}
	delete(m.publishers, id)
	return nil
}

// CreateContributor creates a contributor
func (m *MockDB) CreateContributor(ctx context.Context, c models.Contributor) (models.Contributor, error) {
	if err := c.Validate(); err != nil {
		return models.Contributor{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.nextID("contributors")
	m.contributors[c.ID] = c
	return c, nil
}

// GetContributor returns a contributor by ID
func (m *MockDB) GetContributor(ctx context.Context, id int64) (models.Contributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contributors[id]
	if !ok {
		return models.Contributor{}, notFound("contributor")
	}
	return c, nil
}

// ListContributors returns all contributors ordered by last then first names
func (m *MockDB) ListContributors(ctx context.Context) ([]models.Contributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var contributors []models.Contributor
	for _, c := range m.contributors {
		contributors = append(contributors, c)
	}
	sort.Slice(contributors, func(i, j int) bool {
		a, b := contributors[i], contributors[j]
		if a.LastNames != b.LastNames {
			return a.LastNames < b.LastNames
		}
		if a.FirstNames != b.FirstNames {
			return a.FirstNames < b.FirstNames
		}
		return a.ID < b.ID
	})
	return contributors, nil
}

// UpdateContributor updates a contributor's fields
func (m *MockDB) UpdateContributor(ctx context.Context, c models.Contributor) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contributors[c.ID]; !ok {
		return fmt.Errorf("failed to update contributor: %w", storage.ErrNotFound)
	}
	m.contributors[c.ID] = c
	return nil
}

// DeleteContributor deletes a contributor and their book credits
func (m *MockDB) DeleteContributor(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contributors[id]; !ok {
		return fmt.Errorf("failed to delete contributor: %w", storage.ErrNotFound)
	}
	for cid, bc := range m.credits {
		if bc.ContributorID == id {
			delete(m.credits, cid)
		}
	}
	delete(m.contributors, id)
	return nil
}

// CreateBook creates a book for an existing publisher
func (m *MockDB) CreateBook(ctx context.Context, b models.Book) (models.Book, error) {
	if err := b.Validate(); err != nil {
		return models.Book{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.publishers[b.PublisherID]; !ok {
		return models.Book{}, fmt.Errorf("failed to create book: %w", fkError("books", "publisher_id"))
	}
	b.ID = m.nextID("books")
	m.books[b.ID] = b
	return b, nil
}

// GetBook returns a book by ID
func (m *MockDB) GetBook(ctx context.Context, id int64) (models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.books[id]
	if !ok {
		return models.Book{}, notFound("book")
	}
	return b, nil
}

// ListBooks returns all books ordered by title
func (m *MockDB) ListBooks(ctx context.Context) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sortedBooksLocked(), nil
}

func (m *MockDB) sortedBooksLocked() []models.Book {
	var books []models.Book
	for _, b := range m.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
	return books
}

// UpdateBook updates a book's fields
func (m *MockDB) UpdateBook(ctx context.Context, b models.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[b.ID]; !ok {
		return fmt.Errorf("failed to update book: %w", storage.ErrNotFound)
	}
	if _, ok := m.publishers[b.PublisherID]; !ok {
		return fmt.Errorf("failed to update book: %w", fkError("books", "publisher_id"))
	}
	m.books[b.ID] = b
	return nil
}

// DeleteBook deletes a book, its credits and reviews, and clears it as anyone's favourite
func (m *MockDB) DeleteBook(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[id]; !ok {
		return fmt.Errorf("failed to delete book: %w", storage.ErrNotFound)
	}
	m.deleteBookLocked(id)
	return nil
}

func (m *MockDB) deleteBookLocked(id int64) {
	for cid, bc := range m.credits {
		if bc.BookID == id {
			delete(m.credits, cid)
		}
	}
	for rid, r := range m.reviews {
		if r.BookID == id {
			delete(m.reviews, rid)
		}
	}
	for pid, p := range m.profiles {
		if p.FavouriteBookID != nil && *p.FavouriteBookID == id {
			p.FavouriteBookID = nil
			m.profiles[pid] = p
		}
	}
	delete(m.books, id)
}

// ListBookSummaries returns every book with review statistics
func (m *MockDB) ListBookSummaries(ctx context.Context) ([]models.BookSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type acc struct {
		count int
		total int
	}
	stats := make(map[int64]acc)
	for _, r := range m.reviews {
		a := stats[r.BookID]
		a.count++
		a.total += int(r.Rating)
		stats[r.BookID] = a
	}

	var summaries []models.BookSummary
	for _, b := range m.sortedBooksLocked() {
		s := models.BookSummary{Book: b, PublisherName: m.publishers[b.PublisherID].Name}
		if a, ok := stats[b.ID]; ok {
			s.ReviewCount = a.count
			s.AverageRating = float64(a.total) / float64(a.count)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// AddBookContributor credits a contributor on a book
func (m *MockDB) AddBookContributor(ctx context.Context, bc models.BookContributor) (models.BookContributor, error) {
	if err := bc.Validate(); err != nil {
		return models.BookContributor{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[bc.BookID]; !ok {
		return models.BookContributor{}, fmt.Errorf("failed to add book contributor: %w", fkError("book_contributors", "book_id"))
	}
	if _, ok := m.contributors[bc.ContributorID]; !ok {
		return models.BookContributor{}, fmt.Errorf("failed to add book contributor: %w", fkError("book_contributors", "contributor_id"))
	}
	bc.ID = m.nextID("book_contributors")
	m.credits[bc.ID] = bc
	return bc, nil
}

// ListBookContributors returns the credits of a book
func (m *MockDB) ListBookContributors(ctx context.Context, bookID int64) ([]models.BookContributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var credits []models.BookContributor
	for _, bc := range m.credits {
		if bc.BookID == bookID {
			credits = append(credits, bc)
		}
	}
	sort.Slice(credits, func(i, j int) bool {
		return credits[i].ID < credits[j].ID
	})
	return credits, nil
}

// DeleteBookContributor removes a credit
func (m *MockDB) DeleteBookContributor(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.credits[id]; !ok {
		return fmt.Errorf("failed to delete book contributor: %w", storage.ErrNotFound)
	}
	delete(m.credits, id)
	return nil
}

// CreateReview creates an unedited review
func (m *MockDB) CreateReview(ctx context.Context, r models.Review) (models.Review, error) {
	if err := r.Validate(); err != nil {
		return models.Review{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[r.CreatorID]; !ok {
		return models.Review{}, fmt.Errorf("failed to create review: %w", fkError("reviews", "creator_id"))
	}
	if _, ok := m.books[r.BookID]; !ok {
		return models.Review{}, fmt.Errorf("failed to create review: %w", fkError("reviews", "book_id"))
	}
	r.ID = m.nextID("reviews")
	r.DateCreated = m.now()
	r.DateEdited = nil
	m.reviews[r.ID] = r
	return copyReview(r), nil
}

// GetReview returns a review by ID
func (m *MockDB) GetReview(ctx context.Context, id int64) (models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reviews[id]
	if !ok {
		return models.Review{}, notFound("review")
	}
	return copyReview(r), nil
}

// ListReviews returns a book's reviews, newest first
func (m *MockDB) ListReviews(ctx context.Context, bookID int64) ([]models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var reviews []models.Review
	for _, r := range m.reviews {
		if r.BookID == bookID {
			reviews = append(reviews, copyReview(r))
		}
	}
	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].DateCreated.Equal(reviews[j].DateCreated) {
			return reviews[i].DateCreated.After(reviews[j].DateCreated)
		}
		return reviews[i].ID > reviews[j].ID
	})
	return reviews, nil
}

// UpdateReview changes content and rating and marks the review as edited
func (m *MockDB) UpdateReview(ctx context.Context, r models.Review) (models.Review, error) {
	if err := r.Validate(); err != nil {
		return models.Review{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.reviews[r.ID]
	if !ok {
		return models.Review{}, fmt.Errorf("failed to update review: %w", storage.ErrNotFound)
	}
	edited := m.now()
	stored.Content = r.Content
	stored.Rating = r.Rating
	stored.DateEdited = &edited
	m.reviews[r.ID] = stored
	return copyReview(stored), nil
}

// DeleteReview deletes a review
func (m *MockDB) DeleteReview(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reviews[id]; !ok {
		return fmt.Errorf("failed to delete review: %w", storage.ErrNotFound)
	}
	delete(m.reviews, id)
	return nil
}

func (m *MockDB) checkProfileLocked(p models.ReviewerProfile) error {
	if _, ok := m.users[p.UserID]; !ok {
		return fkError("reviewer_profiles", "user_id")
	}
	if p.FavouriteBookID != nil {
		if _, ok := m.books[*p.FavouriteBookID]; !ok {
			return fkError("reviewer_profiles", "favourite_book_id")
		}
	}
	for id, other := range m.profiles {
		if id != p.ID && other.UserID == p.UserID {
			return uniqueError("reviewer_profiles", "user_id")
		}
	}
	return nil
}

// CreateReviewerProfile creates the profile of a user
func (m *MockDB) CreateReviewerProfile(ctx context.Context, p models.ReviewerProfile) (models.ReviewerProfile, error) {
	if err := p.Validate(); err != nil {
		return models.ReviewerProfile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = 0
	if err := m.checkProfileLocked(p); err != nil {
		return models.ReviewerProfile{}, fmt.Errorf("failed to create reviewer profile: %w", err)
	}
	p.ID = m.nextID("reviewer_profiles")
	m.profiles[p.ID] = copyProfile(p)
	return copyProfile(p), nil
}

// GetReviewerProfile returns the profile belonging to a user
func (m *MockDB) GetReviewerProfile(ctx context.Context, userID int64) (models.ReviewerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.profiles {
		if p.UserID == userID {
			return copyProfile(p), nil
		}
	}
	return models.ReviewerProfile{}, notFound("reviewer profile")
}

// UpdateReviewerProfile updates a profile's fields
func (m *MockDB) UpdateReviewerProfile(ctx context.Context, p models.ReviewerProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[p.ID]; !ok {
		return fmt.Errorf("failed to update reviewer profile: %w", storage.ErrNotFound)
	}
	if err := m.checkProfileLocked(p); err != nil {
		return fmt.Errorf("failed to update reviewer profile: %w", err)
	}
	m.profiles[p.ID] = copyProfile(p)
	return nil
}

// DeleteReviewerProfile deletes a profile
func (m *MockDB) DeleteReviewerProfile(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[id]; !ok {
		return fmt.Errorf("failed to delete reviewer profile: %w", storage.ErrNotFound)
	}
	delete(m.profiles, id)
	return nil
}
