package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"bookr/internal/models"
	"bookr/internal/storage"
)

// Section headers of a catalogue CSV. Each header row is followed by data
// rows of that kind until the next header.
const (
	SectionPublisher       = "content:Publisher"
	SectionBook            = "content:Book"
	SectionContributor     = "content:Contributor"
	SectionBookContributor = "content:BookContributor"
	SectionReview          = "content:Review"
)

// Row layouts per section:
//
//	Publisher:       name, website, email
//	Book:            title, publication_date (YYYY-MM-DD), isbn, publisher name
//	Contributor:     first_names, last_names, email
//	BookContributor: book title, contributor email, role
//	Review:          content, rating, reviewer email, book title
var sectionWidths = map[string]int{
	SectionPublisher:       3,
	SectionBook:            4,
	SectionContributor:     3,
	SectionBookContributor: 3,
	SectionReview:          4,
}

// ImportStats counts the rows an import created. Rows matching existing
// records are reused and not counted.
type ImportStats struct {
	Users            int
	Publishers       int
	Contributors     int
	Books            int
	BookContributors int
	Reviews          int
}

// ImportError points at the CSV line that failed.
type ImportError struct {
	Line int
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// importer resolves natural keys (publisher name, book title, contributor
// and reviewer email) to stored IDs.
type importer struct {
	svc          *Service
	stats        ImportStats
	publishers   map[string]int64
	books        map[string]int64
	contributors map[string]int64
	users        map[string]int64
}

// ImportCSV loads a sectioned catalogue file. Records already present are
// matched by natural key, so importing the same file twice creates nothing
// new. The first failing row stops the import.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (ImportStats, error) {
	imp, err := s.newImporter(ctx)
	if err != nil {
		return ImportStats{}, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	section := ""
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imp.stats, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if header := strings.TrimSpace(record[0]); strings.HasPrefix(header, "content:") {
			if _, ok := sectionWidths[header]; !ok {
				return imp.stats, &ImportError{Line: line, Err: fmt.Errorf("unknown section %q", header)}
			}
			section = header
			continue
		}
		if isBlank(record) {
			continue
		}
		if section == "" {
			return imp.stats, &ImportError{Line: line, Err: errors.New("row before any section header")}
		}
		if want := sectionWidths[section]; len(record) < want {
			return imp.stats, &ImportError{Line: line, Err: fmt.Errorf("%s row has %d fields, want %d", section, len(record), want)}
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		if err := imp.row(ctx, section, record); err != nil {
			return imp.stats, &ImportError{Line: line, Err: err}
		}
	}

	s.logger.Info("Catalogue imported",
		zap.Int("users", imp.stats.Users),
		zap.Int("publishers", imp.stats.Publishers),
		zap.Int("contributors", imp.stats.Contributors),
		zap.Int("books", imp.stats.Books),
		zap.Int("book_contributors", imp.stats.BookContributors),
		zap.Int("reviews", imp.stats.Reviews),
	)
	return imp.stats, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (s *Service) newImporter(ctx context.Context) (*importer, error) {
	imp := &importer{
		svc:          s,
		publishers:   make(map[string]int64),
		books:        make(map[string]int64),
		contributors: make(map[string]int64),
		users:        make(map[string]int64),
	}

	publishers, err := s.store.ListPublishers(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range publishers {
		imp.publishers[p.Name] = p.ID
	}
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		imp.books[b.Title] = b.ID
	}
	contributors, err := s.store.ListContributors(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range contributors {
		imp.contributors[strings.ToLower(c.Email)] = c.ID
	}
	return imp, nil
}

func (imp *importer) row(ctx context.Context, section string, f []string) error {
	switch section {
	case SectionPublisher:
		return imp.publisher(ctx, f)
	case SectionBook:
		return imp.book(ctx, f)
	case SectionContributor:
		return imp.contributor(ctx, f)
	case SectionBookContributor:
		return imp.bookContributor(ctx, f)
	case SectionReview:
		return imp.review(ctx, f)
	}
	return fmt.Errorf("unknown section %q", section)
}

func (imp *importer) publisher(ctx context.Context, f []string) error {
	if _, ok := imp.publishers[f[0]]; ok {
		return nil
	}
	p, err := imp.svc.store.CreatePublisher(ctx, models.Publisher{Name: f[0], Website: f[1], Email: f[2]})
	if err != nil {
		return err
	}
	imp.publishers[p.Name] = p.ID
	imp.stats.Publishers++
	return nil
}

func (imp *importer) book(ctx context.Context, f []string) error {
	if _, ok := imp.books[f[0]]; ok {
		return nil
	}
	published, err := time.Parse(time.DateOnly, f[1])
	if err != nil {
		return fmt.Errorf("invalid publication date %q: %w", f[1], err)
	}
	publisherID, ok := imp.publishers[f[3]]
	if !ok {
		return fmt.Errorf("unknown publisher %q", f[3])
	}
	b, err := imp.svc.store.CreateBook(ctx, models.Book{
		Title:           f[0],
		PublicationDate: published,
		ISBN:            f[2],
		PublisherID:     publisherID,
	})
	if err != nil {
		return err
	}
	imp.books[b.Title] = b.ID
	imp.stats.Books++
	return nil
}

func (imp *importer) contributor(ctx context.Context, f []string) error {
	key := strings.ToLower(f[2])
	if _, ok := imp.contributors[key]; ok {
		return nil
	}
	c, err := imp.svc.store.CreateContributor(ctx, models.Contributor{FirstNames: f[0], LastNames: f[1], Email: f[2]})
	if err != nil {
		return err
	}
	imp.contributors[key] = c.ID
	imp.stats.Contributors++
	return nil
}

func (imp *importer) bookContributor(ctx context.Context, f []string) error {
	bookID, ok := imp.books[f[0]]
	if !ok {
		return fmt.Errorf("unknown book %q", f[0])
	}
	contributorID, ok := imp.contributors[strings.ToLower(f[1])]
	if !ok {
		return fmt.Errorf("unknown contributor %q", f[1])
	}
	role, err := models.ParseContributionRole(f[2])
	if err != nil {
		return err
	}

	existing, err := imp.svc.store.ListBookContributors(ctx, bookID)
	if err != nil {
		return err
	}
	for _, bc := range existing {
		if bc.ContributorID == contributorID && bc.Role == role {
			return nil
		}
	}

	_, err = imp.svc.store.AddBookContributor(ctx, models.BookContributor{
		BookID:        bookID,
		ContributorID: contributorID,
		Role:          role,
	})
	if err != nil {
		return err
	}
	imp.stats.BookContributors++
	return nil
}

func (imp *importer) review(ctx context.Context, f []string) error {
	rating, err := models.ParseRating(f[1])
	if err != nil {
		return err
	}
	creatorID, err := imp.user(ctx, f[2])
	if err != nil {
		return err
	}
	bookID, ok := imp.books[f[3]]
	if !ok {
		return fmt.Errorf("unknown book %q", f[3])
	}

	existing, err := imp.svc.store.ListReviews(ctx, bookID)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.CreatorID == creatorID && r.Content == f[0] {
			return nil
		}
	}

	_, err = imp.svc.CreateReview(ctx, models.Review{
		Content:   f[0],
		Rating:    rating,
		CreatorID: creatorID,
		BookID:    bookID,
	})
	if err != nil {
		return err
	}
	imp.stats.Reviews++
	return nil
}

// user finds the reviewer account for an email address, or creates one.
// New accounts take the address's local part as username, with a numeric
// suffix when another account already holds that name.
func (imp *importer) user(ctx context.Context, email string) (int64, error) {
	key := strings.ToLower(email)
	if id, ok := imp.users[key]; ok {
		return id, nil
	}

	u, err := imp.svc.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		var username string
		username, err = imp.freeUsername(ctx, key)
		if err != nil {
			return 0, err
		}
		u, err = imp.svc.store.CreateUser(ctx, models.User{Username: username, Email: email})
		if err != nil {
			return 0, err
		}
		imp.stats.Users++
	default:
		return 0, err
	}

	imp.users[key] = u.ID
	return u.ID, nil
}

func (imp *importer) freeUsername(ctx context.Context, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	name := local
	for n := 2; ; n++ {
		_, err := imp.svc.store.GetUserByUsername(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		name = local + strconv.Itoa(n)
	}
}
