package models

import (
	"fmt"
	"strconv"

	"bookr/internal/schema"
)

// Table names.
const (
	TableUsers            = "users"
	TablePublishers       = "publishers"
	TableContributors     = "contributors"
	TableBooks            = "books"
	TableBookContributors = "book_contributors"
	TableReviews          = "reviews"
	TableReviewerProfiles = "reviewer_profiles"
)

func idColumn() schema.Column {
	return schema.Column{Name: "id", Type: "bigserial", PrimaryKey: true}
}

func varchar(n int) string {
	return fmt.Sprintf("varchar(%d)", n)
}

func reference(name, table string, onDelete schema.OnDelete, nullable bool) schema.Column {
	return schema.Column{
		Name:       name,
		Type:       "bigint",
		Nullable:   nullable,
		References: &schema.ForeignKey{Table: table, Column: "id", OnDelete: onDelete},
	}
}

func oneToOne(name, table string, onDelete schema.OnDelete) schema.Column {
	c := reference(name, table, onDelete, false)
	c.Unique = true
	return c
}

// RoleChoices are the stored values accepted by book_contributors.role.
func RoleChoices() []string {
	out := make([]string, len(ContributionRoles))
	for i, r := range ContributionRoles {
		out[i] = string(r)
	}
	return out
}

// RatingChoices are the stored values accepted by reviews.rating.
func RatingChoices() []string {
	out := make([]string, len(Ratings))
	for i, r := range Ratings {
		out[i] = strconv.Itoa(int(r))
	}
	return out
}

// Tables is the current declared shape of every Bookr table, parents first.
func Tables() []schema.Table {
	return []schema.Table{
		{
			Name: TableUsers,
			Columns: []schema.Column{
				idColumn(),
				{Name: "username", Type: varchar(MaxUsernameLength), Unique: true},
				{Name: "email", Type: varchar(MaxEmailLength)},
				{Name: "date_joined", Type: "timestamptz"},
			},
		},
		{
			Name: TablePublishers,
			Columns: []schema.Column{
				idColumn(),
				{Name: "name", Type: varchar(MaxNameLength)},
				{Name: "website", Type: varchar(MaxURLLength)},
				{Name: "email", Type: varchar(MaxEmailLength)},
			},
		},
		{
			Name: TableContributors,
			Columns: []schema.Column{
				idColumn(),
				{Name: "first_names", Type: varchar(MaxNameLength)},
				{Name: "last_names", Type: "text"},
				{Name: "email", Type: varchar(MaxEmailLength)},
			},
		},
		{
			Name: TableBooks,
			Columns: []schema.Column{
				idColumn(),
				{Name: "title", Type: varchar(MaxNameLength)},
				{Name: "publication_date", Type: "date"},
				{Name: "isbn", Type: varchar(MaxISBNLength)},
				reference("publisher_id", TablePublishers, schema.Cascade, false),
			},
		},
		{
			Name: TableBookContributors,
			Columns: []schema.Column{
				idColumn(),
				reference("book_id", TableBooks, schema.Cascade, false),
				reference("contributor_id", TableContributors, schema.Cascade, false),
				{Name: "role", Type: "text", Choices: RoleChoices()},
			},
		},
		{
			Name: TableReviews,
			Columns: []schema.Column{
				idColumn(),
				{Name: "content", Type: "text"},
				{Name: "rating", Type: "integer", Choices: RatingChoices()},
				{Name: "date_created", Type: "timestamptz"},
				{Name: "date_edited", Type: "timestamptz", Nullable: true},
				reference("creator_id", TableUsers, schema.Cascade, false),
				reference("book_id", TableBooks, schema.Cascade, false),
			},
		},
		{
			Name: TableReviewerProfiles,
			Columns: []schema.Column{
				idColumn(),
				{Name: "location", Type: varchar(MaxLocationLength)},
				{Name: "profile_photo", Type: varchar(MaxPhotoLength), Nullable: true},
				reference("favourite_book_id", TableBooks, schema.SetNull, true),
				oneToOne("user_id", TableUsers, schema.Cascade),
			},
		},
	}
}

// NewRegistry registers every Bookr table with a fresh schema registry.
func NewRegistry() (*schema.Registry, error) {
	r := schema.NewRegistry()
	for _, t := range Tables() {
		if err := r.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register table %s: %w", t.Name, err)
		}
	}
	return r, nil
}
