// Package migrations is the schema history of Bookr. Table shapes are frozen
// here as they were when each migration was written; the current shape lives
// in models.Tables.
package migrations

import (
	"bookr/internal/migrate"
	"bookr/internal/schema"
)

var (
	AuthInitial                         = migrate.Key{App: "auth", Name: "0001_initial"}
	ReviewsInitial                      = migrate.Key{App: "reviews", Name: "0001_initial"}
	ReviewsRatingChoicesReviewerProfile = migrate.Key{App: "reviews", Name: "0002_review_rating_choices_reviewerprofile"}
)

func id() schema.Column {
	return schema.Column{Name: "id", Type: "bigserial", PrimaryKey: true}
}

func fk(name, table string, onDelete schema.OnDelete) schema.Column {
	return schema.Column{
		Name:       name,
		Type:       "bigint",
		Nullable:   onDelete == schema.SetNull,
		References: &schema.ForeignKey{Table: table, Column: "id", OnDelete: onDelete},
	}
}

func oneToOne(name, table string, onDelete schema.OnDelete) schema.Column {
	c := fk(name, table, onDelete)
	c.Unique = true
	return c
}

// All returns every Bookr migration.
func All() []*migrate.Migration {
	return []*migrate.Migration{
		{
			Key:     AuthInitial,
			Version: 1,
			Operations: []migrate.Operation{
				migrate.CreateTable{Table: schema.Table{
					Name: "users",
					Columns: []schema.Column{
						id(),
						{Name: "username", Type: "varchar(150)", Unique: true},
						{Name: "email", Type: "varchar(254)"},
						{Name: "date_joined", Type: "timestamptz"},
					},
				}},
			},
		},
		{
			Key:          ReviewsInitial,
			Version:      2,
			Dependencies: []migrate.Key{AuthInitial},
			Operations: []migrate.Operation{
				migrate.CreateTable{Table: schema.Table{
					Name: "publishers",
					Columns: []schema.Column{
						id(),
						{Name: "name", Type: "varchar(255)"},
						{Name: "website", Type: "varchar(200)"},
						{Name: "email", Type: "varchar(254)"},
					},
				}},
				migrate.CreateTable{Table: schema.Table{
					Name: "contributors",
					Columns: []schema.Column{
						id(),
						{Name: "first_names", Type: "varchar(255)"},
						{Name: "last_names", Type: "text"},
						{Name: "email", Type: "varchar(254)"},
					},
				}},
				migrate.CreateTable{Table: schema.Table{
					Name: "books",
					Columns: []schema.Column{
						id(),
						{Name: "title", Type: "varchar(255)"},
						{Name: "publication_date", Type: "date"},
						{Name: "isbn", Type: "varchar(20)"},
						fk("publisher_id", "publishers", schema.Cascade),
					},
				}},
				migrate.CreateTable{Table: schema.Table{
					Name: "book_contributors",
					Columns: []schema.Column{
						id(),
						fk("book_id", "books", schema.Cascade),
						fk("contributor_id", "contributors", schema.Cascade),
						{Name: "role", Type: "text", Choices: []string{"AUTHOR", "CO_AUTHOR", "EDITOR"}},
					},
				}},
				migrate.CreateTable{Table: schema.Table{
					Name: "reviews",
					Columns: []schema.Column{
						id(),
						{Name: "content", Type: "text"},
						{Name: "rating", Type: "integer"},
						{Name: "date_created", Type: "timestamptz"},
						{Name: "date_edited", Type: "timestamptz", Nullable: true},
						fk("creator_id", "users", schema.Cascade),
						fk("book_id", "books", schema.Cascade),
					},
				}},
			},
		},
		{
			Key:          ReviewsRatingChoicesReviewerProfile,
			Version:      3,
			Dependencies: []migrate.Key{AuthInitial, ReviewsInitial},
			Operations: []migrate.Operation{
				migrate.AlterColumn{
					Table:  "reviews",
					Column: schema.Column{Name: "rating", Type: "integer", Choices: []string{"1", "2", "3", "4", "5"}},
				},
				migrate.CreateTable{Table: schema.Table{
					Name: "reviewer_profiles",
					Columns: []schema.Column{
						id(),
						{Name: "location", Type: "varchar(100)"},
						{Name: "profile_photo", Type: "varchar(100)", Nullable: true},
						fk("favourite_book_id", "books", schema.SetNull),
						oneToOne("user_id", "users", schema.Cascade),
					},
				}},
			},
		},
	}
}

// Graph returns the validated Bookr migration graph.
func Graph() (*migrate.Graph, error) {
	return migrate.NewGraph(All()...)
}
