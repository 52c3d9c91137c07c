package migrate

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookr/internal/schema"
)

var (
	keyA = Key{App: "auth", Name: "0001_initial"}
	keyB = Key{App: "shop", Name: "0001_initial"}
	keyC = Key{App: "shop", Name: "0002_more"}
)

func table(name string, cols ...schema.Column) schema.Table {
	return schema.Table{Name: name, Columns: append([]schema.Column{{Name: "id", Type: "bigserial", PrimaryKey: true}}, cols...)}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("reviews.0002_review_rating_choices_reviewerprofile")
	require.NoError(t, err)
	assert.Equal(t, Key{App: "reviews", Name: "0002_review_rating_choices_reviewerprofile"}, k)
	assert.Equal(t, "reviews.0002_review_rating_choices_reviewerprofile", k.String())

	for _, bad := range []string{"", "reviews", ".0001", "reviews."} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestGraph_Add(t *testing.T) {
	_, err := NewGraph(&Migration{Key: keyA, Version: 1}, &Migration{Key: keyA, Version: 2})
	assert.ErrorIs(t, err, ErrDuplicateMigration)

	_, err = NewGraph(&Migration{Key: keyA, Version: 1}, &Migration{Key: keyB, Version: 1})
	assert.ErrorIs(t, err, ErrDuplicateMigration)

	_, err = NewGraph(&Migration{Key: keyA})
	assert.Error(t, err)
}

func TestGraph_Plan(t *testing.T) {
	g, err := NewGraph(
		&Migration{Key: keyC, Version: 3, Dependencies: []Key{keyA, keyB}},
		&Migration{Key: keyA, Version: 1},
		&Migration{Key: keyB, Version: 2, Dependencies: []Key{keyA}},
	)
	require.NoError(t, err)

	plan, err := g.Plan()
	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, keyA, plan[0].Key)
	assert.Equal(t, keyB, plan[1].Key)
	assert.Equal(t, keyC, plan[2].Key)

	m, ok := g.Migration(keyB)
	require.True(t, ok)
	assert.Equal(t, int64(2), m.Version)
}

func TestGraph_PlanErrors(t *testing.T) {
	g, err := NewGraph(&Migration{Key: keyB, Version: 2, Dependencies: []Key{keyA}})
	require.NoError(t, err)
	_, err = g.Plan()
	assert.ErrorIs(t, err, ErrUnknownDependency)

	g, err = NewGraph(
		&Migration{Key: keyA, Version: 5},
		&Migration{Key: keyB, Version: 2, Dependencies: []Key{keyA}},
	)
	require.NoError(t, err)
	_, err = g.Plan()
	assert.ErrorIs(t, err, ErrDependencyOrder)
}

func TestCompile(t *testing.T) {
	plan := []*Migration{
		{Key: keyA, Version: 1, Operations: []Operation{
			CreateTable{Table: table("books", schema.Column{Name: "title", Type: "text"})},
			CreateTable{Table: table("reviews", schema.Column{Name: "book_id", Type: "bigint",
				References: &schema.ForeignKey{Table: "books", Column: "id", OnDelete: schema.Cascade}})},
		}},
	}

	steps, state, err := Compile(plan)
	require.NoError(t, err)
	require.Len(t, steps, 1)

	assert.Equal(t, []string{
		"CREATE TABLE books (\n    id bigserial PRIMARY KEY,\n    title text NOT NULL\n)",
		"CREATE TABLE reviews (\n    id bigserial PRIMARY KEY,\n    book_id bigint NOT NULL REFERENCES books (id) ON DELETE CASCADE\n)",
		"CREATE INDEX reviews_book_id_idx ON reviews (book_id)",
	}, steps[0].Up)
	assert.Equal(t, []string{"DROP TABLE reviews", "DROP TABLE books"}, steps[0].Down)

	assert.Len(t, state.Tables(), 2)
}

func TestCompile_UnknownReference(t *testing.T) {
	plan := []*Migration{
		{Key: keyA, Version: 1, Operations: []Operation{
			CreateTable{Table: table("reviews", schema.Column{Name: "book_id", Type: "bigint",
				References: &schema.ForeignKey{Table: "books", Column: "id"}})},
		}},
	}
	_, _, err := Compile(plan)
	assert.ErrorIs(t, err, schema.ErrUnknownTable)
	assert.Contains(t, err.Error(), "auth.0001_initial: Create table reviews")
}

func TestAlterColumn_AddChoices(t *testing.T) {
	state := schema.NewRegistry()
	require.NoError(t, state.Register(table("reviews", schema.Column{Name: "rating", Type: "integer"})))

	up, down, err := AlterColumn{
		Table:  "reviews",
		Column: schema.Column{Name: "rating", Type: "integer", Choices: []string{"1", "2", "3"}},
	}.Compile(state)
	require.NoError(t, err)

	assert.Equal(t, []string{"ALTER TABLE reviews ADD CONSTRAINT reviews_rating_check CHECK (rating IN (1, 2, 3))"}, up)
	assert.Equal(t, []string{"ALTER TABLE reviews DROP CONSTRAINT IF EXISTS reviews_rating_check"}, down)

	reviews, _ := state.Table("reviews")
	rating, _ := reviews.Column("rating")
	assert.Equal(t, []string{"1", "2", "3"}, rating.Choices)
}

func TestAlterColumn_ReferenceAndNullability(t *testing.T) {
	state := schema.NewRegistry()
	require.NoError(t, state.Register(table("books")))
	require.NoError(t, state.Register(table("profiles", schema.Column{Name: "book_id", Type: "bigint",
		References: &schema.ForeignKey{Table: "books", Column: "id", OnDelete: schema.Cascade}})))

	up, down, err := AlterColumn{
		Table: "profiles",
		Column: schema.Column{Name: "book_id", Type: "bigint", Nullable: true,
			References: &schema.ForeignKey{Table: "books", Column: "id", OnDelete: schema.SetNull}},
	}.Compile(state)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"DROP INDEX IF EXISTS profiles_book_id_idx",
		"ALTER TABLE profiles DROP CONSTRAINT IF EXISTS profiles_book_id_fkey",
		"ALTER TABLE profiles ALTER COLUMN book_id DROP NOT NULL",
		"ALTER TABLE profiles ADD CONSTRAINT profiles_book_id_fkey FOREIGN KEY (book_id) REFERENCES books (id) ON DELETE SET NULL",
		"CREATE INDEX profiles_book_id_idx ON profiles (book_id)",
	}, up)
	assert.Equal(t, []string{
		"DROP INDEX IF EXISTS profiles_book_id_idx",
		"ALTER TABLE profiles DROP CONSTRAINT IF EXISTS profiles_book_id_fkey",
		"ALTER TABLE profiles ALTER COLUMN book_id SET NOT NULL",
		"ALTER TABLE profiles ADD CONSTRAINT profiles_book_id_fkey FOREIGN KEY (book_id) REFERENCES books (id) ON DELETE CASCADE",
		"CREATE INDEX profiles_book_id_idx ON profiles (book_id)",
	}, down)
}

func TestAlterColumn_Errors(t *testing.T) {
	state := schema.NewRegistry()
	require.NoError(t, state.Register(table("books", schema.Column{Name: "title", Type: "text"})))

	_, _, err := AlterColumn{Table: "missing", Column: schema.Column{Name: "x", Type: "text"}}.Compile(state)
	assert.ErrorIs(t, err, schema.ErrUnknownTable)

	_, _, err = AlterColumn{Table: "books", Column: schema.Column{Name: "x", Type: "text"}}.Compile(state)
	assert.Error(t, err)

	_, _, err = AlterColumn{Table: "books", Column: schema.Column{Name: "title", Type: "text", PrimaryKey: true}}.Compile(state)
	assert.Error(t, err)
}

func TestAddColumn(t *testing.T) {
	state := schema.NewRegistry()
	require.NoError(t, state.Register(table("users")))
	require.NoError(t, state.Register(table("books")))

	up, down, err := AddColumn{
		Table: "books",
		Column: schema.Column{Name: "owner_id", Type: "bigint", Nullable: true,
			References: &schema.ForeignKey{Table: "users", Column: "id", OnDelete: schema.SetNull}},
	}.Compile(state)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ALTER TABLE books ADD COLUMN owner_id bigint REFERENCES users (id) ON DELETE SET NULL",
		"CREATE INDEX books_owner_id_idx ON books (owner_id)",
	}, up)
	assert.Equal(t, []string{"ALTER TABLE books DROP COLUMN owner_id"}, down)

	_, _, err = AddColumn{Table: "books", Column: schema.Column{Name: "owner_id", Type: "bigint"}}.Compile(state)
	assert.Error(t, err)
}

func TestDropTable(t *testing.T) {
	state := schema.NewRegistry()
	require.NoError(t, state.Register(table("books")))
	require.NoError(t, state.Register(table("reviews", schema.Column{Name: "book_id", Type: "bigint",
		References: &schema.ForeignKey{Table: "books", Column: "id", OnDelete: schema.Cascade}})))

	_, _, err := DropTable{Name: "books"}.Compile(state)
	assert.Error(t, err, "books is still referenced")

	up, down, err := DropTable{Name: "reviews"}.Compile(state)
	require.NoError(t, err)
	assert.Equal(t, []string{"DROP TABLE reviews"}, up)
	require.Len(t, down, 2)
	assert.Equal(t, "CREATE INDEX reviews_book_id_idx ON reviews (book_id)", down[1])

	_, ok := state.Table("reviews")
	assert.False(t, ok)
}

func TestRunSQL(t *testing.T) {
	op := RunSQL{Up: []string{"SELECT 1"}}
	up, down, err := op.Compile(schema.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1"}, up)
	assert.Empty(t, down)
	assert.Equal(t, "Raw SQL operation", op.Describe())
}

func TestNewRunner_ClosesDBOnError(t *testing.T) {
	// sql.Open does not dial, so no server is needed
	db, err := sql.Open("pgx", "postgres://bookr@127.0.0.1:1/bookr")
	require.NoError(t, err)

	g, err := NewGraph(&Migration{
		Key:     keyA,
		Version: 1,
		Operations: []Operation{
			AddColumn{Table: "missing", Column: schema.Column{Name: "x", Type: "text"}},
		},
	})
	require.NoError(t, err)

	_, err = NewRunner(db, g, zap.NewNop())
	require.Error(t, err)
	assert.EqualError(t, db.PingContext(context.Background()), "sql: database is closed")
}
