package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumn_Definition(t *testing.T) {
	tests := []struct {
		name   string
		column Column
		want   string
	}{
		{
			name:   "primary key",
			column: Column{Name: "id", Type: "bigserial", PrimaryKey: true},
			want:   "id bigserial PRIMARY KEY",
		},
		{
			name:   "required",
			column: Column{Name: "title", Type: "varchar(255)"},
			want:   "title varchar(255) NOT NULL",
		},
		{
			name:   "nullable",
			column: Column{Name: "date_edited", Type: "timestamptz", Nullable: true},
			want:   "date_edited timestamptz",
		},
		{
			name: "cascade",
			column: Column{Name: "book_id", Type: "bigint",
				References: &ForeignKey{Table: "books", Column: "id", OnDelete: Cascade}},
			want: "book_id bigint NOT NULL REFERENCES books (id) ON DELETE CASCADE",
		},
		{
			name: "set null",
			column: Column{Name: "favourite_book_id", Type: "bigint", Nullable: true,
				References: &ForeignKey{Table: "books", Column: "id", OnDelete: SetNull}},
			want: "favourite_book_id bigint REFERENCES books (id) ON DELETE SET NULL",
		},
		{
			name: "one to one",
			column: Column{Name: "user_id", Type: "bigint", Unique: true,
				References: &ForeignKey{Table: "users", Column: "id", OnDelete: Cascade}},
			want: "user_id bigint NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE",
		},
		{
			name: "no action is implicit",
			column: Column{Name: "owner_id", Type: "bigint",
				References: &ForeignKey{Table: "users", Column: "id", OnDelete: NoAction}},
			want: "owner_id bigint NOT NULL REFERENCES users (id)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.column.Definition())
		})
	}
}

func TestColumn_CheckExpr(t *testing.T) {
	role := Column{Name: "role", Type: "text", Choices: []string{"AUTHOR", "CO_AUTHOR", "O'NEIL"}}
	assert.Equal(t, "role IN ('AUTHOR', 'CO_AUTHOR', 'O''NEIL')", role.CheckExpr())
	assert.Equal(t, "book_contributors_role_check", role.CheckName("book_contributors"))

	rating := Column{Name: "rating", Type: "integer", Choices: []string{"1", "2", "3"}}
	assert.Equal(t, "rating IN (1, 2, 3)", rating.CheckExpr())

	assert.Empty(t, Column{Name: "content", Type: "text"}.CheckExpr())
}

func TestColumn_NeedsIndex(t *testing.T) {
	fk := &ForeignKey{Table: "books", Column: "id", OnDelete: Cascade}

	assert.True(t, Column{Name: "book_id", Type: "bigint", References: fk}.NeedsIndex())
	assert.False(t, Column{Name: "user_id", Type: "bigint", Unique: true, References: fk}.NeedsIndex())
	assert.False(t, Column{Name: "title", Type: "text"}.NeedsIndex())
}

func TestTable_CreateSQL(t *testing.T) {
	table := Table{
		Name: "reviews",
		Columns: []Column{
			{Name: "id", Type: "bigserial", PrimaryKey: true},
			{Name: "rating", Type: "integer", Choices: []string{"1", "2"}},
			{Name: "book_id", Type: "bigint", References: &ForeignKey{Table: "books", Column: "id", OnDelete: Cascade}},
		},
	}

	want := "CREATE TABLE reviews (\n" +
		"    id bigserial PRIMARY KEY,\n" +
		"    rating integer NOT NULL,\n" +
		"    book_id bigint NOT NULL REFERENCES books (id) ON DELETE CASCADE,\n" +
		"    CONSTRAINT reviews_rating_check CHECK (rating IN (1, 2))\n" +
		")"
	assert.Equal(t, want, table.CreateSQL())
	assert.Equal(t, []string{"CREATE INDEX reviews_book_id_idx ON reviews (book_id)"}, table.IndexSQL())
}

func TestTable_Clone(t *testing.T) {
	table := Table{
		Name: "t",
		Columns: []Column{
			{Name: "id", Type: "bigserial", PrimaryKey: true},
			{Name: "c", Type: "text", Choices: []string{"a"}, References: &ForeignKey{Table: "t", Column: "id"}},
		},
	}
	clone := table.Clone()
	clone.Columns[1].Choices[0] = "b"
	clone.Columns[1].References.Table = "other"

	c, ok := table.Column("c")
	require.True(t, ok)
	assert.Equal(t, "a", c.Choices[0])
	assert.Equal(t, "t", c.References.Table)
}
