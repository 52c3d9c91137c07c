package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookr/internal/migrate"
	"bookr/internal/models"
	"bookr/internal/schema"
)

func TestGraph_MatchesModels(t *testing.T) {
	g, err := Graph()
	require.NoError(t, err)

	want, err := models.NewRegistry()
	require.NoError(t, err)

	assert.NoError(t, migrate.Check(g, want))
}

func TestGraph_DetectsDrift(t *testing.T) {
	g, err := Graph()
	require.NoError(t, err)

	want, err := models.NewRegistry()
	require.NoError(t, err)
	reviews, ok := want.Table(models.TableReviews)
	require.True(t, ok)
	reviews.Columns = append(reviews.Columns, schema.Column{Name: "title", Type: "text"})
	require.NoError(t, want.Replace(reviews))

	err = migrate.Check(g, want)
	require.ErrorIs(t, err, migrate.ErrSchemaDrift)
	assert.Contains(t, err.Error(), "missing column reviews.title")
}

func TestGraph_Order(t *testing.T) {
	g, err := Graph()
	require.NoError(t, err)

	plan, err := g.Plan()
	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, AuthInitial, plan[0].Key)
	assert.Equal(t, ReviewsInitial, plan[1].Key)
	assert.Equal(t, ReviewsRatingChoicesReviewerProfile, plan[2].Key)
	assert.ElementsMatch(t, []migrate.Key{AuthInitial, ReviewsInitial}, plan[2].Dependencies)
}

func TestCompiledSQL(t *testing.T) {
	g, err := Graph()
	require.NoError(t, err)
	plan, err := g.Plan()
	require.NoError(t, err)
	steps, _, err := migrate.Compile(plan)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	initial := strings.Join(steps[1].Up, "\n")
	assert.Contains(t, initial, "publisher_id bigint NOT NULL REFERENCES publishers (id) ON DELETE CASCADE")
	assert.Contains(t, initial, "CONSTRAINT book_contributors_role_check CHECK (role IN ('AUTHOR', 'CO_AUTHOR', 'EDITOR'))")
	assert.Contains(t, initial, "date_edited timestamptz,")
	assert.NotContains(t, initial, "reviews_rating_check")

	second := steps[2].Up
	assert.Equal(t, "ALTER TABLE reviews ADD CONSTRAINT reviews_rating_check CHECK (rating IN (1, 2, 3, 4, 5))", second[0])
	profiles := strings.Join(second[1:], "\n")
	assert.Contains(t, profiles, "favourite_book_id bigint REFERENCES books (id) ON DELETE SET NULL")
	assert.Contains(t, profiles, "user_id bigint NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE")
	assert.Contains(t, profiles, "CREATE INDEX reviewer_profiles_favourite_book_id_idx")

	assert.Equal(t, []string{
		"DROP TABLE reviewer_profiles",
		"ALTER TABLE reviews DROP CONSTRAINT IF EXISTS reviews_rating_check",
	}, steps[2].Down)
}
