//go:build integration

package ch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"bookr/internal/models"
)

// setupTestDB creates a test ClickHouse instance using testcontainers
func setupTestDB(t *testing.T) (*ClickHouseDB, func()) {
	ctx := context.Background()

	// Start ClickHouse container
	clickhouseContainer, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword(""),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")

	host, err := clickhouseContainer.Host(ctx)
	require.NoError(t, err)

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	db, err := NewClickHouseDB(host, port.Int(), "default", "default", "", false)
	require.NoError(t, err, "Failed to connect to ClickHouse")

	require.NoError(t, db.EnsureSchema(ctx), "Failed to create schema")

	cleanup := func() {
		db.Close()
		clickhouseContainer.Terminate(ctx)
	}

	return db, cleanup
}

func TestClickHouseDB_EnsureSchemaIsIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NoError(t, db.EnsureSchema(context.Background()))
}

func TestClickHouseDB_MonthlyRatings(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	may := time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)
	june := time.Date(2024, 6, 20, 18, 30, 0, 0, time.UTC)
	events := []models.RatingEvent{
		{ReviewID: 1, BookID: 1, Rating: 4, Kind: models.RatingCreated, RecordedAt: may},
		{ReviewID: 2, BookID: 1, Rating: 2, Kind: models.RatingCreated, RecordedAt: may.Add(time.Hour)},
		{ReviewID: 1, BookID: 1, Rating: 5, Kind: models.RatingEdited, RecordedAt: june},
		{ReviewID: 3, BookID: 2, Rating: 1, Kind: models.RatingCreated, RecordedAt: june},
	}
	for _, e := range events {
		require.NoError(t, db.RecordRating(ctx, e))
	}

	points, err := db.MonthlyRatings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.True(t, points[0].Month.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), "got %v", points[0].Month)
	assert.Equal(t, 2, points[0].Count)
	assert.InDelta(t, 3.0, points[0].Average, 0.001)

	assert.True(t, points[1].Month.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)), "got %v", points[1].Month)
	assert.Equal(t, 1, points[1].Count)
	assert.InDelta(t, 5.0, points[1].Average, 0.001)
}

func TestClickHouseDB_MonthlyRatingsEmpty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	points, err := db.MonthlyRatings(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, points)
}
