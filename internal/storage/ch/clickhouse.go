package ch

import (
	"context"
	"crypto/tls"
	"fmt"

	"bookr/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseDB keeps the append-only history of review ratings. Relational
// data lives in Postgres; this store only ever receives inserts.
type ClickHouseDB struct {
	conn clickhouse.Conn
}

var openConn = clickhouse.Open

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := openConn(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// EnsureSchema creates the rating history table if it does not exist.
// goose does not drive ClickHouse here, so the DDL is idempotent instead.
func (db *ClickHouseDB) EnsureSchema(ctx context.Context) error {
	err := db.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS review_ratings (
			review_id Int64,
			book_id Int64,
			rating UInt8,
			event LowCardinality(String),
			recorded_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		ORDER BY (book_id, recorded_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create review_ratings: %w", err)
	}
	return nil
}

// RecordRating appends a rating event
func (db *ClickHouseDB) RecordRating(ctx context.Context, event models.RatingEvent) error {
	err := db.conn.Exec(ctx,
		`INSERT INTO review_ratings (review_id, book_id, rating, event, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		event.ReviewID, event.BookID, uint8(event.Rating), string(event.Kind), event.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record rating: %w", err)
	}
	return nil
}

// MonthlyRatings returns the number of rating events and their average per
// calendar month for a book, oldest month first
func (db *ClickHouseDB) MonthlyRatings(ctx context.Context, bookID int64) ([]models.RatingPoint, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT toDateTime(toStartOfMonth(recorded_at), 'UTC') AS month, count() AS n, avg(rating) AS average
		FROM review_ratings
		WHERE book_id = ?
		GROUP BY month
		ORDER BY month`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly ratings: %w", err)
	}
	defer rows.Close()

	var points []models.RatingPoint
	for rows.Next() {
		var (
			point models.RatingPoint
			count uint64
		)
		if err := rows.Scan(&point.Month, &count, &point.Average); err != nil {
			return nil, fmt.Errorf("failed to scan rating point: %w", err)
		}
		point.Count = int(count)
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read monthly ratings: %w", err)
	}
	return points, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	return db.conn.Close()
}
