package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookr/internal/models"
)

// MockHistory is an in-memory rating history with the same monthly
// aggregation as the ClickHouse store.
type MockHistory struct {
	mu     sync.RWMutex
	events []models.RatingEvent
}

// NewMockHistory creates an empty rating history
func NewMockHistory() *MockHistory {
	return &MockHistory{}
}

// RecordRating appends a rating event
func (h *MockHistory) RecordRating(ctx context.Context, event models.RatingEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
	return nil
}

// MonthlyRatings returns per-month rating counts and averages for a book
func (h *MockHistory) MonthlyRatings(ctx context.Context, bookID int64) ([]models.RatingPoint, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	type bucket struct {
		count int
		total int
	}
	buckets := make(map[time.Time]*bucket)
	for _, e := range h.events {
		if e.BookID != bookID {
			continue
		}
		at := e.RecordedAt.UTC()
		month := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
		b, ok := buckets[month]
		if !ok {
			b = &bucket{}
			buckets[month] = b
		}
		b.count++
		b.total += int(e.Rating)
	}

	points := make([]models.RatingPoint, 0, len(buckets))
	for month, b := range buckets {
		points = append(points, models.RatingPoint{
			Month:   month,
			Count:   b.count,
			Average: float64(b.total) / float64(b.count),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Month.Before(points[j].Month)
	})
	return points, nil
}

// Close does nothing for the mock history
func (h *MockHistory) Close() error {
	return nil
}
