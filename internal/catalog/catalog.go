// Package catalog is the application layer over storage: review workflows,
// book summaries, rating history and catalogue import.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bookr/internal/models"
	"bookr/internal/storage"
)

// ErrHistoryDisabled is returned by RatingHistory when no history store is configured.
var ErrHistoryDisabled = errors.New("rating history is not configured")

// RatingHistory is an append-only log of review ratings.
type RatingHistory interface {
	RecordRating(ctx context.Context, event models.RatingEvent) error
	MonthlyRatings(ctx context.Context, bookID int64) ([]models.RatingPoint, error)
}

// Service runs catalogue operations against a store and, optionally, a
// rating history.
type Service struct {
	store   storage.Storage
	history RatingHistory
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a Service. history may be nil.
func NewService(store storage.Storage, history RatingHistory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		history: history,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateReview stores a new review and records its rating.
func (s *Service) CreateReview(ctx context.Context, review models.Review) (models.Review, error) {
	created, err := s.store.CreateReview(ctx, review)
	if err != nil {
		return models.Review{}, err
	}
	s.record(ctx, created, models.RatingCreated)
	s.logger.Info("Review created",
		zap.Int64("review_id", created.ID),
		zap.Int64("book_id", created.BookID),
		zap.Stringer("rating", created.Rating),
	)
	return created, nil
}

// EditReview replaces a review's content and rating. The review is marked as edited.
func (s *Service) EditReview(ctx context.Context, id int64, content string, rating models.Rating) (models.Review, error) {
	review, err := s.store.GetReview(ctx, id)
	if err != nil {
		return models.Review{}, err
	}
	review.Content = content
	review.Rating = rating

	edited, err := s.store.UpdateReview(ctx, review)
	if err != nil {
		return models.Review{}, err
	}
	s.record(ctx, edited, models.RatingEdited)
	s.logger.Info("Review edited",
		zap.Int64("review_id", edited.ID),
		zap.Stringer("rating", edited.Rating),
	)
	return edited, nil
}

// record appends a rating event. A history failure does not undo the review.
func (s *Service) record(ctx context.Context, review models.Review, kind models.RatingEventKind) {
	if s.history == nil {
		return
	}
	event := models.RatingEvent{
		ReviewID:   review.ID,
		BookID:     review.BookID,
		Rating:     review.Rating,
		Kind:       kind,
		RecordedAt: s.now(),
	}
	if err := s.history.RecordRating(ctx, event); err != nil {
		s.logger.Warn("Failed to record rating",
			zap.Int64("review_id", review.ID),
			zap.String("event", string(kind)),
			zap.Error(err),
		)
	}
}

// BookSummaries lists every book with its review count and average rating.
func (s *Service) BookSummaries(ctx context.Context) ([]models.BookSummary, error) {
	return s.store.ListBookSummaries(ctx)
}

// RatingHistory returns a book's monthly rating averages.
func (s *Service) RatingHistory(ctx context.Context, bookID int64) ([]models.RatingPoint, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	points, err := s.history.MonthlyRatings(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating history: %w", err)
	}
	return points, nil
}
