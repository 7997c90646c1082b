package services

import (
	"context"
	"strings"
	"time"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/repositories"
	"github.com/Guram12/starmap/internal/infrastructure/observability"
	apperrors "github.com/Guram12/starmap/pkg/errors"
)

// SearchHistoryService records and serves the searches of signed-in users.
type SearchHistoryService struct {
	repo        repositories.SearchHistoryRepository
	limit       int
	dedupWindow time.Duration
	now         func() time.Time
	metrics     *observability.Metrics
}

// NewSearchHistoryService creates a history service. Identical searches
// recorded within dedupWindow of each other collapse into one entry.
func NewSearchHistoryService(repo repositories.SearchHistoryRepository, limit int, dedupWindow time.Duration, metrics *observability.Metrics) *SearchHistoryService {
	if limit <= 0 {
		limit = 50
	}
	return &SearchHistoryService{
		repo:        repo,
		limit:       limit,
		dedupWindow: dedupWindow,
		now:         func() time.Time { return time.Now().UTC() },
		metrics:     metrics,
	}
}

// Record stores a search, or refreshes an identical one made shortly before.
func (s *SearchHistoryService) Record(ctx context.Context, userID string, params entities.SearchParams, places []entities.Place) (*entities.SearchHistoryEntry, error) {
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("sign in to keep search history")
	}
	if strings.TrimSpace(params.Region) == "" || strings.TrimSpace(params.PlaceType) == "" {
		return nil, apperrors.NewValidationError("region and place type are required")
	}

	start := time.Now()
	defer func() { s.metrics.RecordDBQuery(ctx, "search_history.record", time.Since(start)) }()

	now := s.now()
	if s.dedupWindow > 0 {
		recent, err := s.repo.FindRecent(ctx, userID, params, now.Add(-s.dedupWindow))
		switch {
		case err == nil:
			if err := s.repo.UpdateResults(ctx, recent.ID, places, now); err != nil {
				return nil, err
			}
			recent.Places = places
			recent.ResultsCount = len(places)
			recent.SearchedAt = now
			return recent, nil
		case !apperrors.IsNotFound(err):
			return nil, err
		}
	}

	entry := &entities.SearchHistoryEntry{
		UserID:       userID,
		Region:       params.Region,
		PlaceType:    params.PlaceType,
		MinStars:     params.MinStars,
		SearchRadius: params.SearchRadius,
		ResultsCount: len(places),
		Places:       places,
		SearchedAt:   now,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the user's most recent searches, newest first
func (s *SearchHistoryService) List(ctx context.Context, userID string) ([]*entities.SearchHistoryEntry, error) {
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("sign in to see search history")
	}
	return s.repo.ListByUser(ctx, userID, s.limit)
}

// Get returns one of the user's entries
func (s *SearchHistoryService) Get(ctx context.Context, userID, id string) (*entities.SearchHistoryEntry, error) {
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("sign in to see search history")
	}
	if id == "" {
		return nil, apperrors.NewValidationError("history id is required")
	}
	return s.repo.GetByID(ctx, userID, id)
}

// Clear deletes all of the user's entries and returns how many were removed
func (s *SearchHistoryService) Clear(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, apperrors.NewUnauthorizedError("sign in to clear search history")
	}
	return s.repo.DeleteByUser(ctx, userID)
}
