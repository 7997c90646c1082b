package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Guram12/starmap/internal/application/services"
	"github.com/Guram12/starmap/internal/domain/entities"
	apperrors "github.com/Guram12/starmap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHistoryRepository records calls made by the history service
type mockHistoryRepository struct {
	recent      *entities.SearchHistoryEntry
	recentErr   error
	created     []*entities.SearchHistoryEntry
	updatedID   string
	updatedWith []entities.Place
	since       time.Time
	listLimit   int
	deleted     int64
}

func (m *mockHistoryRepository) Create(ctx context.Context, entry *entities.SearchHistoryEntry) error {
	entry.ID = "new-id"
	m.created = append(m.created, entry)
	return nil
}

func (m *mockHistoryRepository) FindRecent(ctx context.Context, userID string, params entities.SearchParams, since time.Time) (*entities.SearchHistoryEntry, error) {
	m.since = since
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	if m.recent == nil {
		return nil, apperrors.NewNotFoundError("none")
	}
	return m.recent, nil
}

func (m *mockHistoryRepository) UpdateResults(ctx context.Context, id string, places []entities.Place, searchedAt time.Time) error {
	m.updatedID = id
	m.updatedWith = places
	return nil
}

func (m *mockHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SearchHistoryEntry, error) {
	m.listLimit = limit
	return []*entities.SearchHistoryEntry{}, nil
}

func (m *mockHistoryRepository) GetByID(ctx context.Context, userID, id string) (*entities.SearchHistoryEntry, error) {
	return nil, apperrors.NewNotFoundError("missing")
}

func (m *mockHistoryRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return m.deleted, nil
}

var tbilisiRestaurants = entities.SearchParams{Region: "Tbilisi", PlaceType: "restaurant", MinStars: 4, SearchRadius: 5}

func TestSearchHistoryService_RecordCreates(t *testing.T) {
	repo := &mockHistoryRepository{}
	svc := services.NewSearchHistoryService(repo, 50, 5*time.Minute, nil)

	places := []entities.Place{{ID: "p1"}, {ID: "p2"}}
	entry, err := svc.Record(context.Background(), "user-1", tbilisiRestaurants, places)
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Equal(t, "new-id", entry.ID)
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, 2, entry.ResultsCount)
	assert.Equal(t, tbilisiRestaurants, entry.Params())
	assert.WithinDuration(t, time.Now().Add(-5*time.Minute), repo.since, time.Second)
}

func TestSearchHistoryService_RecordCollapsesRecentDuplicate(t *testing.T) {
	old := time.Now().Add(-2 * time.Minute)
	repo := &mockHistoryRepository{recent: &entities.SearchHistoryEntry{ID: "h1", UserID: "user-1", SearchedAt: old, ResultsCount: 1}}
	svc := services.NewSearchHistoryService(repo, 50, 5*time.Minute, nil)

	places := []entities.Place{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	entry, err := svc.Record(context.Background(), "user-1", tbilisiRestaurants, places)
	require.NoError(t, err)

	assert.Empty(t, repo.created)
	assert.Equal(t, "h1", repo.updatedID)
	assert.Len(t, repo.updatedWith, 3)
	assert.Equal(t, 3, entry.ResultsCount)
	assert.True(t, entry.SearchedAt.After(old))
}

func TestSearchHistoryService_RecordPropagatesLookupFailure(t *testing.T) {
	repo := &mockHistoryRepository{recentErr: apperrors.NewInternalError("db down", errors.New("conn refused"))}
	svc := services.NewSearchHistoryService(repo, 50, 5*time.Minute, nil)

	_, err := svc.Record(context.Background(), "user-1", tbilisiRestaurants, nil)
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestSearchHistoryService_RequiresUser(t *testing.T) {
	svc := services.NewSearchHistoryService(&mockHistoryRepository{}, 50, 5*time.Minute, nil)
	ctx := context.Background()

	_, err := svc.Record(ctx, "", tbilisiRestaurants, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	_, err = svc.List(ctx, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	_, err = svc.Get(ctx, "", "h1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	_, err = svc.Clear(ctx, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
}

func TestSearchHistoryService_RecordValidatesParams(t *testing.T) {
	svc := services.NewSearchHistoryService(&mockHistoryRepository{}, 50, 5*time.Minute, nil)

	_, err := svc.Record(context.Background(), "user-1", entities.SearchParams{PlaceType: "restaurant"}, nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSearchHistoryService_ListUsesLimit(t *testing.T) {
	repo := &mockHistoryRepository{}
	svc := services.NewSearchHistoryService(repo, 50, 5*time.Minute, nil)

	_, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, repo.listLimit)
}

func TestSearchHistoryService_Clear(t *testing.T) {
	repo := &mockHistoryRepository{deleted: 4}
	svc := services.NewSearchHistoryService(repo, 50, 5*time.Minute, nil)

	n, err := svc.Clear(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
