package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Guram12/starmap/internal/adapters/database"
	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/infrastructure/clients/postgres"
	apperrors "github.com/Guram12/starmap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyColumns = []string{
	"id", "user_id", "region", "place_type", "min_stars",
	"search_radius", "results_count", "places", "searched_at",
}

func setupHistoryAdapter(t *testing.T) (*database.SearchHistoryAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewSearchHistoryAdapter(postgres.NewClientFromDB(db)), mock
}

func TestSearchHistoryAdapter_Create(t *testing.T) {
	adapter, mock := setupHistoryAdapter(t)

	mock.ExpectExec(`INSERT INTO "search_history"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &entities.SearchHistoryEntry{
		UserID:       "user-1",
		Region:       "Tbilisi",
		PlaceType:    "restaurant",
		MinStars:     4,
		SearchRadius: 5,
		Places:       []entities.Place{{ID: "p1", DisplayName: "Cafe"}},
	}

	err := adapter.Create(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.SearchedAt.IsZero())
	assert.Equal(t, 1, entry.ResultsCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchHistoryAdapter_CreateFailure(t *testing.T) {
	adapter, mock := setupHistoryAdapter(t)

	mock.ExpectExec(`INSERT INTO "search_history"`).
		WillReturnError(errors.New("connection reset"))

	err := adapter.Create(context.Background(), &entities.SearchHistoryEntry{UserID: "user-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestSearchHistoryAdapter_FindRecent(t *testing.T) {
	adapter, mock := setupHistoryAdapter(t)
	searchedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM "search_history" WHERE .* ORDER BY "searched_at" DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows(historyColumns).AddRow(
			"h1", "user-1", "Tbilisi", "restaurant", 4.0, 5.0, 1,
			[]byte(`[{"id":"p1","displayName":"Cafe","location":{"lat":41.7,"lng":44.8}}]`),
			searchedAt,
		))

	params := entities.SearchParams{Region: "Tbilisi", PlaceType: "restaurant", MinStars: 4, SearchRadius: 5}
	entry, err := adapter.FindRecent(context.Background(), "user-1", params, searchedAt.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "h1", entry.ID)
	assert.Equal(t, params, entry.Params())
	require.Len(t, entry.Places, 1)
	assert.Equal(t, "Cafe", entry.Places[0].DisplayName)
	assert.Equal(t, searchedAt, entry.SearchedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchHistoryAdapter_FindRecentNone(t *testing.T) {
	adapter, mock := setupHistoryAdapter(t)

	mock.ExpectQuery(`SELECT .* FROM "search_history"`).
		WillReturnRows(sqlmock.NewRows(historyColumns))

	_, err := adapter.FindRecent(context.Background(), "user-1", entities.SearchParams{}, time.Now())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSearchHistoryAdapter_UpdateResults(t *testing.T) {
	t.Run("updates the entry", func(t *testing.T) {
		adapter, mock := setupHistoryAdapter(t)
		mock.ExpectExec(`UPDATE "search_history" SET .* WHERE \("id" = `).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := adapter.UpdateResults(context.Background(), "h1", []entities.Place{{ID: "p1"}}, time.Now())
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing entry", func(t *testing.T) {
		adapter, mock := setupHistoryAdapter(t)
		mock.ExpectExec(`UPDATE "search_history"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := adapter.UpdateResults(context.Background(), "missing", nil, time.Now())
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestSearchHistoryAdapter_ListByUser(t *testing.T) {
	adapter, mock := setupHistoryAdapter(t)
	newer := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(`SELECT .* FROM "search_history" WHERE \("user_id" = .*\) ORDER BY "searched_at" DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows(historyColumns).
			AddRow("h2", "user-1", "Paris", "lodging", 0.0, 3.0, 0, []byte(`[]`), newer).
			AddRow("h1", "user-1", "Rome", "restaurant", 4.5, 2.0, 0, nil, older))

	entries, err := adapter.ListByUser(context.Background(), "user-1", 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h2", entries[0].ID)
	assert.Equal(t, "h1", entries[1].ID)
	assert.NotNil(t, entries[1].Places)
	assert.Empty(t, entries[1].Places)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchHistoryAdapter_GetByID(t *testing.T) {
	adapter, mock := setupHistoryAdapter(t)

	mock.ExpectQuery(`SELECT .* FROM "search_history" WHERE`).
		WillReturnRows(sqlmock.NewRows(historyColumns))

	_, err := adapter.GetByID(context.Background(), "user-1", "5f0c2a9e-8d7b-4c1e-9a3f-2b6d4e8f1a7c")
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchHistoryAdapter_GetByIDMalformed(t *testing.T) {
	adapter, mock := setupHistoryAdapter(t)

	for _, id := range []string{"abc", "1", "5f0c2a9e-8d7b-4c1e-9a3f"} {
		_, err := adapter.GetByID(context.Background(), "user-1", id)
		assert.True(t, apperrors.IsNotFound(err), id)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchHistoryAdapter_DeleteByUser(t *testing.T) {
	adapter, mock := setupHistoryAdapter(t)

	mock.ExpectExec(`DELETE FROM "search_history" WHERE \("user_id" = `).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := adapter.DeleteByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchHistoryAdapter_EnsureSchema(t *testing.T) {
	adapter, mock := setupHistoryAdapter(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS search_history`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
