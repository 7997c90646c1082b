package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/repositories"
	"github.com/Guram12/starmap/internal/infrastructure/clients/postgres"
	apperrors "github.com/Guram12/starmap/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
)

const searchHistoryTable = "search_history"

const searchHistorySchema = `
CREATE TABLE IF NOT EXISTS search_history (
	id            UUID PRIMARY KEY,
	user_id       TEXT NOT NULL,
	region        TEXT NOT NULL,
	place_type    TEXT NOT NULL,
	min_stars     DOUBLE PRECISION NOT NULL DEFAULT 0,
	search_radius DOUBLE PRECISION NOT NULL,
	results_count INTEGER NOT NULL DEFAULT 0,
	places        JSONB NOT NULL DEFAULT '[]'::jsonb,
	searched_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_search_history_user_searched_at
	ON search_history (user_id, searched_at DESC);
`

var searchHistoryColumns = []interface{}{
	"id", "user_id", "region", "place_type", "min_stars",
	"search_radius", "results_count", "places", "searched_at",
}

// SearchHistoryAdapter implements search history persistence in Postgres
type SearchHistoryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSearchHistoryAdapter creates a new search history adapter
func NewSearchHistoryAdapter(client *postgres.Client) *SearchHistoryAdapter {
	return &SearchHistoryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.SearchHistoryRepository = (*SearchHistoryAdapter)(nil)

// EnsureSchema creates the search_history table when missing
func (a *SearchHistoryAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.client.DB().ExecContext(ctx, searchHistorySchema); err != nil {
		return apperrors.NewInternalError("failed to create search history schema", err)
	}
	return nil
}

// Create inserts a history entry, assigning id and timestamp when unset
func (a *SearchHistoryAdapter) Create(ctx context.Context, entry *entities.SearchHistoryEntry) error {
	if entry == nil {
		return apperrors.NewInternalError("search history entry is nil", errors.New("entry is nil"))
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SearchedAt.IsZero() {
		entry.SearchedAt = time.Now().UTC()
	}
	entry.ResultsCount = len(entry.Places)

	places, err := marshalPlaces(entry.Places)
	if err != nil {
		return err
	}

	record := goqu.Record{
		"id":            entry.ID,
		"user_id":       entry.UserID,
		"region":        entry.Region,
		"place_type":    entry.PlaceType,
		"min_stars":     entry.MinStars,
		"search_radius": entry.SearchRadius,
		"results_count": entry.ResultsCount,
		"places":        places,
		"searched_at":   entry.SearchedAt,
	}

	query, args, err := a.db.Insert(searchHistoryTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build search history insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create search history entry", err)
	}
	return nil
}

// FindRecent returns the newest identical search recorded since the given time
func (a *SearchHistoryAdapter) FindRecent(ctx context.Context, userID string, params entities.SearchParams, since time.Time) (*entities.SearchHistoryEntry, error) {
	query, args, err := a.db.From(searchHistoryTable).Prepared(true).
		Select(searchHistoryColumns...).
		Where(
			goqu.Ex{
				"user_id":       userID,
				"region":        params.Region,
				"place_type":    params.PlaceType,
				"min_stars":     params.MinStars,
				"search_radius": params.SearchRadius,
			},
			goqu.C("searched_at").Gte(since),
		).
		Order(goqu.C("searched_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build recent search query", err)
	}

	entry, err := scanSearchHistory(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("no recent identical search")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find recent search", err)
	}
	return entry, nil
}

// UpdateResults replaces the stored places and moves the entry's timestamp
func (a *SearchHistoryAdapter) UpdateResults(ctx context.Context, id string, places []entities.Place, searchedAt time.Time) error {
	encoded, err := marshalPlaces(places)
	if err != nil {
		return err
	}

	query, args, err := a.db.Update(searchHistoryTable).Prepared(true).
		Set(goqu.Record{
			"results_count": len(places),
			"places":        encoded,
			"searched_at":   searchedAt,
		}).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build search history update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update search history entry", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("search history entry %s not found", id))
	}
	return nil
}

// ListByUser returns the user's entries newest first
func (a *SearchHistoryAdapter) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SearchHistoryEntry, error) {
	ds := a.db.From(searchHistoryTable).Prepared(true).
		Select(searchHistoryColumns...).
		Where(goqu.C("user_id").Eq(userID)).
		Order(goqu.C("searched_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build search history list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list search history", err)
	}
	defer rows.Close()

	entries := make([]*entities.SearchHistoryEntry, 0)
	for rows.Next() {
		entry, err := scanSearchHistory(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan search history entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate search history", err)
	}
	return entries, nil
}

// GetByID returns one of the user's entries
func (a *SearchHistoryAdapter) GetByID(ctx context.Context, userID, id string) (*entities.SearchHistoryEntry, error) {
	// ids are UUIDs; anything else cannot match and would fail the cast
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("search history entry %s not found", id))
	}

	query, args, err := a.db.From(searchHistoryTable).Prepared(true).
		Select(searchHistoryColumns...).
		Where(goqu.Ex{"id": id, "user_id": userID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build search history query", err)
	}

	entry, err := scanSearchHistory(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("search history entry %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get search history entry", err)
	}
	return entry, nil
}

// DeleteByUser removes every entry of the user
func (a *SearchHistoryAdapter) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	query, args, err := a.db.Delete(searchHistoryTable).Prepared(true).
		Where(goqu.C("user_id").Eq(userID)).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build search history delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to clear search history", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to read affected rows", err)
	}
	return rows, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSearchHistory(row rowScanner) (*entities.SearchHistoryEntry, error) {
	var (
		entry  entities.SearchHistoryEntry
		places []byte
	)
	if err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Region,
		&entry.PlaceType,
		&entry.MinStars,
		&entry.SearchRadius,
		&entry.ResultsCount,
		&places,
		&entry.SearchedAt,
	); err != nil {
		return nil, err
	}

	entry.Places = []entities.Place{}
	if len(places) > 0 {
		if err := json.Unmarshal(places, &entry.Places); err != nil {
			return nil, fmt.Errorf("failed to decode places: %w", err)
		}
	}
	return &entry, nil
}

func marshalPlaces(places []entities.Place) (string, error) {
	if places == nil {
		places = []entities.Place{}
	}
	data, err := json.Marshal(places)
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode places", err)
	}
	return string(data), nil
}
