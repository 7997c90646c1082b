package repositories

import (
	"context"
	"time"

	"github.com/Guram12/starmap/internal/domain/entities"
)

// SearchHistoryRepository defines persistence for per-user search history
type SearchHistoryRepository interface {
	Create(ctx context.Context, entry *entities.SearchHistoryEntry) error

	// FindRecent returns the newest entry of the user with exactly these
	// params recorded at or after since, or a not found error
	FindRecent(ctx context.Context, userID string, params entities.SearchParams, since time.Time) (*entities.SearchHistoryEntry, error)

	// UpdateResults replaces the results of an entry and moves its timestamp
	UpdateResults(ctx context.Context, id string, places []entities.Place, searchedAt time.Time) error

	// ListByUser returns entries newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SearchHistoryEntry, error)

	GetByID(ctx context.Context, userID, id string) (*entities.SearchHistoryEntry, error)

	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
