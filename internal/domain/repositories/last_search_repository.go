package repositories

import (
	"context"

	"github.com/Guram12/starmap/internal/domain/entities"
)

// LastSearchRepository keeps the most recent accepted result set per session
type LastSearchRepository interface {
	// Save overwrites the session's previous blob
	Save(ctx context.Context, sessionID string, search *entities.PersistedSearch) error

	// Load returns the session's blob, or a not found error
	Load(ctx context.Context, sessionID string) (*entities.PersistedSearch, error)

	Delete(ctx context.Context, sessionID string) error
}
