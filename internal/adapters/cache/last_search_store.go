package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/providers"
	"github.com/Guram12/starmap/internal/domain/repositories"
	apperrors "github.com/Guram12/starmap/pkg/errors"
)

// LastSearchKeyPrefix prefixes the per-session last-search key
const LastSearchKeyPrefix = "starmap-search-results:"

// LastSearchStore keeps one JSON blob per session on top of a CacheProvider
type LastSearchStore struct {
	provider providers.CacheProvider
	ttl      time.Duration
}

// NewLastSearchStore creates a store whose blobs live for ttl (zero keeps them)
func NewLastSearchStore(provider providers.CacheProvider, ttl time.Duration) *LastSearchStore {
	return &LastSearchStore{provider: provider, ttl: ttl}
}

var _ repositories.LastSearchRepository = (*LastSearchStore)(nil)

// LastSearchKey returns the storage key of a session
func LastSearchKey(sessionID string) string {
	return LastSearchKeyPrefix + sessionID
}

// Save overwrites the session's blob
func (s *LastSearchStore) Save(ctx context.Context, sessionID string, search *entities.PersistedSearch) error {
	data, err := json.Marshal(search)
	if err != nil {
		return apperrors.NewInternalError("failed to encode last search", err)
	}
	if err := s.provider.Set(ctx, LastSearchKey(sessionID), data, s.ttl); err != nil {
		return apperrors.NewInternalError("failed to store last search", err)
	}
	return nil
}

// Load returns the session's blob
func (s *LastSearchStore) Load(ctx context.Context, sessionID string) (*entities.PersistedSearch, error) {
	data, err := s.provider.Get(ctx, LastSearchKey(sessionID))
	if errors.Is(err, providers.ErrCacheMiss) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no saved search for session %s", sessionID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load last search", err)
	}

	var search entities.PersistedSearch
	if err := json.Unmarshal(data, &search); err != nil {
		return nil, apperrors.NewInternalError("failed to decode last search", err)
	}
	if search.Places == nil {
		search.Places = []entities.Place{}
	}
	return &search, nil
}

// Delete removes the session's blob
func (s *LastSearchStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.provider.Delete(ctx, LastSearchKey(sessionID)); err != nil {
		return apperrors.NewInternalError("failed to delete last search", err)
	}
	return nil
}
