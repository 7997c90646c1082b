package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/repositories"
	"github.com/Guram12/starmap/internal/infrastructure/observability"
	apperrors "github.com/Guram12/starmap/pkg/errors"
)

// SearchHistory is the part of the history service a session depends on
type SearchHistory interface {
	Record(ctx context.Context, userID string, params entities.SearchParams, places []entities.Place) (*entities.SearchHistoryEntry, error)
	Get(ctx context.Context, userID, id string) (*entities.SearchHistoryEntry, error)
}

// SearchSession hosts one user's map view: it turns search preferences
// into an accepted result set, renders it and remembers it.
type SearchSession struct {
	id          string
	coordinator *SearchCoordinator
	markers     *MarkerSynchronizer
	lastSearch  repositories.LastSearchRepository
	history     SearchHistory
	now         func() time.Time

	mu         sync.Mutex
	userID     string
	lastActive time.Time
	closed     bool
}

// NewSearchSession wires a session. history may be nil, which disables
// recording and loading history.
func NewSearchSession(id, userID string, coordinator *SearchCoordinator, markers *MarkerSynchronizer, lastSearch repositories.LastSearchRepository, history SearchHistory) *SearchSession {
	return &SearchSession{
		id:          id,
		userID:      userID,
		coordinator: coordinator,
		markers:     markers,
		lastSearch:  lastSearch,
		history:     history,
		now:         time.Now,
		lastActive:  time.Now(),
	}
}

// ID returns the session id
func (s *SearchSession) ID() string {
	return s.id
}

// UserID returns the signed-in user, empty when anonymous
func (s *SearchSession) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// SetUser changes the signed-in user of the session
func (s *SearchSession) SetUser(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

// LastActive returns when the session was last used
func (s *SearchSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Search geocodes the region, looks up places and, unless a newer search
// superseded this one, renders and remembers the results. A region that
// cannot be located yields an empty result set.
func (s *SearchSession) Search(ctx context.Context, params entities.SearchParams) (*entities.SearchResult, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "SearchSession.Search")
	defer span.End()
	logger := observability.SessionLogger(ctx, s.id)

	location, err := s.coordinator.Geocode(ctx, params.Region)
	if apperrors.IsNotFound(err) {
		logger.Info().Str("region", params.Region).Msg("Region not found, showing no results")
		result := &entities.SearchResult{
			Places: []entities.Place{},
			Status: entities.SearchStatusNoResults,
			Source: entities.ResultSourceNone,
		}
		if err := s.markers.Apply(ctx, nil, params.PlaceType); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result, err := s.coordinator.Search(ctx, entities.SearchRequest{
		Location:  location,
		RadiusKm:  params.SearchRadius,
		PlaceType: params.PlaceType,
		MinRating: params.MinStars,
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if result.Status == entities.SearchStatusSuperseded {
		return result, nil
	}

	if err := s.Accept(ctx, &entities.PersistedSearch{
		Places:       result.Places,
		SearchParams: params,
		Timestamp:    s.now(),
		FromHistory:  false,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadFromHistory renders a result set saved in the user's history
func (s *SearchSession) LoadFromHistory(ctx context.Context, historyID string) (*entities.PersistedSearch, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}
	userID := s.UserID()
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("sign in to load search history")
	}
	if s.history == nil {
		return nil, apperrors.NewNotFoundError("search history is disabled")
	}

	entry, err := s.history.Get(ctx, userID, historyID)
	if err != nil {
		return nil, err
	}

	search := &entities.PersistedSearch{
		Places:       entry.Places,
		SearchParams: entry.Params(),
		Timestamp:    s.now(),
		FromHistory:  true,
	}
	if err := s.Accept(ctx, search); err != nil {
		return nil, err
	}
	return search, nil
}

// Accept makes search the session's current result set. Non-empty sets are
// saved as the last search; fresh non-empty sets of a signed-in user are
// also recorded to history.
func (s *SearchSession) Accept(ctx context.Context, search *entities.PersistedSearch) error {
	logger := observability.SessionLogger(ctx, s.id)

	if len(search.Places) > 0 && s.lastSearch != nil {
		if err := s.lastSearch.Save(ctx, s.id, search); err != nil {
			logger.Warn().Err(err).Msg("Failed to save last search")
		}
	}

	if err := s.markers.Apply(ctx, search.Places, search.SearchParams.PlaceType); err != nil {
		return err
	}

	userID := s.UserID()
	if !search.FromHistory && userID != "" && len(search.Places) > 0 && s.history != nil {
		if _, err := s.history.Record(ctx, userID, search.SearchParams, search.Places); err != nil {
			logger.Warn().Err(err).Msg("Failed to record search history")
		}
	}
	return nil
}

// Restore re-renders the last saved search. A search that did not come
// from history is recorded again; the history dedup window collapses
// repeated restores into one entry.
func (s *SearchSession) Restore(ctx context.Context) (*entities.PersistedSearch, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}
	search, err := s.LastSearch(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Accept(ctx, search); err != nil {
		return nil, err
	}
	return search, nil
}

// LastSearch returns the saved search without rendering it
func (s *SearchSession) LastSearch(ctx context.Context) (*entities.PersistedSearch, error) {
	if s.lastSearch == nil {
		return nil, apperrors.NewNotFoundError("no saved search")
	}
	return s.lastSearch.Load(ctx, s.id)
}

// Select opens the popup of a rendered place
func (s *SearchSession) Select(ctx context.Context, placeID string, source SelectionSource) error {
	if err := s.touch(); err != nil {
		return err
	}
	if !source.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown selection source %q", source))
	}
	return s.markers.Select(ctx, placeID, source)
}

// Snapshot returns the rendered map state
func (s *SearchSession) Snapshot() MapSnapshot {
	return s.markers.Snapshot()
}

// Close drops the pending search and removes every marker. A closed
// session rejects further calls.
func (s *SearchSession) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.coordinator.Cancel()
	s.markers.Clear(ctx)
}

func (s *SearchSession) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperrors.NewNotFoundError(fmt.Sprintf("session %s has ended", s.id))
	}
	s.lastActive = s.now()
	return nil
}
