package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/repositories"
	apperrors "github.com/Guram12/starmap/pkg/errors"
	"github.com/google/uuid"
)

// MemorySearchHistory keeps search history in process memory. It backs the
// history endpoints when Postgres is disabled.
type MemorySearchHistory struct {
	mu      sync.RWMutex
	entries map[string]*entities.SearchHistoryEntry
}

// NewMemorySearchHistory creates an empty in-memory history store
func NewMemorySearchHistory() *MemorySearchHistory {
	return &MemorySearchHistory{entries: make(map[string]*entities.SearchHistoryEntry)}
}

var _ repositories.SearchHistoryRepository = (*MemorySearchHistory)(nil)

func (m *MemorySearchHistory) Create(ctx context.Context, entry *entities.SearchHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SearchedAt.IsZero() {
		entry.SearchedAt = time.Now().UTC()
	}
	entry.ResultsCount = len(entry.Places)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (m *MemorySearchHistory) FindRecent(ctx context.Context, userID string, params entities.SearchParams, since time.Time) (*entities.SearchHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *entities.SearchHistoryEntry
	for _, e := range m.entries {
		if e.UserID != userID || e.Params() != params || e.SearchedAt.Before(since) {
			continue
		}
		if best == nil || e.SearchedAt.After(best.SearchedAt) {
			best = e
		}
	}
	if best == nil {
		return nil, apperrors.NewNotFoundError("no recent identical search")
	}
	return cloneEntry(best), nil
}

func (m *MemorySearchHistory) UpdateResults(ctx context.Context, id string, places []entities.Place, searchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("search history entry %s not found", id))
	}
	e.Places = append([]entities.Place{}, places...)
	e.ResultsCount = len(places)
	e.SearchedAt = searchedAt
	return nil
}

func (m *MemorySearchHistory) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SearchHistoryEntry, error) {
	m.mu.RLock()
	out := make([]*entities.SearchHistoryEntry, 0)
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, cloneEntry(e))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SearchedAt.After(out[j].SearchedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemorySearchHistory) GetByID(ctx context.Context, userID, id string) (*entities.SearchHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("search history entry %s not found", id))
	}
	return cloneEntry(e), nil
}

func (m *MemorySearchHistory) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, e := range m.entries {
		if e.UserID == userID {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func cloneEntry(e *entities.SearchHistoryEntry) *entities.SearchHistoryEntry {
	c := *e
	c.Places = append([]entities.Place{}, e.Places...)
	return &c
}
