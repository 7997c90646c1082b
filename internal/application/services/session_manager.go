package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Guram12/starmap/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxSessionIDLength = 128

// SessionFactory builds a fresh session
type SessionFactory func(sessionID, userID string) *SearchSession

// SessionManager owns the live search sessions
type SessionManager struct {
	factory SessionFactory
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*SearchSession

	stopOnce sync.Once
	stop     chan struct{}
}

// NewSessionManager creates a manager. Sessions unused for idleTTL are
// ended by the janitor started with StartJanitor.
func NewSessionManager(factory SessionFactory, idleTTL time.Duration) *SessionManager {
	return &SessionManager{
		factory:  factory,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*SearchSession),
		stop:     make(chan struct{}),
	}
}

// Open returns the session with the given id, creating it when missing.
// The session's user is updated to userID.
func (m *SessionManager) Open(ctx context.Context, sessionID, userID string) (*SearchSession, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		if s.UserID() != userID {
			s.SetUser(userID)
		}
		return s, nil
	}

	s := m.factory(sessionID, userID)
	m.sessions[sessionID] = s
	log.Debug().Str("session_id", sessionID).Bool("authenticated", userID != "").Msg("Session opened")
	return s, nil
}

// Get returns an existing session
func (m *SessionManager) Get(sessionID string) (*SearchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("session %s not found", sessionID))
	}
	return s, nil
}

// End closes and forgets a session
func (m *SessionManager) End(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("session %s not found", sessionID))
	}
	s.Close(ctx)
	log.Debug().Str("session_id", sessionID).Msg("Session ended")
	return nil
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep ends every session idle for longer than the idle TTL
func (m *SessionManager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*SearchSession
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close(ctx)
	}
	if len(idle) > 0 {
		log.Info().Int("ended", len(idle)).Msg("Ended idle sessions")
	}
	return len(idle)
}

// StartJanitor sweeps idle sessions every interval until Shutdown
func (m *SessionManager) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.Sweep(context.Background())
			}
		}
	}()
}

// Shutdown stops the janitor and ends every session
func (m *SessionManager) Shutdown(ctx context.Context) {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*SearchSession)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}
}

func validateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError("session id is required")
	}
	if len(id) > maxSessionIDLength {
		return apperrors.NewValidationError("session id is too long")
	}
	return nil
}
