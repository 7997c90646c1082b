package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Guram12/starmap/internal/adapters/cache"
	"github.com/Guram12/starmap/internal/adapters/database"
	"github.com/Guram12/starmap/internal/adapters/events"
	"github.com/Guram12/starmap/internal/adapters/mapview"
	"github.com/Guram12/starmap/internal/adapters/providers/geolocation"
	"github.com/Guram12/starmap/internal/api/handlers"
	"github.com/Guram12/starmap/internal/api/middleware"
	"github.com/Guram12/starmap/internal/api/routes"
	"github.com/Guram12/starmap/internal/application/services"
	"github.com/stretchr/testify/require"
)

// testApp is the full HTTP stack wired on in-memory adapters and the mock
// geolocation provider
type testApp struct {
	handler  http.Handler
	sessions *services.SessionManager
	bus      *events.MemoryEventBus
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	provider := geolocation.NewMockProvider()
	bus := events.NewMemoryEventBus()
	lastSearch := cache.NewLastSearchStore(cache.NewMemoryAdapter(), 0)
	history := services.NewSearchHistoryService(database.NewMemorySearchHistory(), 50, 5*time.Minute, nil)

	cfg := services.DefaultCoordinatorConfig()
	cfg.DebounceWindow = 5 * time.Millisecond

	sessions := services.NewSessionManager(func(sessionID, userID string) *services.SearchSession {
		renderer := mapview.NewEventRenderer(sessionID, bus)
		coordinator := services.NewSearchCoordinator(provider, provider, cfg, nil)
		return services.NewSearchSession(sessionID, userID, coordinator, services.NewMarkerSynchronizer(renderer), lastSearch, history)
	}, time.Hour)

	router := routes.NewRouter(
		handlers.NewGeolocationHandler(services.NewSearchCoordinator(provider, provider, cfg, nil)),
		handlers.NewPhotoHandler(provider),
		handlers.NewSessionHandler(sessions),
		handlers.NewSearchHistoryHandler(history),
		handlers.NewSSEHandler(sessions, bus).WithHeartbeat(time.Hour),
		middleware.NewCacheMiddleware(cache.NewMemoryAdapter(), time.Hour),
		[]string{"*"},
		nil,
	)

	t.Cleanup(func() {
		sessions.Shutdown(context.Background())
		_ = bus.Close()
	})
	return &testApp{handler: router.SetupRoutes(), sessions: sessions, bus: bus}
}

func (a *testApp) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(handlers.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

var tbilisiRestaurants = map[string]interface{}{
	"region":       "Tbilisi",
	"placeType":    "restaurant",
	"minStars":     0,
	"searchRadius": 5,
}

func newRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

func serve(a *testApp, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}
