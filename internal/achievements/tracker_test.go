package achievements

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabarita-ai/gabarita/internal/client"
	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/realtime"
)

// fakeAPI serves the achievement endpoints from fixed data.
type fakeAPI struct {
	mu          sync.Mutex
	catalog     string
	unlocked    string
	unlockedErr atomic.Bool
	// held, when set, is signalled once the unlocked request arrives and
	// the handler then waits for release before answering.
	held     chan struct{}
	release  chan struct{}
	granted  []domain.Achievement
	grantErr bool
	grants   []grantRequest
	hits     atomic.Int32
}

func (f *fakeAPI) setUnlocked(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocked = body
}

func (f *fakeAPI) routes(r chi.Router) {
	r.Get(catalogPath, func(w http.ResponseWriter, _ *http.Request) {
		f.hits.Add(1)
		_, _ = w.Write([]byte(f.catalog))
	})
	r.Get(unlockedPath, func(w http.ResponseWriter, _ *http.Request) {
		f.hits.Add(1)
		if f.held != nil {
			f.held <- struct{}{}
			<-f.release
		}
		if f.unlockedErr.Load() {
			http.Error(w, `{"error":"failed to list unlocked achievements"}`, http.StatusInternalServerError)
			return
		}
		f.mu.Lock()
		body := f.unlocked
		f.mu.Unlock()
		_, _ = w.Write([]byte(body))
	})
	r.Post(grantPath, func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		var req grantRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.grants = append(f.grants, req)
		f.mu.Unlock()
		if f.grantErr {
			http.Error(w, `{"error":"failed to check achievements"}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(f.granted)
	})
}

func newTracker(t *testing.T, api *fakeAPI, userID string) (*Tracker, *realtime.Hub) {
	t.Helper()
	return newTrackerWithSession(t, api, client.StaticSession(userID))
}

func newTrackerWithSession(t *testing.T, api *fakeAPI, session client.Session) (*Tracker, *realtime.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := realtime.NewHub(realtime.NewMemoryBus(), []string{"*"}, nil)
	require.NoError(t, hub.Start(ctx))

	r := chi.NewRouter()
	api.routes(r)
	hub.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewTracker(client.New(srv.URL), session), hub
}

const catalogJSON = `[
	{"code":"first_question","name":"Primeiro passo","criteria_type":"questions_answered","criteria_value":1},
	{"code":"first_simulado","name":"Primeiro simulado","criteria_type":"simulado_completed","criteria_value":1}
]`

func TestLoadFetchesCatalogAndUnlocked(t *testing.T) {
	api := &fakeAPI{
		catalog:  catalogJSON,
		unlocked: `[{"achievement_code":"first_question","unlocked_at":"2026-10-01T12:00:00Z"}]`,
	}
	tr, _ := newTracker(t, api, "u1")
	assert.True(t, tr.Loading())

	tr.Load(context.Background())

	assert.False(t, tr.Loading())
	assert.Len(t, tr.Catalog(), 2)
	assert.True(t, tr.IsUnlocked("first_question"))
	assert.False(t, tr.IsUnlocked("first_simulado"))
	assert.Equal(t, 1, tr.UnlockedCount())
}

func TestLoadDegradesOnFetchError(t *testing.T) {
	api := &fakeAPI{catalog: catalogJSON}
	api.unlockedErr.Store(true)
	tr, _ := newTracker(t, api, "u1")

	tr.Load(context.Background())

	assert.Len(t, tr.Catalog(), 2)
	assert.Zero(t, tr.UnlockedCount())
	assert.False(t, tr.Loading())
}

func TestReloadKeepsMergedCodes(t *testing.T) {
	api := &fakeAPI{
		catalog:  catalogJSON,
		unlocked: `[]`,
		granted:  []domain.Achievement{{Code: "first_simulado", Name: "Primeiro simulado"}},
	}
	tr, _ := newTracker(t, api, "u1")
	ctx := context.Background()
	tr.Load(ctx)
	require.Len(t, tr.CheckForNew(ctx, nil), 1)

	// The server now lists only an older code.
	api.setUnlocked(`[{"achievement_code":"first_question","unlocked_at":"2026-10-01T12:00:00Z"}]`)
	tr.Load(ctx)
	assert.True(t, tr.IsUnlocked("first_simulado"))
	assert.True(t, tr.IsUnlocked("first_question"))

	api.unlockedErr.Store(true)
	tr.Load(ctx)
	assert.True(t, tr.IsUnlocked("first_simulado"))
	assert.True(t, tr.IsUnlocked("first_question"))
	assert.Equal(t, 2, tr.UnlockedCount())
	assert.Len(t, tr.Catalog(), 2)
}

func TestLoadOverlappingCheckForNew(t *testing.T) {
	api := &fakeAPI{
		catalog:  catalogJSON,
		unlocked: `[{"achievement_code":"first_question","unlocked_at":"2026-10-01T12:00:00Z"}]`,
		granted:  []domain.Achievement{{Code: "first_simulado", Name: "Primeiro simulado"}},
		held:     make(chan struct{}),
		release:  make(chan struct{}),
	}
	tr, _ := newTracker(t, api, "u1")
	ctx := context.Background()

	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		tr.Load(ctx)
	}()

	select {
	case <-api.held:
	case <-time.After(2 * time.Second):
		t.Fatal("unlocked fetch never started")
	}
	fresh := tr.CheckForNew(ctx, &domain.SimuladoResult{Accuracy: 90, QuestionCount: 10})
	require.Len(t, fresh, 1)
	close(api.release)

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return")
	}
	assert.True(t, tr.IsUnlocked("first_simulado"))
	assert.True(t, tr.IsUnlocked("first_question"))
	assert.False(t, tr.Loading())
}

func TestSwitchingUserClearsUnlocked(t *testing.T) {
	api := &fakeAPI{
		catalog:  catalogJSON,
		unlocked: `[{"achievement_code":"first_question","unlocked_at":"2026-10-01T12:00:00Z"}]`,
		granted:  []domain.Achievement{{Code: "first_simulado", Name: "Primeiro simulado"}},
	}
	var session client.MutableSession
	session.SetUserID("u1")
	tr, _ := newTrackerWithSession(t, api, &session)
	ctx := context.Background()
	tr.Load(ctx)
	require.Len(t, tr.CheckForNew(ctx, nil), 1)
	require.Equal(t, 2, tr.UnlockedCount())

	session.SetUserID("u2")
	api.setUnlocked(`[]`)
	tr.Load(ctx)
	assert.Zero(t, tr.UnlockedCount())
	assert.Len(t, tr.Catalog(), 2)

	// The same grant is new again for the other learner.
	fresh := tr.CheckForNew(ctx, nil)
	require.Len(t, fresh, 1)
	assert.Equal(t, "first_simulado", fresh[0].Code)
}

func TestLoadWithoutUserSkipsFetches(t *testing.T) {
	api := &fakeAPI{catalog: catalogJSON, unlocked: `[]`}
	tr, _ := newTracker(t, api, "")

	tr.Load(context.Background())

	assert.Zero(t, api.hits.Load())
	assert.False(t, tr.Loading())
	assert.Empty(t, tr.Catalog())
}

func TestCheckForNewReturnsOnlyNewCodes(t *testing.T) {
	api := &fakeAPI{
		catalog:  catalogJSON,
		unlocked: `[{"achievement_code":"first_question","unlocked_at":"2026-10-01T12:00:00Z"}]`,
		granted: []domain.Achievement{
			{Code: "first_question", Name: "Primeiro passo"},
			{Code: "first_simulado", Name: "Primeiro simulado"},
		},
	}
	tr, _ := newTracker(t, api, "u1")
	ctx := context.Background()
	tr.Load(ctx)

	fresh := tr.CheckForNew(ctx, &domain.SimuladoResult{Accuracy: 85, QuestionCount: 20})
	require.Len(t, fresh, 1)
	assert.Equal(t, "first_simulado", fresh[0].Code)
	assert.True(t, tr.IsUnlocked("first_simulado"))

	again := tr.CheckForNew(ctx, &domain.SimuladoResult{Accuracy: 85, QuestionCount: 20})
	assert.Empty(t, again)
	assert.Equal(t, 2, tr.UnlockedCount())

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.grants, 2)
	assert.Equal(t, grantRequest{UserID: "u1", SimuladoAccuracy: 85, SimuladoQuestionCount: 20}, api.grants[0])
}

func TestCheckForNewWithoutResultSendsZeros(t *testing.T) {
	api := &fakeAPI{catalog: catalogJSON, unlocked: `[]`}
	tr, _ := newTracker(t, api, "u1")

	assert.Empty(t, tr.CheckForNew(context.Background(), nil))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.grants, 1)
	assert.Equal(t, grantRequest{UserID: "u1"}, api.grants[0])
}

func TestCheckForNewErrorYieldsEmpty(t *testing.T) {
	api := &fakeAPI{catalog: catalogJSON, unlocked: `[]`, grantErr: true}
	tr, _ := newTracker(t, api, "u1")

	fresh := tr.CheckForNew(context.Background(), &domain.SimuladoResult{Accuracy: 50, QuestionCount: 10})
	assert.NotNil(t, fresh)
	assert.Empty(t, fresh)
	assert.Zero(t, tr.UnlockedCount())
}

func TestWatchDeliversPushedUnlocks(t *testing.T) {
	api := &fakeAPI{catalog: catalogJSON, unlocked: `[]`}
	tr, hub := newTracker(t, api, "u1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan domain.Achievement, 4)
	done := make(chan error, 1)
	go func() {
		done <- tr.Watch(ctx, func(a domain.Achievement) { got <- a })
	}()

	require.Eventually(t, func() bool { return hub.ConnectionCount("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	a := domain.Achievement{Code: "first_question", Name: "Primeiro passo"}
	require.NoError(t, hub.PublishUnlock(ctx, "u1", a))
	// A duplicate push is not reported twice.
	require.NoError(t, hub.PublishUnlock(ctx, "u1", a))
	require.NoError(t, hub.PublishUnlock(ctx, "u1", domain.Achievement{Code: "first_simulado"}))

	first := <-got
	second := <-got
	assert.Equal(t, "first_question", first.Code)
	assert.Equal(t, "first_simulado", second.Code)
	assert.Equal(t, 2, tr.UnlockedCount())

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchWithoutUser(t *testing.T) {
	tr, _ := newTracker(t, &fakeAPI{}, "")
	assert.ErrorIs(t, tr.Watch(context.Background(), nil), ErrNoUser)
}
