//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/gamification"
	"github.com/gabarita-ai/gabarita/internal/identity"
	"github.com/gabarita-ai/gabarita/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "bar", got["foo"])
}

type recordingPublisher struct {
	codes []string
}

func (p *recordingPublisher) PublishUnlock(_ context.Context, _ string, a domain.Achievement) error {
	p.codes = append(p.codes, a.Code)
	return nil
}

type testServer struct {
	repo      store.Repository
	handler   *Handler
	router    chi.Router
	published *recordingPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	pub := &recordingPublisher{}
	h := NewHandler(repo, gamification.NewService(repo, pub, nil), true, nil)
	fixed := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	r := chi.NewRouter()
	r.Use(identity.Middleware(repo))
	h.RegisterRoutes(r)
	NewHealthHandler(repo, time.Second).RegisterHealth(r)
	return &testServer{repo: repo, handler: h, router: r, published: pub}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestDashboardStatsRequiresUser(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, target := range []string{"/api/dashboard-stats", "/api/performance-summary", "/api/achievements/unlocked"} {
		rec := s.do(t, http.MethodGet, target, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body), target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestAttemptsFeedDashboardAndPerformance(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.repo.UpsertSubject(ctx, domain.Subject{ID: "mat", Name: "Matemática"}))
	require.NoError(t, s.repo.UpsertTopic(ctx, domain.Topic{ID: "geo", SubjectID: "mat", Name: "Geometria"}))

	for _, body := range []string{
		`{"userId":"u1","questionId":"q1","subjectId":"mat","topicId":"geo","isCorrect":true,"timeSpentSeconds":90}`,
		`{"userId":"u1","questionId":"q2","subjectId":"mat","topicId":"geo","isCorrect":false,"timeSpentSeconds":60}`,
	} {
		rec := s.do(t, http.MethodPost, "/api/attempts", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodGet, "/api/dashboard-stats?userId=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.DashboardStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, domain.DashboardStats{QuestionsToday: 2, OverallAccuracy: 50, StudyTimeMinutes: 2, TotalScore: 10}, stats)

	rec = s.do(t, http.MethodGet, "/api/performance-summary?userId=u1", "")
	var rows []domain.PerformanceRow
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Matemática", rows[0].SubjectName)
	assert.Equal(t, "Geometria", rows[0].TopicName)
	assert.Equal(t, 50.0, rows[0].Accuracy)
}

func TestRecordAttemptValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, body := range []string{
		`{"questionId":"q1"}`,
		`{"userId":"u1"}`,
		`{"userId":"u1","questionId":"q1","timeSpentSeconds":-1}`,
		`not json`,
	} {
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/attempts", body).Code, body)
	}
}

func TestCheckAndGrantReturnsOnlyNewAchievements(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/attempts", `{"userId":"u1","questionId":"q1","isCorrect":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := `{"p_user_id":"u1","p_simulado_accuracy":0,"p_simulado_question_count":0}`
	rec = s.do(t, http.MethodPost, "/api/rpc/check_and_grant_achievements", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var granted []domain.Achievement
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&granted))
	require.Len(t, granted, 1)
	assert.Equal(t, "first_question", granted[0].Code)
	assert.Equal(t, []string{"first_question"}, s.published.codes)

	rec = s.do(t, http.MethodPost, "/api/rpc/check_and_grant_achievements", body)
	assert.JSONEq(t, `[]`, rec.Body.String(), "repeat grants an empty array")

	rec = s.do(t, http.MethodGet, "/api/achievements/unlocked?userId=u1", "")
	var unlocked []domain.UnlockedAchievement
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&unlocked))
	require.Len(t, unlocked, 1)
	assert.Equal(t, "first_question", unlocked[0].AchievementCode)
}

func TestCheckAndGrantRejectsBadInput(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, body := range []string{
		`{"p_simulado_accuracy":10}`,
		`{"p_user_id":"u1","p_simulado_accuracy":120}`,
		`{"p_user_id":"u1","p_simulado_question_count":-1}`,
	} {
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/rpc/check_and_grant_achievements", body).Code, body)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/achievements", "")
	var catalog []domain.Achievement
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&catalog))
	assert.Len(t, catalog, len(domain.DefaultAchievements))

	rec = s.do(t, http.MethodGet, "/api/subjects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/config", "")
	assert.Contains(t, rec.Body.String(), `"ai_enabled":true`)
}

func TestGetMeCreatesProfileOnFirstVisit(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(identity.UserHeaderName, "user-123456789")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var profile domain.UserProfile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	assert.Equal(t, "estudante-23456789", profile.DisplayName)
}

type failingRepo struct {
	store.Repository
}

func (failingRepo) Ping(context.Context) error { return errors.New("down") }

func TestHealthReportsDegradedDatabase(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewHealthHandler(failingRepo{}, time.Second).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"unreachable"`)
}
