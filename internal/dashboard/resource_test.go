package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabarita-ai/gabarita/internal/client"
)

func TestStatsRefreshStoresPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, statsPath, r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("userId"))
		_, _ = w.Write([]byte(`{"questions_today":3,"overall_accuracy":67,"study_time_minutes":12,"total_score":20}`))
	}))
	defer srv.Close()

	stats := NewStats(client.New(srv.URL), client.StaticSession("u1"))
	assert.True(t, stats.Snapshot().Loading)

	stats.Refresh(context.Background())

	snap := stats.Snapshot()
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
	require.NotNil(t, snap.Data)
	assert.Equal(t, 3, snap.Data.QuestionsToday)
	assert.Equal(t, 67, snap.Data.OverallAccuracy)
	assert.Equal(t, 12, snap.Data.StudyTimeMinutes)
	assert.Equal(t, 20, snap.Data.TotalScore)
}

func TestRefreshWithoutUserIssuesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	perf := NewPerformance(client.New(srv.URL), client.StaticSession(""))
	perf.Refresh(context.Background())

	snap := perf.Snapshot()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Data)
	assert.Empty(t, snap.Error)
	assert.Zero(t, hits.Load())
}

func TestRefreshFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		ct   string
		body string
		want string
	}{
		{name: "server error field", ct: "application/json", body: `{"error":"failed to load dashboard stats"}`, want: "failed to load dashboard stats"},
		{name: "no error field", ct: "application/json", body: `{}`, want: StatsFailureMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.ct)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			stats := NewStats(client.New(srv.URL), client.StaticSession("u1"))
			stats.Refresh(context.Background())

			snap := stats.Snapshot()
			assert.False(t, snap.Loading)
			assert.Nil(t, snap.Data)
			assert.Equal(t, tt.want, snap.Error)
		})
	}
}

func TestRefreshFailureKeepsPreviousData(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"subject_id":"mat","subject_name":"Matemática","topic_id":"alg","topic_name":"Álgebra","total_attempts":4,"correct_attempts":3,"accuracy":75}]`))
	}))
	defer srv.Close()

	perf := NewPerformance(client.New(srv.URL), client.StaticSession("u1"))
	ctx := context.Background()
	perf.Refresh(ctx)
	fail.Store(true)
	perf.Refresh(ctx)

	snap := perf.Snapshot()
	require.NotNil(t, snap.Data)
	require.Len(t, *snap.Data, 1)
	assert.Equal(t, 75.0, (*snap.Data)[0].Accuracy)
	assert.Equal(t, PerformanceFailureMessage, snap.Error)
}
