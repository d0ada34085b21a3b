// Package dashboard fetches the learner's dashboard figures.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gabarita-ai/gabarita/internal/client"
	"github.com/gabarita-ai/gabarita/internal/domain"
)

// Fallback messages used when the server did not say what went wrong.
const (
	StatsFailureMessage       = "Erro ao carregar estatísticas"
	PerformanceFailureMessage = "Erro ao carregar desempenho"
)

const (
	statsPath       = "/api/dashboard-stats"
	performancePath = "/api/performance-summary"
)

// Snapshot is the observable state of a Resource.
type Snapshot[T any] struct {
	Data    *T
	Loading bool
	Error   string
}

// Resource is a user-scoped GET endpoint whose last result is kept in memory.
// A failed fetch keeps the previous data and records the error.
type Resource[T any] struct {
	client   *client.Client
	session  client.Session
	path     string
	fallback string
	logger   *slog.Logger

	mu      sync.Mutex
	data    *T
	loading bool
	errMsg  string
}

// Stats tracks GET /api/dashboard-stats.
type Stats = Resource[domain.DashboardStats]

// Performance tracks GET /api/performance-summary.
type Performance = Resource[[]domain.PerformanceRow]

// NewStats creates a Stats tracker. Nothing is fetched until Refresh.
func NewStats(c *client.Client, session client.Session) *Stats {
	return newResource[domain.DashboardStats](c, session, statsPath, StatsFailureMessage)
}

// NewPerformance creates a Performance tracker. Nothing is fetched until Refresh.
func NewPerformance(c *client.Client, session client.Session) *Performance {
	return newResource[[]domain.PerformanceRow](c, session, performancePath, PerformanceFailureMessage)
}

func newResource[T any](c *client.Client, session client.Session, path, fallback string) *Resource[T] {
	return &Resource[T]{
		client:   c,
		session:  session,
		path:     path,
		fallback: fallback,
		logger:   c.Logger(),
		loading:  true,
	}
}

// Snapshot returns the current state.
func (r *Resource[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot[T]{Data: r.data, Loading: r.loading, Error: r.errMsg}
}

// Refresh fetches the resource for the signed-in user. Without a user it
// clears loading and issues no request. Failures are recorded in the
// snapshot, never returned.
func (r *Resource[T]) Refresh(ctx context.Context) {
	userID := r.session.UserID()
	if userID == "" {
		r.mu.Lock()
		r.loading = false
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.loading = true
	r.errMsg = ""
	r.mu.Unlock()

	var out T
	err := r.client.GetJSON(ctx, r.path, url.Values{"userId": {userID}}, &out)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = false
	if err != nil {
		r.logger.Error("Dashboard fetch failed", "path", r.path, "user_id", userID, "error", err)
		r.errMsg = r.fallback
		var se *client.StatusError
		if errors.As(err, &se) && se.Message != "" {
			r.errMsg = se.Message
		}
		return
	}
	r.data = &out
}
