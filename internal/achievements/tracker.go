// Package achievements tracks the learner's unlocked badges.
package achievements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/gabarita-ai/gabarita/internal/client"
	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/realtime"
)

const (
	catalogPath  = "/api/achievements"
	unlockedPath = "/api/achievements/unlocked"
	grantPath    = "/api/rpc/check_and_grant_achievements"
	streamPath   = "/ws/achievements"
)

// ErrNoUser is returned by Watch when nobody is signed in.
var ErrNoUser = errors.New("achievements: no signed-in user")

type grantRequest struct {
	UserID                string  `json:"p_user_id"`
	SimuladoAccuracy      float64 `json:"p_simulado_accuracy"`
	SimuladoQuestionCount int     `json:"p_simulado_question_count"`
}

// Tracker holds the catalog and the set of codes the learner has unlocked.
type Tracker struct {
	client  *client.Client
	session client.Session
	logger  *slog.Logger

	mu       sync.RWMutex
	user     string
	catalog  []domain.Achievement
	unlocked map[string]struct{}
	loading  bool
}

// NewTracker creates an empty tracker.
func NewTracker(c *client.Client, session client.Session) *Tracker {
	return &Tracker{
		client:   c,
		session:  session,
		logger:   c.Logger(),
		unlocked: make(map[string]struct{}),
		loading:  true,
	}
}

// Load fetches the catalog and the unlocked codes concurrently. Fetched codes
// are added to the unlocked set; a failed fetch leaves the current state as
// it is. Without a user nothing is fetched.
func (t *Tracker) Load(ctx context.Context) {
	userID := t.session.UserID()
	if userID == "" {
		t.mu.Lock()
		t.loading = false
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	t.loading = true
	t.mu.Unlock()

	var (
		catalog            []domain.Achievement
		unlocked           []domain.UnlockedAchievement
		catalogOK, codesOK bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := t.client.GetJSON(gctx, catalogPath, nil, &catalog); err != nil {
			t.logger.Error("Failed to load achievement catalog", "error", err)
			return nil
		}
		catalogOK = true
		return nil
	})
	g.Go(func() error {
		if err := t.client.GetJSON(gctx, unlockedPath, url.Values{"userId": {userID}}, &unlocked); err != nil {
			t.logger.Error("Failed to load unlocked achievements", "user_id", userID, "error", err)
			return nil
		}
		codesOK = true
		return nil
	})
	_ = g.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.switchUserLocked(userID)
	if catalogOK {
		t.catalog = catalog
	}
	if codesOK {
		for _, u := range unlocked {
			t.unlocked[u.AchievementCode] = struct{}{}
		}
	}
	t.loading = false
}

// switchUserLocked drops the unlocked set when userID is not the learner it
// was collected for. The set only ever grows for a single learner.
func (t *Tracker) switchUserLocked(userID string) {
	if t.user == userID {
		return
	}
	if t.user != "" {
		t.logger.Info("Achievement tracker switched user", "user_id", userID)
		t.unlocked = make(map[string]struct{})
	}
	t.user = userID
}

// CheckForNew asks the server to grant whatever the learner now qualifies for
// and returns the achievements that were not unlocked before. result is the
// simulated exam that was just finished; nil sends zeros. Errors are logged
// and yield an empty slice.
func (t *Tracker) CheckForNew(ctx context.Context, result *domain.SimuladoResult) []domain.Achievement {
	userID := t.session.UserID()
	if userID == "" {
		return []domain.Achievement{}
	}

	req := grantRequest{UserID: userID}
	if result != nil {
		req.SimuladoAccuracy = result.Accuracy
		req.SimuladoQuestionCount = result.QuestionCount
	}

	var granted []domain.Achievement
	if err := t.client.PostJSON(ctx, grantPath, req, &granted); err != nil {
		t.logger.Error("Achievement check failed", "user_id", userID, "error", err)
		return []domain.Achievement{}
	}
	return t.merge(userID, granted)
}

// merge adds granted to userID's unlocked set and returns the ones that were
// new.
func (t *Tracker) merge(userID string, granted []domain.Achievement) []domain.Achievement {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.switchUserLocked(userID)
	fresh := make([]domain.Achievement, 0, len(granted))
	for _, a := range granted {
		if _, ok := t.unlocked[a.Code]; ok {
			continue
		}
		t.unlocked[a.Code] = struct{}{}
		fresh = append(fresh, a)
	}
	return fresh
}

// Watch subscribes to pushed unlocks and calls onUnlock for each achievement
// not already in the unlocked set. It blocks until ctx is done or the
// connection drops.
func (t *Tracker) Watch(ctx context.Context, onUnlock func(domain.Achievement)) error {
	userID := t.session.UserID()
	if userID == "" {
		return ErrNoUser
	}
	target, err := t.client.WebSocketURL(streamPath, url.Values{"userId": {userID}})
	if err != nil {
		return fmt.Errorf("build stream url: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial achievement stream: %w", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	t.logger.Info("Watching achievements", "user_id", userID)

	for {
		var ev realtime.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read achievement stream: %w", err)
		}
		if ev.Type != realtime.EventAchievementUnlocked {
			continue
		}
		for _, a := range t.merge(userID, []domain.Achievement{ev.Achievement}) {
			if onUnlock != nil {
				onUnlock(a)
			}
		}
	}
}

// Catalog returns the loaded catalog.
func (t *Tracker) Catalog() []domain.Achievement {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.Achievement(nil), t.catalog...)
}

// IsUnlocked reports whether code is in the unlocked set.
func (t *Tracker) IsUnlocked(code string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.unlocked[code]
	return ok
}

// UnlockedCount returns the size of the unlocked set.
func (t *Tracker) UnlockedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.unlocked)
}

// Loading reports whether a Load is pending.
func (t *Tracker) Loading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loading
}
