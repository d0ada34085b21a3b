// Package gamification evaluates achievement rules and grants unlocks.
package gamification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/store"
)

const (
	// MinAttemptsForAccuracy is how many answers overall_accuracy rules need before they apply.
	MinAttemptsForAccuracy = 20
	// MinSimuladoQuestions is the smallest exam that counts for simulado_accuracy rules.
	MinSimuladoQuestions = 10
)

// ErrInvalidInput is returned for out-of-range exam results.
var ErrInvalidInput = errors.New("invalid achievement check input")

// Publisher receives one call per newly granted achievement.
type Publisher interface {
	PublishUnlock(ctx context.Context, userID string, achievement domain.Achievement) error
}

// Service implements the check-and-grant procedure.
type Service struct {
	repo      store.Repository
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a grant service. publisher may be nil.
func NewService(repo store.Repository, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, now: time.Now, logger: logger}
}

// CheckAndGrant evaluates every locked achievement for userID and returns the
// ones granted by this call.
func (s *Service) CheckAndGrant(ctx context.Context, userID string, simulado domain.SimuladoResult) ([]domain.Achievement, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if simulado.Accuracy < 0 || simulado.Accuracy > 100 {
		return nil, fmt.Errorf("%w: accuracy must be within [0, 100]", ErrInvalidInput)
	}
	if simulado.QuestionCount < 0 {
		return nil, fmt.Errorf("%w: question count must be >= 0", ErrInvalidInput)
	}

	catalog, err := s.repo.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	unlocked, err := s.repo.ListUnlocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load unlocked: %w", err)
	}
	progress, err := s.repo.AchievementProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	have := make(map[string]struct{}, len(unlocked))
	for _, u := range unlocked {
		have[u.AchievementCode] = struct{}{}
	}

	byCode := make(map[string]domain.Achievement)
	var candidates []string
	for _, a := range catalog {
		if _, ok := have[a.Code]; ok {
			continue
		}
		if Qualifies(a, *progress, simulado) {
			candidates = append(candidates, a.Code)
			byCode[a.Code] = a
		}
	}
	if len(candidates) == 0 {
		return []domain.Achievement{}, nil
	}

	codes, err := s.repo.GrantAchievements(ctx, userID, candidates, s.now())
	if err != nil {
		return nil, fmt.Errorf("grant achievements: %w", err)
	}

	granted := make([]domain.Achievement, 0, len(codes))
	for _, code := range codes {
		a := byCode[code]
		granted = append(granted, a)
		s.logger.Info("Achievement granted", "user_id", userID, "code", code)
		if s.publisher != nil {
			if err := s.publisher.PublishUnlock(ctx, userID, a); err != nil {
				s.logger.Warn("failed to publish achievement unlock", "user_id", userID, "code", code, "error", err)
			}
		}
	}
	return granted, nil
}

// Qualifies reports whether a single achievement's rule is met.
func Qualifies(a domain.Achievement, p domain.AchievementProgress, sim domain.SimuladoResult) bool {
	switch a.CriteriaType {
	case domain.CriteriaQuestionsAnswered:
		return float64(p.TotalAttempts) >= a.CriteriaValue
	case domain.CriteriaCorrectAnswers:
		return float64(p.CorrectAttempts) >= a.CriteriaValue
	case domain.CriteriaOverallAccuracy:
		if p.TotalAttempts < MinAttemptsForAccuracy {
			return false
		}
		return float64(domain.AccuracyPercent(p.CorrectAttempts, p.TotalAttempts)) >= a.CriteriaValue
	case domain.CriteriaSimuladoCompleted:
		return sim.QuestionCount > 0 && float64(sim.QuestionCount) >= a.CriteriaValue
	case domain.CriteriaSimuladoAccuracy:
		return sim.QuestionCount >= MinSimuladoQuestions && sim.Accuracy >= a.CriteriaValue
	default:
		return false
	}
}
