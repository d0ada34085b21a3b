// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/gabarita-ai/gabarita/internal/domain"
)

// Repository defines the interface for persisting study data.
type Repository interface {
	// GetUserProfile retrieves a profile by user ID. Returns nil, nil when absent.
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)

	// EnsureUserProfile creates a profile for userID if none exists.
	EnsureUserProfile(ctx context.Context, userID string) error

	// UpsertSubject creates or renames a subject.
	UpsertSubject(ctx context.Context, subject domain.Subject) error

	// UpsertTopic creates or renames a topic.
	UpsertTopic(ctx context.Context, topic domain.Topic) error

	// ListSubjects returns all subjects ordered by name.
	ListSubjects(ctx context.Context) ([]domain.Subject, error)

	// RecordAttempt stores an answer and credits the profile's score when correct.
	RecordAttempt(ctx context.Context, attempt *domain.QuestionAttempt) error

	// DashboardStats computes the dashboard headline numbers for userID.
	// "Today" starts at midnight of now's location.
	DashboardStats(ctx context.Context, userID string, now time.Time) (*domain.DashboardStats, error)

	// PerformanceSummary aggregates attempts per subject and topic.
	PerformanceSummary(ctx context.Context, userID string) ([]domain.PerformanceRow, error)

	// ListAchievements returns the achievement catalog.
	ListAchievements(ctx context.Context) ([]domain.Achievement, error)

	// ListUnlocked returns the achievements granted to userID.
	ListUnlocked(ctx context.Context, userID string) ([]domain.UnlockedAchievement, error)

	// AchievementProgress returns the counters the grant rules evaluate.
	AchievementProgress(ctx context.Context, userID string) (*domain.AchievementProgress, error)

	// GrantAchievements records codes for userID and returns the codes that
	// were not already granted. Granting an existing code is a no-op.
	GrantAchievements(ctx context.Context, userID string, codes []string, at time.Time) ([]string, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
