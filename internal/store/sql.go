package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/shared"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"
)

// SQLStore implements Repository on database/sql for SQLite and Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency. Pragmas are applied
	// to every pooled connection.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := newSQLStore(db, dialectSQLite)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgres creates a Postgres-backed repository (e.g. a Supabase database)
// through the pgx database/sql driver.
func NewPostgres(dsn string) (Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	store, err := newSQLStore(db, dialectPostgres)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLStore{db: db, dialect: d}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema (%s): %w", s.dialect, err)
		}
	}

	insert := s.dialect.rebind(`
		INSERT INTO achievements (code, name, description, icon, criteria_type, criteria_value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING`)
	for _, a := range domain.DefaultAchievements {
		if _, err := s.db.ExecContext(ctx, insert,
			a.Code, a.Name, a.Description, a.Icon, string(a.CriteriaType), a.CriteriaValue,
		); err != nil {
			return fmt.Errorf("install achievement %s: %w", a.Code, err)
		}
	}
	return nil
}

func (s *SQLStore) q(query string) string {
	return s.dialect.rebind(query)
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUserProfile retrieves a profile by user ID.
func (s *SQLStore) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT user_id, display_name, total_score, created_at, updated_at
		FROM user_profiles WHERE user_id = ?`), userID)

	var p domain.UserProfile
	var createdAt, updatedAt int64
	err := row.Scan(&p.UserID, &p.DisplayName, &p.TotalScore, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user profile: %w", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// EnsureUserProfile creates a profile for userID if none exists.
func (s *SQLStore) EnsureUserProfile(ctx context.Context, userID string) error {
	return ensureProfile(ctx, s.db, s.dialect, userID, time.Now())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureProfile(ctx context.Context, e execer, d dialect, userID string, now time.Time) error {
	_, err := e.ExecContext(ctx, d.rebind(`
		INSERT INTO user_profiles (user_id, display_name, total_score, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`),
		userID, domain.DeriveDisplayName(userID), now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("ensure user profile: %w", err)
	}
	return nil
}

// UpsertSubject creates or renames a subject.
func (s *SQLStore) UpsertSubject(ctx context.Context, subject domain.Subject) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO subjects (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`),
		subject.ID, subject.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert subject: %w", err)
	}
	return nil
}

// UpsertTopic creates or renames a topic.
func (s *SQLStore) UpsertTopic(ctx context.Context, topic domain.Topic) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO topics (id, subject_id, name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET subject_id = excluded.subject_id, name = excluded.name`),
		topic.ID, topic.SubjectID, topic.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert topic: %w", err)
	}
	return nil
}

// ListSubjects returns all subjects ordered by name.
func (s *SQLStore) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM subjects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer closeRows(rows, "subjects")

	subjects := []domain.Subject{}
	for rows.Next() {
		var sub domain.Subject
		if err := rows.Scan(&sub.ID, &sub.Name); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

// RecordAttempt stores an answer and credits the profile's score when correct.
func (s *SQLStore) RecordAttempt(ctx context.Context, attempt *domain.QuestionAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attempt tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureProfile(ctx, tx, s.dialect, attempt.UserID, attempt.CreatedAt); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO question_attempts
			(id, user_id, question_id, subject_id, topic_id, is_correct, time_spent_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		attempt.ID, attempt.UserID, attempt.QuestionID, attempt.SubjectID, attempt.TopicID,
		boolToInt(attempt.IsCorrect), attempt.TimeSpentSeconds, attempt.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	if attempt.IsCorrect {
		if _, err := tx.ExecContext(ctx, s.q(`
			UPDATE user_profiles SET total_score = total_score + ?, updated_at = ?
			WHERE user_id = ?`),
			domain.PointsPerCorrectAnswer, attempt.CreatedAt.Unix(), attempt.UserID,
		); err != nil {
			return fmt.Errorf("credit score: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attempt: %w", err)
	}
	return nil
}

// DashboardStats computes the dashboard headline numbers for userID.
func (s *SQLStore) DashboardStats(ctx context.Context, userID string, now time.Time) (*domain.DashboardStats, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var total, correct, seconds, today int64
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*),
		       COALESCE(SUM(is_correct), 0),
		       COALESCE(SUM(time_spent_seconds), 0),
		       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM question_attempts WHERE user_id = ?`),
		midnight.Unix(), userID,
	).Scan(&total, &correct, &seconds, &today)
	if err != nil {
		return nil, fmt.Errorf("query dashboard stats: %w", err)
	}

	var score int64
	err = s.db.QueryRowContext(ctx, s.q(`SELECT total_score FROM user_profiles WHERE user_id = ?`), userID).Scan(&score)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query total score: %w", err)
	}

	return &domain.DashboardStats{
		QuestionsToday:   int(today),
		OverallAccuracy:  domain.AccuracyPercent(int(correct), int(total)),
		StudyTimeMinutes: int(seconds / 60),
		TotalScore:       int(score),
	}, nil
}

// PerformanceSummary aggregates attempts per subject and topic.
func (s *SQLStore) PerformanceSummary(ctx context.Context, userID string) ([]domain.PerformanceRow, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT a.subject_id, COALESCE(s.name, ''), a.topic_id, COALESCE(t.name, ''),
		       COUNT(*), COALESCE(SUM(a.is_correct), 0)
		FROM question_attempts a
		LEFT JOIN subjects s ON s.id = a.subject_id
		LEFT JOIN topics t ON t.id = a.topic_id
		WHERE a.user_id = ?
		GROUP BY a.subject_id, s.name, a.topic_id, t.name
		ORDER BY COALESCE(s.name, ''), COALESCE(t.name, '')`), userID)
	if err != nil {
		return nil, fmt.Errorf("query performance summary: %w", err)
	}
	defer closeRows(rows, "performance summary")

	summary := []domain.PerformanceRow{}
	for rows.Next() {
		var r domain.PerformanceRow
		var total, correct int64
		if err := rows.Scan(&r.SubjectID, &r.SubjectName, &r.TopicID, &r.TopicName, &total, &correct); err != nil {
			return nil, fmt.Errorf("scan performance row: %w", err)
		}
		r.TotalAttempts = int(total)
		r.CorrectAttempts = int(correct)
		r.Accuracy = domain.AccuracyOneDecimal(r.CorrectAttempts, r.TotalAttempts)
		summary = append(summary, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performance summary: %w", err)
	}
	return summary, nil
}

// ListAchievements returns the achievement catalog.
func (s *SQLStore) ListAchievements(ctx context.Context) ([]domain.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, description, icon, criteria_type, criteria_value
		FROM achievements ORDER BY criteria_type, criteria_value, code`)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer closeRows(rows, "achievements")

	catalog := []domain.Achievement{}
	for rows.Next() {
		var a domain.Achievement
		var criteria string
		if err := rows.Scan(&a.Code, &a.Name, &a.Description, &a.Icon, &criteria, &a.CriteriaValue); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.CriteriaType = domain.CriteriaType(criteria)
		catalog = append(catalog, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}
	return catalog, nil
}

// ListUnlocked returns the achievements granted to userID.
func (s *SQLStore) ListUnlocked(ctx context.Context, userID string) ([]domain.UnlockedAchievement, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT achievement_code, unlocked_at FROM user_achievements
		WHERE user_id = ? ORDER BY unlocked_at, achievement_code`), userID)
	if err != nil {
		return nil, fmt.Errorf("query unlocked achievements: %w", err)
	}
	defer closeRows(rows, "unlocked achievements")

	unlocked := []domain.UnlockedAchievement{}
	for rows.Next() {
		var u domain.UnlockedAchievement
		var at int64
		if err := rows.Scan(&u.AchievementCode, &at); err != nil {
			return nil, fmt.Errorf("scan unlocked achievement: %w", err)
		}
		u.UnlockedAt = time.Unix(at, 0)
		unlocked = append(unlocked, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unlocked achievements: %w", err)
	}
	return unlocked, nil
}

// AchievementProgress returns the counters the grant rules evaluate.
func (s *SQLStore) AchievementProgress(ctx context.Context, userID string) (*domain.AchievementProgress, error) {
	var total, correct int64
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*), COALESCE(SUM(is_correct), 0)
		FROM question_attempts WHERE user_id = ?`), userID,
	).Scan(&total, &correct)
	if err != nil {
		return nil, fmt.Errorf("query achievement progress: %w", err)
	}
	return &domain.AchievementProgress{TotalAttempts: int(total), CorrectAttempts: int(correct)}, nil
}

// GrantAchievements records codes for userID and returns the newly granted ones.
func (s *SQLStore) GrantAchievements(ctx context.Context, userID string, codes []string, at time.Time) ([]string, error) {
	if len(codes) == 0 {
		return []string{}, nil
	}

	var granted []string
	err := shared.RetryOnConflict(ctx, 3, 50*time.Millisecond, "grant achievements", func() error {
		var err error
		granted, err = s.grantOnce(ctx, userID, codes, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

func (s *SQLStore) grantOnce(ctx context.Context, userID string, codes []string, at time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grant tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := s.q(`
		INSERT INTO user_achievements (user_id, achievement_code, unlocked_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, achievement_code) DO NOTHING`)

	granted := []string{}
	for _, code := range codes {
		res, err := tx.ExecContext(ctx, insert, userID, code, at.Unix())
		if err != nil {
			return nil, fmt.Errorf("grant %s: %w", code, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("grant %s rows affected: %w", code, err)
		}
		if n > 0 {
			granted = append(granted, code)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grant: %w", err)
	}
	return granted, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
