package domain

import (
	"math"
	"time"
)

// Subject is a top-level exam discipline.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Topic is a subdivision of a subject.
type Topic struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
}

// QuestionAttempt records one answer given by a learner.
type QuestionAttempt struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	QuestionID       string    `json:"question_id"`
	SubjectID        string    `json:"subject_id"`
	TopicID          string    `json:"topic_id"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

// DashboardStats is the headline block of the learner dashboard.
type DashboardStats struct {
	QuestionsToday   int `json:"questions_today"`
	OverallAccuracy  int `json:"overall_accuracy"`
	StudyTimeMinutes int `json:"study_time_minutes"`
	TotalScore       int `json:"total_score"`
}

// PerformanceRow is one subject/topic line of the performance summary.
type PerformanceRow struct {
	SubjectID       string  `json:"subject_id"`
	SubjectName     string  `json:"subject_name"`
	TopicID         string  `json:"topic_id"`
	TopicName       string  `json:"topic_name"`
	TotalAttempts   int     `json:"total_attempts"`
	CorrectAttempts int     `json:"correct_attempts"`
	Accuracy        float64 `json:"accuracy"`
}

// AccuracyPercent returns round(100*correct/total), or 0 when total is 0.
func AccuracyPercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// AccuracyOneDecimal returns 100*correct/total rounded to one decimal.
func AccuracyOneDecimal(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(1000*float64(correct)/float64(total)) / 10
}
