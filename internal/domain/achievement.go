package domain

import "time"

// CriteriaType names the rule an achievement is evaluated with.
type CriteriaType string

const (
	CriteriaQuestionsAnswered CriteriaType = "questions_answered"
	CriteriaCorrectAnswers    CriteriaType = "correct_answers"
	CriteriaOverallAccuracy   CriteriaType = "overall_accuracy"
	CriteriaSimuladoCompleted CriteriaType = "simulado_completed"
	CriteriaSimuladoAccuracy  CriteriaType = "simulado_accuracy"
)

// Achievement is a catalog entry.
type Achievement struct {
	Code          string       `json:"code"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Icon          string       `json:"icon,omitempty"`
	CriteriaType  CriteriaType `json:"criteria_type"`
	CriteriaValue float64      `json:"criteria_value"`
}

// UnlockedAchievement links a user to an achievement code.
type UnlockedAchievement struct {
	AchievementCode string    `json:"achievement_code"`
	UnlockedAt      time.Time `json:"unlocked_at"`
}

// AchievementProgress aggregates what the grant rules look at.
type AchievementProgress struct {
	TotalAttempts   int
	CorrectAttempts int
}

// SimuladoResult is the outcome of a just-finished simulated exam.
type SimuladoResult struct {
	Accuracy      float64 `json:"accuracy"`
	QuestionCount int     `json:"question_count"`
}

// DefaultAchievements is the catalog installed with the schema.
var DefaultAchievements = []Achievement{
	{Code: "first_question", Name: "Primeiro passo", Description: "Responda sua primeira questão.", Icon: "🎯", CriteriaType: CriteriaQuestionsAnswered, CriteriaValue: 1},
	{Code: "questions_50", Name: "Ritmo de estudo", Description: "Responda 50 questões.", Icon: "📚", CriteriaType: CriteriaQuestionsAnswered, CriteriaValue: 50},
	{Code: "questions_500", Name: "Maratonista", Description: "Responda 500 questões.", Icon: "🏃", CriteriaType: CriteriaQuestionsAnswered, CriteriaValue: 500},
	{Code: "correct_100", Name: "Cem acertos", Description: "Acerte 100 questões.", Icon: "✅", CriteriaType: CriteriaCorrectAnswers, CriteriaValue: 100},
	{Code: "accuracy_80", Name: "Precisão", Description: "Mantenha 80% de acerto geral.", Icon: "🎓", CriteriaType: CriteriaOverallAccuracy, CriteriaValue: 80},
	{Code: "first_simulado", Name: "Primeiro simulado", Description: "Conclua um simulado.", Icon: "📝", CriteriaType: CriteriaSimuladoCompleted, CriteriaValue: 1},
	{Code: "simulado_90", Name: "Gabaritando", Description: "Acerte 90% de um simulado.", Icon: "🏆", CriteriaType: CriteriaSimuladoAccuracy, CriteriaValue: 90},
}
