package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ContextKind tags what the learner is currently looking at.
type ContextKind string

const (
	// ContextQuestion is a single practice question.
	ContextQuestion ContextKind = "question"
	// ContextQuizResults is the result screen of a finished simulated exam.
	ContextQuizResults ContextKind = "quizResults"
)

// ErrContextType is returned when a context payload has no type tag.
var ErrContextType = errors.New("tutor context: missing type")

// TutorContext describes the screen the tutor is attached to.
type TutorContext interface {
	Kind() ContextKind
	// Key identifies the subject of discussion for change detection.
	Key() ContextKey
}

// ContextKey is the (type, questionId) pair used to decide whether a new
// proactive opening is due.
type ContextKey struct {
	Type       ContextKind
	QuestionID string
}

// SupportsProactive reports whether the tutor opens conversations on its own
// for this kind of context.
func SupportsProactive(tc TutorContext) bool {
	if tc == nil {
		return false
	}
	switch tc.Kind() {
	case ContextQuestion, ContextQuizResults:
		return true
	default:
		return false
	}
}

// Alternative is one answer option of a multiple-choice question.
type Alternative struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// QuestionContext is attached while the learner works on a question.
type QuestionContext struct {
	QuestionID    string        `json:"questionId"`
	Statement     string        `json:"statement,omitempty"`
	Alternatives  []Alternative `json:"alternatives,omitempty"`
	UserAnswer    string        `json:"userAnswer,omitempty"`
	CorrectAnswer string        `json:"correctAnswer,omitempty"`
	Subject       string        `json:"subject,omitempty"`
	Topic         string        `json:"topic,omitempty"`
	Explanation   string        `json:"explanation,omitempty"`
}

// Kind implements TutorContext.
func (c QuestionContext) Kind() ContextKind { return ContextQuestion }

// Key implements TutorContext.
func (c QuestionContext) Key() ContextKey {
	return ContextKey{Type: ContextQuestion, QuestionID: c.QuestionID}
}

// Answered reports whether the learner already picked an alternative.
func (c QuestionContext) Answered() bool { return c.UserAnswer != "" }

// MarshalJSON adds the type tag.
func (c QuestionContext) MarshalJSON() ([]byte, error) {
	type alias QuestionContext
	return json.Marshal(struct {
		Type ContextKind `json:"type"`
		alias
	}{ContextQuestion, alias(c)})
}

// SubjectResult is the per-subject slice of a simulated exam result.
type SubjectResult struct {
	Subject  string  `json:"subject"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// QuizResultsContext is attached on the results screen of a simulated exam.
// QuestionID carries the exam identifier so that distinct exams are distinct
// subjects of discussion.
type QuizResultsContext struct {
	QuestionID       string          `json:"questionId,omitempty"`
	TotalQuestions   int             `json:"totalQuestions"`
	CorrectAnswers   int             `json:"correctAnswers"`
	Accuracy         float64         `json:"accuracy"`
	Score            int             `json:"score,omitempty"`
	TimeSpentSeconds int             `json:"timeSpentSeconds,omitempty"`
	Subjects         []SubjectResult `json:"subjects,omitempty"`
	WrongQuestionIDs []string        `json:"wrongQuestionIds,omitempty"`
}

// Kind implements TutorContext.
func (c QuizResultsContext) Kind() ContextKind { return ContextQuizResults }

// Key implements TutorContext.
func (c QuizResultsContext) Key() ContextKey {
	return ContextKey{Type: ContextQuizResults, QuestionID: c.QuestionID}
}

// WeakestSubjects returns up to n subjects with the lowest accuracy.
func (c QuizResultsContext) WeakestSubjects(n int) []SubjectResult {
	sorted := make([]SubjectResult, len(c.Subjects))
	copy(sorted, c.Subjects)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Accuracy < sorted[j-1].Accuracy; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// MarshalJSON adds the type tag.
func (c QuizResultsContext) MarshalJSON() ([]byte, error) {
	type alias QuizResultsContext
	return json.Marshal(struct {
		Type ContextKind `json:"type"`
		alias
	}{ContextQuizResults, alias(c)})
}

// OtherContext carries any screen the tutor has no dedicated shape for.
// Fields are passed through verbatim.
type OtherContext struct {
	Type   string
	Fields map[string]any
}

// Kind implements TutorContext.
func (c OtherContext) Kind() ContextKind { return ContextKind(c.Type) }

// Key implements TutorContext.
func (c OtherContext) Key() ContextKey {
	id, _ := c.Fields["questionId"].(string)
	return ContextKey{Type: ContextKind(c.Type), QuestionID: id}
}

// MarshalJSON flattens the fields next to the type tag.
func (c OtherContext) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Fields)+1)
	for k, v := range c.Fields {
		out[k] = v
	}
	out["type"] = c.Type
	return json.Marshal(out)
}

// WireContext wraps a TutorContext for JSON transport, dispatching on the
// "type" tag when decoding. A nil context encodes as null.
type WireContext struct {
	TutorContext
}

// MarshalJSON implements json.Marshaler.
func (w WireContext) MarshalJSON() ([]byte, error) {
	if w.TutorContext == nil {
		return []byte("null"), nil
	}
	return json.Marshal(w.TutorContext)
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *WireContext) UnmarshalJSON(data []byte) error {
	tc, err := UnmarshalContext(data)
	if err != nil {
		return err
	}
	w.TutorContext = tc
	return nil
}

// UnmarshalContext decodes a tagged context payload. null yields a nil context.
func UnmarshalContext(data []byte) (TutorContext, error) {
	if string(data) == "null" || len(data) == 0 {
		return nil, nil
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode tutor context: %w", err)
	}
	switch ContextKind(head.Type) {
	case ContextQuestion:
		var c QuestionContext
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode question context: %w", err)
		}
		return c, nil
	case ContextQuizResults:
		var c QuizResultsContext
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode quiz results context: %w", err)
		}
		return c, nil
	case "":
		return nil, ErrContextType
	default:
		fields := make(map[string]any)
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decode tutor context: %w", err)
		}
		delete(fields, "type")
		return OtherContext{Type: head.Type, Fields: fields}, nil
	}
}
