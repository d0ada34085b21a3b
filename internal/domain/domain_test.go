package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForTransmissionDropsLeadingModelTurn(t *testing.T) {
	t.Parallel()

	h := History{
		NewTurn(RoleModel, "Olá! Posso ajudar?"),
		NewTurn(RoleUser, "sim"),
	}
	got := h.ForTransmission()
	require.Len(t, got, 1)
	assert.Equal(t, RoleUser, got[0].Role)
	require.Len(t, h, 2, "receiver must not be modified")
	assert.Equal(t, RoleModel, h[0].Role)
	assert.NoError(t, got.Validate())
}

func TestForTransmissionEmptyIsNonNil(t *testing.T) {
	t.Parallel()

	for _, h := range []History{nil, {NewTurn(RoleModel, "oi")}} {
		got := h.ForTransmission()
		require.NotNil(t, got)
		raw, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(raw))
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	t.Parallel()

	h := History{NewTurn(RoleUser, "a")}
	c := h.Clone()
	c[0].Parts[0].Text = "b"
	assert.Equal(t, "a", h[0].Text(), "clone shares parts with the original")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, (History{NewTurn(RoleModel, "x")}).Validate(), ErrLeadingModelTurn)
	assert.Error(t, (History{{Role: "system", Parts: []Part{{Text: "x"}}}}).Validate(), "unknown role")
	assert.NoError(t, (History{}).Validate())
}

func TestTextJoinsParts(t *testing.T) {
	t.Parallel()

	turn := ChatTurn{Role: RoleModel, Parts: []Part{{Text: "Olá, "}, {Text: "tudo bem?"}}}
	assert.Equal(t, "Olá, tudo bem?", turn.Text())
}

func TestContextRoundTripDispatchesOnType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		kind ContextKind
	}{
		{raw: `{"type":"question","questionId":"q1","userAnswer":"C"}`, kind: ContextQuestion},
		{raw: `{"type":"quizResults","totalQuestions":10,"correctAnswers":7,"accuracy":70}`, kind: ContextQuizResults},
		{raw: `{"type":"dashboard","tab":"desempenho"}`, kind: "dashboard"},
	}
	for _, tt := range tests {
		var w WireContext
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &w), tt.raw)
		assert.Equal(t, tt.kind, w.Kind())

		out, err := json.Marshal(w)
		require.NoError(t, err)
		var a, b map[string]any
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &a))
		require.NoError(t, json.Unmarshal(out, &b))
		assert.Len(t, b, len(a), "round trip changed payload: %s -> %s", tt.raw, out)
		assert.Equal(t, a["type"], b["type"])
	}
}

func TestContextWithoutType(t *testing.T) {
	t.Parallel()

	_, err := UnmarshalContext([]byte(`{"questionId":"q1"}`))
	assert.ErrorIs(t, err, ErrContextType)

	tc, err := UnmarshalContext([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, tc, "null decodes to a nil context")
}

func TestSupportsProactive(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		tc   TutorContext
		want bool
	}{
		"nil":      {tc: nil, want: false},
		"question": {tc: QuestionContext{QuestionID: "q1"}, want: true},
		"results":  {tc: QuizResultsContext{}, want: true},
		"other":    {tc: OtherContext{Type: "dashboard"}, want: false},
	}
	for name, c := range cases {
		assert.Equal(t, c.want, SupportsProactive(c.tc), name)
	}
}

func TestQuestionKeyIgnoresAnswer(t *testing.T) {
	t.Parallel()

	a := QuestionContext{QuestionID: "q1"}
	b := QuestionContext{QuestionID: "q1", UserAnswer: "B"}
	assert.Equal(t, a.Key(), b.Key(), "answering must not change the discussion key")
	assert.NotEqual(t, a.Key(), (QuestionContext{QuestionID: "q2"}).Key())
}

func TestWeakestSubjects(t *testing.T) {
	t.Parallel()

	c := QuizResultsContext{Subjects: []SubjectResult{
		{Subject: "Português", Accuracy: 80},
		{Subject: "Matemática", Accuracy: 40},
		{Subject: "História", Accuracy: 60},
		{Subject: "Física", Accuracy: 20},
	}}
	got := c.WeakestSubjects(3)
	names := make([]string, 0, len(got))
	for _, s := range got {
		names = append(names, s.Subject)
	}
	assert.Equal(t, []string{"Física", "Matemática", "História"}, names)
	assert.Equal(t, "Português", c.Subjects[0].Subject, "input order must be preserved")
}

func TestAccuracyHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, AccuracyPercent(0, 0))
	assert.Equal(t, 67, AccuracyPercent(2, 3))
	assert.Equal(t, 33, AccuracyPercent(1, 3))
	assert.Equal(t, 66.7, AccuracyOneDecimal(2, 3))
	assert.Equal(t, 0.0, AccuracyOneDecimal(0, 0))
}

func TestDeriveDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "estudante", DeriveDisplayName("abc"))
	assert.Equal(t, "estudante-34567890", DeriveDisplayName("user-1234567890"))
}
