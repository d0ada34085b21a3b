package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gabarita-ai/gabarita/internal/domain"
)

const basePersona = `Você é o Tutor IA do Gabarita, um professor paciente que ajuda estudantes brasileiros a se prepararem para vestibulares e concursos.
Responda sempre em português do Brasil, com linguagem clara e encorajadora, em no máximo três parágrafos curtos.
Nunca entregue a resposta de uma questão que o estudante ainda não respondeu: guie o raciocínio com perguntas e dicas.`

// weakSubjectsInPrompt caps how many subjects the results prompt names.
const weakSubjectsInPrompt = 3

// systemInstruction renders the persona plus whatever the learner is looking at.
func systemInstruction(tc domain.TutorContext) string {
	var sb strings.Builder
	sb.WriteString(basePersona)

	switch c := tc.(type) {
	case nil:
	case domain.QuestionContext:
		sb.WriteString("\n\n")
		writeQuestionContext(&sb, c)
	case domain.QuizResultsContext:
		sb.WriteString("\n\n")
		writeQuizResultsContext(&sb, c)
	default:
		raw, err := json.Marshal(tc)
		if err == nil {
			sb.WriteString("\n\nContexto da tela atual (JSON): ")
			sb.Write(raw)
		}
	}
	return sb.String()
}

func writeQuestionContext(sb *strings.Builder, c domain.QuestionContext) {
	sb.WriteString("O estudante está trabalhando em uma questão")
	if c.Subject != "" {
		fmt.Fprintf(sb, " de %s", c.Subject)
		if c.Topic != "" {
			fmt.Fprintf(sb, " (%s)", c.Topic)
		}
	}
	sb.WriteString(".\n")
	if c.Statement != "" {
		fmt.Fprintf(sb, "Enunciado: %s\n", c.Statement)
	}
	if len(c.Alternatives) > 0 {
		sb.WriteString("Alternativas:\n")
		for _, a := range c.Alternatives {
			fmt.Fprintf(sb, "%s) %s\n", a.Letter, a.Text)
		}
	}
	if !c.Answered() {
		sb.WriteString("O estudante ainda não respondeu.\n")
		return
	}
	fmt.Fprintf(sb, "Resposta do estudante: %s\n", c.UserAnswer)
	if c.CorrectAnswer != "" {
		fmt.Fprintf(sb, "Resposta correta: %s\n", c.CorrectAnswer)
	}
	if c.Explanation != "" {
		fmt.Fprintf(sb, "Explicação oficial: %s\n", c.Explanation)
	}
}

func writeQuizResultsContext(sb *strings.Builder, c domain.QuizResultsContext) {
	fmt.Fprintf(sb, "O estudante acabou de concluir um simulado: acertou %d de %d questões (%.0f%% de acerto).\n",
		c.CorrectAnswers, c.TotalQuestions, c.Accuracy)
	if c.Score > 0 {
		fmt.Fprintf(sb, "Pontuação: %d pontos.\n", c.Score)
	}
	if c.TimeSpentSeconds > 0 {
		fmt.Fprintf(sb, "Tempo total: %d minutos.\n", c.TimeSpentSeconds/60)
	}
	weak := c.WeakestSubjects(weakSubjectsInPrompt)
	if len(weak) > 0 {
		sb.WriteString("Matérias com pior desempenho:\n")
		for _, s := range weak {
			fmt.Fprintf(sb, "- %s: %d/%d (%.0f%%)\n", s.Subject, s.Correct, s.Total, s.Accuracy)
		}
	}
	if len(c.WrongQuestionIDs) > 0 {
		fmt.Fprintf(sb, "Questões erradas: %s\n", strings.Join(c.WrongQuestionIDs, ", "))
	}
}

// openingInstruction is the synthetic user turn that asks the model to start
// a conversation on its own.
func openingInstruction(tc domain.TutorContext) string {
	switch c := tc.(type) {
	case domain.QuestionContext:
		switch {
		case !c.Answered():
			return "Inicie a conversa oferecendo ajuda para começar esta questão, sem revelar a resposta."
		case c.CorrectAnswer != "" && c.UserAnswer != c.CorrectAnswer:
			return fmt.Sprintf("Inicie a conversa explicando com gentileza por que a alternativa %s não está correta e pergunte se o estudante quer revisar o conceito.", c.UserAnswer)
		default:
			return "Inicie a conversa parabenizando o estudante pelo acerto e ofereça aprofundar o conteúdo da questão."
		}
	case domain.QuizResultsContext:
		return "Inicie a conversa comentando o resultado do simulado e sugira por onde começar a revisão, começando pelas matérias mais fracas."
	default:
		return "Inicie a conversa se apresentando e perguntando como pode ajudar."
	}
}
