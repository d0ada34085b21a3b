package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/tutor"
)

type tutorFlags struct {
	questionID   string
	statement    string
	alternatives []string
	correct      string
	answer       string
	subject      string
	topic        string

	results  bool
	total    int
	hits     int
	accuracy float64
}

func (f *tutorFlags) context() (domain.TutorContext, error) {
	if f.results {
		acc := f.accuracy
		if acc == 0 && f.total > 0 {
			acc = domain.AccuracyOneDecimal(f.hits, f.total)
		}
		return domain.QuizResultsContext{
			TotalQuestions: f.total,
			CorrectAnswers: f.hits,
			Accuracy:       acc,
		}, nil
	}
	if f.questionID == "" {
		return nil, errors.New("pass --question <id> or --results")
	}
	alts := make([]domain.Alternative, 0, len(f.alternatives))
	for _, raw := range f.alternatives {
		letter, text, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("alternative %q: want LETTER=text", raw)
		}
		alts = append(alts, domain.Alternative{Letter: strings.TrimSpace(letter), Text: strings.TrimSpace(text)})
	}
	return domain.QuestionContext{
		QuestionID:    f.questionID,
		Statement:     f.statement,
		Alternatives:  alts,
		CorrectAnswer: f.correct,
		UserAnswer:    f.answer,
		Subject:       f.subject,
		Topic:         f.topic,
	}, nil
}

func newTutorCmd(opts *options) *cobra.Command {
	flags := &tutorFlags{}
	cmd := &cobra.Command{
		Use:   "tutor",
		Short: "🤖 Chat with the AI tutor about a question or a simulado result",
		Long: `# 🤖 AI Tutor

Opens a chat attached to a question (**--question**) or to the result of a
finished simulado (**--results**). The tutor greets you first.

## 💬 Commands inside the chat

- **/answer X** - record your answer to the question
- **/quit** - leave`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			tc, err := flags.context()
			if err != nil {
				return err
			}
			conv := tutor.New(opts.client(cmd), opts.session())
			return runTutor(cmd.Context(), conv, tc, cmd.InOrStdin(), cmd.OutOrStdout(), newMarkdown(opts.plain))
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.questionID, "question", "", "question ID")
	f.StringVar(&flags.statement, "statement", "", "question statement")
	f.StringArrayVar(&flags.alternatives, "alt", nil, "alternative as LETTER=text, repeatable")
	f.StringVar(&flags.correct, "correct", "", "correct alternative letter")
	f.StringVar(&flags.answer, "answer", "", "alternative you picked")
	f.StringVar(&flags.subject, "subject", "", "subject name")
	f.StringVar(&flags.topic, "topic", "", "topic name")
	f.BoolVar(&flags.results, "results", false, "discuss a finished simulado instead of a question")
	f.IntVar(&flags.total, "total", 0, "simulado question count")
	f.IntVar(&flags.hits, "hits", 0, "simulado correct answers")
	f.Float64Var(&flags.accuracy, "accuracy", 0, "simulado accuracy, derived from --hits/--total when omitted")
	return cmd
}

func runTutor(ctx context.Context, conv *tutor.Conversation, tc domain.TutorContext, in io.Reader, out io.Writer, md *markdown) error {
	printed := 0
	flush := func() {
		st := conv.State()
		for _, turn := range st.History[min(printed, len(st.History)):] {
			if turn.Role == domain.RoleModel {
				fmt.Fprintln(out, tutorStyle.Render("Tutor:"))
				fmt.Fprint(out, md.render(turn.Text()))
			}
		}
		printed = len(st.History)
		if st.Error != "" {
			fmt.Fprintln(out, errorStyle.Render(st.Error))
		}
	}

	if err := conv.Sync(ctx, tc); err != nil && !errors.Is(err, tutor.ErrCommunication) {
		return err
	}
	flush()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/answer"):
			q, ok := tc.(domain.QuestionContext)
			if !ok {
				fmt.Fprintln(out, errorStyle.Render("/answer only works with --question"))
				continue
			}
			q.UserAnswer = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(line, "/answer")))
			tc = q
			_ = conv.Sync(ctx, tc)
			fmt.Fprintln(out, lockedStyle.Render("Resposta registrada: "+q.UserAnswer))
			continue
		}

		err := conv.Send(ctx, line)
		switch {
		case err == nil, errors.Is(err, tutor.ErrCommunication):
			// Rolled back turns shrink the history; reprint from there.
			printed = min(printed, len(conv.State().History))
			flush()
		case errors.Is(err, tutor.ErrUnauthenticated):
			return err
		}
	}
}
