package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/gabarita-ai/gabarita/internal/dashboard"
)

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "📊 Show today's dashboard figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			stats := dashboard.NewStats(opts.client(cmd), opts.session())
			stats.Refresh(cmd.Context())

			snap := stats.Snapshot()
			if snap.Error != "" {
				return errors.New(snap.Error)
			}
			if snap.Data == nil {
				return errors.New("no data")
			}
			out := cmd.OutOrStdout()
			d := snap.Data
			fmt.Fprintln(out, headerStyle.Render("Painel de "+opts.userID))
			fmt.Fprintf(out, "Questões hoje:     %d\n", d.QuestionsToday)
			fmt.Fprintf(out, "Acerto geral:      %d%%\n", d.OverallAccuracy)
			fmt.Fprintf(out, "Tempo de estudo:   %d min\n", d.StudyTimeMinutes)
			fmt.Fprintf(out, "Pontuação total:   %d\n", d.TotalScore)
			return nil
		},
	}
}

func newPerformanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "performance",
		Short: "📈 Show accuracy per subject and topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			perf := dashboard.NewPerformance(opts.client(cmd), opts.session())
			perf.Refresh(cmd.Context())

			snap := perf.Snapshot()
			if snap.Error != "" {
				return errors.New(snap.Error)
			}
			out := cmd.OutOrStdout()
			if snap.Data == nil || len(*snap.Data) == 0 {
				fmt.Fprintln(out, lockedStyle.Render("Nenhuma questão respondida ainda."))
				return nil
			}

			t := table.New().Headers("Matéria", "Tópico", "Tentativas", "Acertos", "Acerto")
			for _, row := range *snap.Data {
				t.Row(
					row.SubjectName,
					row.TopicName,
					strconv.Itoa(row.TotalAttempts),
					strconv.Itoa(row.CorrectAttempts),
					strconv.FormatFloat(row.Accuracy, 'f', 1, 64)+"%",
				)
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
}
