package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gabarita-ai/gabarita/internal/achievements"
	"github.com/gabarita-ai/gabarita/internal/domain"
)

func newAchievementsCmd(opts *options) *cobra.Command {
	var (
		accuracy  float64
		questions int
	)
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "🏆 List achievements, or check for new ones after a simulado",
		Long: `# 🏆 Achievements

Lists the catalog and marks what you have unlocked.

Pass **--accuracy** and **--questions** after finishing a simulado to ask the
server to grant anything you now qualify for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			tr := achievements.NewTracker(opts.client(cmd), opts.session())
			tr.Load(cmd.Context())
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("accuracy") || cmd.Flags().Changed("questions") {
				fresh := tr.CheckForNew(cmd.Context(), &domain.SimuladoResult{
					Accuracy:      accuracy,
					QuestionCount: questions,
				})
				if len(fresh) == 0 {
					fmt.Fprintln(out, lockedStyle.Render("Nenhuma conquista nova."))
				}
				for _, a := range fresh {
					printUnlock(out, a)
				}
				fmt.Fprintln(out)
			}

			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Conquistas (%d/%d)", tr.UnlockedCount(), len(tr.Catalog()))))
			for _, a := range tr.Catalog() {
				if tr.IsUnlocked(a.Code) {
					fmt.Fprintln(out, unlockedStyle.Render(fmt.Sprintf("✔ %s %s - %s", a.Icon, a.Name, a.Description)))
				} else {
					fmt.Fprintln(out, lockedStyle.Render(fmt.Sprintf("· %s %s - %s", a.Icon, a.Name, a.Description)))
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&accuracy, "accuracy", 0, "accuracy of the finished simulado, 0-100")
	cmd.Flags().IntVar(&questions, "questions", 0, "number of questions in the finished simulado")
	cmd.AddCommand(newAchievementsWatchCmd(opts))
	return cmd
}

func newAchievementsWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "🔔 Print achievements as they are unlocked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tr := achievements.NewTracker(opts.client(cmd), opts.session())
			tr.Load(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, lockedStyle.Render("Aguardando conquistas... (Ctrl+C para sair)"))
			return tr.Watch(ctx, func(a domain.Achievement) {
				printUnlock(out, a)
			})
		},
	}
}

func printUnlock(out io.Writer, a domain.Achievement) {
	fmt.Fprintln(out, unlockedStyle.Render(fmt.Sprintf("🎉 Conquista desbloqueada: %s %s", a.Icon, a.Name)))
}
