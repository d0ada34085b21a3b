// Package cli implements the gabarita command-line client.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gabarita-ai/gabarita/internal/client"
)

const (
	envAPIURL      = "GABARITA_API_URL"
	envUserID      = "GABARITA_USER_ID"
	defaultBaseURL = "http://localhost:8080"
)

// options are the persistent flags shared by every command.
type options struct {
	apiURL  string
	userID  string
	verbose bool
	plain   bool
}

func (o *options) client(cmd *cobra.Command) *client.Client {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return client.New(o.apiURL, client.WithLogger(logger))
}

func (o *options) session() client.Session {
	return client.StaticSession(o.userID)
}

func (o *options) requireUser() error {
	if o.userID == "" {
		return fmt.Errorf("no user: pass --user or set %s", envUserID)
	}
	return nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "gabarita",
		Short: "📚 Gabarita - study dashboard and AI tutor from the terminal",
		Long: `# 📚 Gabarita

**Check your study progress and talk to the AI tutor without leaving the terminal.**

## 🚀 Getting Started

Point the CLI at a running server and pick a learner:

` + "```bash\nexport GABARITA_API_URL=http://localhost:8080\nexport GABARITA_USER_ID=ana\ngabarita stats\n```",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if opts.apiURL == "" {
				opts.apiURL = os.Getenv(envAPIURL)
			}
			if opts.apiURL == "" {
				opts.apiURL = defaultBaseURL
			}
			if opts.userID == "" {
				opts.userID = os.Getenv(envUserID)
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "API base URL (env "+envAPIURL+")")
	root.PersistentFlags().StringVarP(&opts.userID, "user", "u", "", "learner ID (env "+envUserID+")")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")
	root.PersistentFlags().BoolVar(&opts.plain, "plain", false, "print tutor replies without markdown rendering")

	root.AddCommand(
		newStatsCmd(opts),
		newPerformanceCmd(opts),
		newAchievementsCmd(opts),
		newTutorCmd(opts),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	_ = godotenv.Load()
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
