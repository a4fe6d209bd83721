// memelab-runner runs a labeling session in the terminal against a study server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ashureev/memelab/internal/client"
	"github.com/ashureev/memelab/internal/domain"
	"github.com/ashureev/memelab/internal/runner"
	"github.com/ashureev/memelab/internal/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	serverURL       string
	workerID        string
	assignmentID    string
	condition       string
	numTrials       int
	uniqname        string
	logFile         string
	surveyURL       string
	prefillUniqname string
	prefillCode     string
	timeout         time.Duration
	prefsPath       string
)

var rootCmd = &cobra.Command{
	Use:   "memelab-runner",
	Short: "Run a meme sentiment labeling session in the terminal",
	Long: `memelab-runner fetches trials from a study server, walks the participant
through them and submits the log when they finish or exit.

Keys: a/b/c/d sentiment, 1-5 confidence, enter next, s skip, x exit,
i AI suggestion, h rate suggestion, r reason, t theme.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	// Flag defaults read the environment, so .env is loaded first.
	_ = godotenv.Load()

	rootCmd.Flags().StringVar(&serverURL, "server", envOr("MEMELAB_SERVER", "http://localhost:8080"), "Study server base URL")
	rootCmd.Flags().StringVar(&workerID, "worker-id", "", "Worker id (default: local-worker)")
	rootCmd.Flags().StringVar(&assignmentID, "assignment-id", "", "Assignment id (default: local-assignment)")
	rootCmd.Flags().StringVar(&condition, "condition", "", "Experimental arm: baseline or with-ai")
	rootCmd.Flags().IntVarP(&numTrials, "trials", "n", 0, "Number of trials (default: server setting)")
	rootCmd.Flags().StringVar(&uniqname, "uniqname", "", "Prefill the uniqname field")
	rootCmd.Flags().StringVar(&logFile, "log-file", "memelab-runner.log", "Write logs to this file")
	rootCmd.Flags().StringVar(&surveyURL, "survey-url", os.Getenv("SURVEY_URL"), "Post-session survey URL")
	rootCmd.Flags().StringVar(&prefillUniqname, "prefill-uniqname", os.Getenv("SURVEY_PREFILL_UNIQNAME"), "Survey form entry id for the uniqname")
	rootCmd.Flags().StringVar(&prefillCode, "prefill-code", os.Getenv("SURVEY_PREFILL_CODE"), "Survey form entry id for the survey code")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Per-request timeout")
	rootCmd.Flags().StringVar(&prefsPath, "prefs", "", "Preferences file (default: user config dir)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run() error {
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	api, err := client.New(serverURL, client.WithTimeout(timeout), client.WithLogger(logger))
	if err != nil {
		return err
	}

	if prefsPath == "" {
		if prefsPath, err = runner.DefaultPrefsPath(); err != nil {
			slog.Warn("Preferences will not be saved", "error", err)
		}
	}
	prefs := runner.Prefs{Theme: runner.ThemeDark}
	if prefsPath != "" {
		if prefs, err = runner.LoadPrefs(prefsPath); err != nil {
			slog.Warn("Ignoring preferences file", "path", prefsPath, "error", err)
		}
	}

	participant := domain.Participant{
		WorkerID:     workerID,
		AssignmentID: assignmentID,
		Condition:    domain.ParseCondition(condition),
		N:            numTrials,
		Uniqname:     uniqname,
		SessionID:    uuid.NewString(),
	}.WithDefaults()

	slog.Info("Starting session",
		"server", serverURL,
		"worker_id", participant.WorkerID,
		"condition", participant.Condition,
		"session_id", participant.SessionID,
	)

	model := runner.New(api, runner.Options{
		Participant: participant,
		Prefs:       prefs,
		PrefsPath:   prefsPath,
		SurveyURL:   surveyURL,
		Prefill: session.Prefill{
			UniqnameEntry:   prefillUniqname,
			SurveyCodeEntry: prefillCode,
		},
		Meta: clientMeta(),
	})

	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("run session: %w", err)
	}

	// The code stays visible after the alt screen is torn down.
	if m, ok := final.(runner.Model); ok && m.SurveyCode() != "" {
		fmt.Printf("Your survey code: %s\n", m.SurveyCode())
	}
	return nil
}

func clientMeta() domain.ClientMeta {
	meta := domain.ClientMeta{UserAgent: "memelab-runner"}
	if tz := runner.LocalTimeZone(); tz != "" {
		meta.TZ = &tz
	}
	// POSIX locales look like en_US.UTF-8.
	lang, _, _ := strings.Cut(os.Getenv("LANG"), ".")
	if lang = strings.ReplaceAll(lang, "_", "-"); lang != "" && lang != "C" && lang != "POSIX" {
		meta.Lang = &lang
	}
	return meta
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
