// Package cli holds the cobra commands of the uniassist binary.
package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/akolanti/uniassist/internal/agent"
	"github.com/akolanti/uniassist/internal/bootstrap"
	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/rag/ingest"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"github.com/spf13/cobra"
)

type Asker interface {
	Run(ctx context.Context, sessionID, question string) (agent.Outcome, error)
}

type Library interface {
	Ingest(ctx context.Context, documentName string, opts ingest.Options) (*ingest.Result, error)
	Documents(ctx context.Context) ([]commonModels.Document, error)
}

// Services is what the commands run against. Close may be nil.
type Services struct {
	Asker   Asker
	Library Library
	Close   func() error
}

var (
	settingsPath string
	verbose      bool
	services     *Services
)

// buildServices is replaced in tests.
var buildServices = func(ctx context.Context, path string) (*Services, error) {
	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	app, err := bootstrap.Build(ctx, settings)
	if err != nil {
		return nil, err
	}
	return &Services{Asker: app.Dispatcher, Library: app.Pipeline, Close: app.Close}, nil
}

var rootCmd = &cobra.Command{
	Use:   "uniassist",
	Short: "Answers questions about university regulations",
	Long: `uniassist answers questions about the university's regulation documents.
Documents in the documents folder are ingested on first use; answers cite the
passages they are based on.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "uniassist.yaml", "settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	// stdout belongs to the conversation
	logger_i.InitWith(logger_i.Options{Output: cmd.ErrOrStderr(), Level: level})

	if services != nil {
		return nil
	}
	built, err := buildServices(cmd.Context(), settingsPath)
	if err != nil {
		if errors.Is(err, bootstrap.ErrMissingAPIKey) {
			cmd.PrintErrln("Defina GOOGLE_API_KEY no ambiente ou no arquivo .env.")
		}
		return err
	}
	services = built
	return nil
}

func teardown() error {
	if services == nil || services.Close == nil {
		return nil
	}
	err := services.Close()
	services = nil
	return err
}
