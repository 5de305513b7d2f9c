// Package cmd implements the chatbot command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeanhaley/personal-chat-bot/chat"
	"github.com/jeanhaley/personal-chat-bot/config"
	"github.com/jeanhaley/personal-chat-bot/logging"
	"github.com/jeanhaley/personal-chat-bot/tui"
)

// app holds the global flags and the state shared by subcommands
type app struct {
	configPath string
	envFile    string
	backend    string
	model      string
	verbose    bool
	logFile    string
	noMarkdown bool

	logger *zap.Logger
}

// Execute runs the root command until it finishes or the process is
// interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{envFile: ".env", logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "chatbot",
		Short: "Personal Chat Bot - a terminal chat with a typewriter reveal",
		Long: `Personal Chat Bot sends each message to a completion service and reveals
the reply one word at a time.

Run without arguments to start the interactive terminal interface.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Options{Verbose: a.verbose, File: a.logFile})
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		RunE: a.runInteractive,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default: ~/"+config.DefaultFileName+")")
	flags.StringVarP(&a.backend, "backend", "b", "", "Completion backend: gemini, openai, openai-mock or mock")
	flags.StringVarP(&a.model, "model", "m", "", "Model override for the selected backend")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&a.logFile, "log-file", "", "Write JSON logs to this file")
	rootCmd.Flags().BoolVar(&a.noMarkdown, "no-markdown", false, "Show replies as plain text")

	rootCmd.AddCommand(
		a.newAskCmd(),
		a.newReplCmd(),
		a.newConfigCmd(),
	)
	return rootCmd
}

func (a *app) runInteractive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctrl, err := a.newSession(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer ctrl.Close()

	return tui.Run(ctx, ctrl, tui.Options{
		Markdown:  cfg.UI.Markdown && !a.noMarkdown,
		AltScreen: true,
		Logger:    a.logger,
	})
}

// loadConfig loads the config file and applies flag overrides
func (a *app) loadConfig() (*config.Config, error) {
	manager := config.NewManager(a.configPath)
	manager.SetEnvFile(a.envFile)
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if a.backend != "" {
		manager.SetDefaultBackend(a.backend)
	}
	if a.model != "" {
		manager.SetDefaultModel(a.model)
	}

	if err := manager.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := manager.GetConfig()
	if a.logFile == "" && cfg.Logging.File != "" {
		logger, err := logging.New(logging.Options{Verbose: a.verbose || cfg.Logging.Verbose, File: cfg.Logging.File})
		if err != nil {
			return nil, err
		}
		a.logger = logger
	}
	return cfg, nil
}

// newSession creates the backend and the chat controller. Warnings go to
// warn since the logger may be discarding output.
func (a *app) newSession(ctx context.Context, cfg *config.Config, warn io.Writer) (*chat.Controller, error) {
	backend, err := newBackend(ctx, cfg, cfg.Default.Backend, a.logger)
	if err != nil {
		return nil, err
	}

	// Check backend availability
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if !backend.IsAvailable(checkCtx) {
		fmt.Fprintf(warn, "Warning: Backend '%s' is not available, falling back to mock backend\n", backend.Name())
		a.logger.Warn("Backend unavailable, using mock", zap.String("backend", backend.Name()))
		backend, _ = newBackend(ctx, cfg, config.BackendMock, a.logger)
	}

	systemInstruction, err := cfg.SystemInstruction()
	if err != nil {
		return nil, err
	}

	return chat.NewController(backend, cfg.ControllerConfig(systemInstruction), chat.WithLogger(a.logger)), nil
}
