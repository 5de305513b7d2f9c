package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeanhaley/personal-chat-bot/chat"
	"github.com/jeanhaley/personal-chat-bot/config"
)

func (a *app) newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Line-oriented chat session",
		Args:  cobra.NoArgs,
		RunE:  a.runRepl,
	}
}

func (a *app) runRepl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctrl, err := a.newSession(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := newTypewriter(out, "🤖 Bot: ")
	ctrl.SetListener(printer.listen)
	defer func() {
		_ = ctrl.Close()
		printer.finish()
	}()

	r := &repl{app: a, ctrl: ctrl, cfg: cfg, out: out}
	return r.run(ctx, cmd.InOrStdin())
}

type repl struct {
	app  *app
	ctrl *chat.Controller
	cfg  *config.Config
	out  io.Writer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(r.out, "💬 Personal Chat Bot\n")
	fmt.Fprintf(r.out, "Backend: %s\n", r.ctrl.Backend().Name())
	if model := r.cfg.Model(); model != "" {
		fmt.Fprintf(r.out, "Model: %s\n", model)
	}
	fmt.Fprintf(r.out, "Session: %s\n", r.ctrl.SessionID())
	fmt.Fprintf(r.out, "\nType your message and press Enter. Type 'quit' to exit.\n")
	fmt.Fprintf(r.out, "Commands: /theme, /clear, /stats, /switch, /help\n\n")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		// Handle commands
		if strings.HasPrefix(input, "/") {
			r.handleCommand(ctx, input)
			continue
		}

		// Handle quit
		if input == "quit" || input == "exit" {
			fmt.Fprintln(r.out, "Goodbye! 👋")
			return nil
		}

		if err := r.ctrl.Submit(ctx, input); err != nil {
			fmt.Fprintf(r.out, "❌ Error: %v\n\n", err)
			continue
		}
		if err := r.ctrl.WaitReveals(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		fmt.Fprintln(r.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func (r *repl) handleCommand(ctx context.Context, command string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "/theme":
		theme := r.ctrl.ToggleTheme()
		fmt.Fprintf(r.out, "✓ Theme is now %s\n\n", theme)

	case "/clear":
		if err := r.ctrl.Clear(); err != nil {
			fmt.Fprintf(r.out, "❌ Error clearing session: %v\n\n", err)
		} else {
			fmt.Fprintf(r.out, "✓ Cleared session %s\n\n", r.ctrl.SessionID())
		}

	case "/stats":
		stats := r.ctrl.Stats()
		fmt.Fprintf(r.out, "📊 Session Statistics:\n")
		fmt.Fprintf(r.out, "  Session: %s\n", stats.SessionID)
		fmt.Fprintf(r.out, "  Backend: %s\n", stats.BackendName)
		fmt.Fprintf(r.out, "  Messages: %d (%d user, %d bot)\n", stats.TotalMessages, stats.UserMessages, stats.BotMessages)
		fmt.Fprintf(r.out, "  Submissions: %d (%d failed)\n", stats.Submissions, stats.Failures)
		fmt.Fprintf(r.out, "  Theme: %s\n", stats.Theme)
		fmt.Fprintf(r.out, "  Started: %s\n", stats.CreatedAt.Format("2006-01-02 15:04:05"))

		// Backend availability
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		available := r.ctrl.IsBackendAvailable(checkCtx)
		cancel()

		if available {
			fmt.Fprintf(r.out, "  Backend Status: ✅ Available\n")
		} else {
			fmt.Fprintf(r.out, "  Backend Status: ❌ Unavailable\n")
		}
		fmt.Fprintln(r.out)

	case "/switch":
		if len(parts) < 2 {
			fmt.Fprintf(r.out, "Usage: /switch <backend>\nAvailable: %s, %s, %s, %s\n\n",
				config.BackendGemini, config.BackendOpenAI, config.BackendOpenAIMock, config.BackendMock)
			return
		}

		backend, err := newBackend(ctx, r.cfg, parts[1], r.app.logger)
		if err != nil {
			fmt.Fprintf(r.out, "❌ %v\n\n", err)
			return
		}

		// Test availability
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		available := backend.IsAvailable(checkCtx)
		cancel()
		if !available {
			fmt.Fprintf(r.out, "❌ Backend '%s' is not available\n\n", parts[1])
			return
		}

		r.ctrl.SetBackend(backend)
		fmt.Fprintf(r.out, "✓ Switched to %s backend\n\n", backend.Name())

	case "/help":
		fmt.Fprintf(r.out, "🤖 Personal Chat Bot Commands:\n")
		fmt.Fprintf(r.out, "  /theme        - Toggle between dark and light\n")
		fmt.Fprintf(r.out, "  /clear        - Clear the session\n")
		fmt.Fprintf(r.out, "  /stats        - Show statistics\n")
		fmt.Fprintf(r.out, "  /switch <be>  - Switch backend\n")
		fmt.Fprintf(r.out, "  /help         - Show this help\n")
		fmt.Fprintf(r.out, "  quit/exit     - Exit the chat\n\n")

	default:
		fmt.Fprintf(r.out, "❌ Unknown command: %s\nType /help for available commands\n\n", parts[0])
	}
}
