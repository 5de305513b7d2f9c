package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeanhaley/personal-chat-bot/chat"
)

// Run shows the chat session until the user quits or ctx is cancelled
func Run(ctx context.Context, ctrl *chat.Controller, opts Options) error {
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	p := tea.NewProgram(New(ctx, ctrl, opts), programOpts...)
	ctrl.SetListener(func(e chat.Event) {
		p.Send(EventMsg{Event: e})
	})
	defer ctrl.SetListener(nil)

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to run terminal UI: %w", err)
	}
	return nil
}
