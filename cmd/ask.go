package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a single message and print the reply as it is revealed",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runAsk,
	}
}

func (a *app) runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctrl, err := a.newSession(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	printer := newTypewriter(cmd.OutOrStdout(), "")
	ctrl.SetListener(printer.listen)
	defer func() {
		_ = ctrl.Close()
		printer.finish()
	}()

	if err := ctrl.Submit(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	if err := ctrl.WaitReveals(ctx); err != nil && !errors.Is(err, ctx.Err()) {
		return err
	}

	if stats := ctrl.Stats(); stats.Failures > 0 {
		return fmt.Errorf("%s did not return a reply", stats.BackendName)
	}
	return nil
}
