package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newAssessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `assess "<message>"`,
		Short: "Assess a single message and print the turn result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAssess,
	}
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := buildStack(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	start, err := rt.manager.StartSession(ctx)
	if err != nil {
		return err
	}
	defer rt.manager.EndSession(ctx, start.SessionID)

	result, err := rt.manager.SubmitTurn(ctx, start.SessionID, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
