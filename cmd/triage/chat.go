package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive triage conversation",
		Long: `Reads one message per line from stdin and prints the reply with recommended
resources. Type /summary to see the accumulated session state and /quit to end.`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
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

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, start.Greeting)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			fmt.Fprintln(out, "Take care of yourself.")
			return nil
		case "/summary":
			summary, err := rt.manager.GetSummary(ctx, start.SessionID)
			if err != nil {
				return err
			}
			if err := writeJSON(out, summary); err != nil {
				return err
			}
			continue
		}

		result, err := rt.manager.SubmitTurn(ctx, start.SessionID, line)
		if err != nil {
			return err
		}
		if result.NewlyEscalated {
			fmt.Fprintln(out, "\n*** Your safety matters. Please reach out to one of the crisis contacts below right now. ***")
		}
		fmt.Fprintln(out, result.Message)
		if result.NewlyEscalated && len(result.SafetyPlan) > 0 {
			fmt.Fprintln(out, "\nWhen you're ready, these steps can help you build a safety plan:")
			for _, step := range result.SafetyPlan {
				fmt.Fprintf(out, "- %s\n", step)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("triage: read input: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
