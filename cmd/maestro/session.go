package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maestro-ai/maestro/pkg/models"
)

// cliOwner is the owner identity for locally dispatched commands. The CLI
// bypasses HTTP auth; sessions it creates belong to this identity.
const cliOwner = "local"

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create and drive sessions through the local dispatcher",
	}
	cmd.AddCommand(newSessionNewCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionCmdCmd())
	return cmd
}

func newSessionNewCmd() *cobra.Command {
	var (
		novel  bool
		genre  string
		length string
		style  string
	)
	cmd := &cobra.Command{
		Use:   "new <topic>",
		Short: "Create a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			a, err := buildApp(cmd.Context(), configDir)
			if err != nil {
				return err
			}
			defer a.close()

			var profile *models.NovelProfile
			if novel {
				profile = &models.NovelProfile{Length: length, Genre: genre, Style: style}
			}
			snap, err := a.orch.CreateSession(cmd.Context(), cliOwner, args[0], profile)
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
	cmd.Flags().BoolVar(&novel, "novel", false, "Enable the long-form writing profile")
	cmd.Flags().StringVar(&genre, "genre", "", "Novel genre")
	cmd.Flags().StringVar(&length, "length", "", "Novel target length")
	cmd.Flags().StringVar(&style, "style", "", "Novel writing style")
	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			a, err := buildApp(cmd.Context(), configDir)
			if err != nil {
				return err
			}
			defer a.close()

			summaries, err := a.orch.ListSessions(cmd.Context(), cliOwner)
			if err != nil {
				return err
			}
			return printJSON(summaries)
		},
	}
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the full session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			a, err := buildApp(cmd.Context(), configDir)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.orch.Snapshot(cmd.Context(), cliOwner, args[0])
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func newSessionCmdCmd() *cobra.Command {
	var (
		text    string
		title   string
		notes   string
		after   string
		subtask string
		reason  string
		wait    bool
	)
	cmd := &cobra.Command{
		Use:   "cmd <session-id> <command>",
		Short: "Dispatch a command (plan, ask, confirm_plan, next, all, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			a, err := buildApp(cmd.Context(), configDir)
			if err != nil {
				return err
			}
			defer a.close()

			payload := map[string]any{}
			if cmd.Flags().Changed("text") {
				payload["text"] = text
			}
			if cmd.Flags().Changed("title") {
				payload["title"] = title
			}
			if cmd.Flags().Changed("notes") {
				payload["notes"] = notes
			}
			if cmd.Flags().Changed("after") {
				payload["after_id"] = after
			}
			if cmd.Flags().Changed("subtask") {
				payload["subtask_id"] = subtask
			}
			if cmd.Flags().Changed("reason") {
				payload["reason"] = reason
			}

			sessionID := args[0]
			parsed, err := models.ParseCommand(args[1], payload)
			if err != nil {
				return err
			}
			result, err := a.orch.Execute(cmd.Context(), cliOwner, sessionID, parsed)
			if err != nil {
				return err
			}

			// next/all run in the background; the process would otherwise
			// exit before anything happens.
			if wait && (parsed.Type == models.CommandNext || parsed.Type == models.CommandAll) {
				if err := waitForRun(cmd.Context(), a, sessionID); err != nil {
					return err
				}
				snap, err := a.orch.Snapshot(cmd.Context(), cliOwner, sessionID)
				if err != nil {
					return err
				}
				result.Snapshot = snap
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Text for ask")
	cmd.Flags().StringVar(&title, "title", "", "Subtask title")
	cmd.Flags().StringVar(&notes, "notes", "", "Subtask notes")
	cmd.Flags().StringVar(&after, "after", "", "Insert after this subtask id")
	cmd.Flags().StringVar(&subtask, "subtask", "", "Target subtask id")
	cmd.Flags().StringVar(&reason, "reason", "", "Skip reason")
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait for background execution to settle")
	return cmd
}

// waitForRun polls the session until its status leaves running.
func waitForRun(ctx context.Context, a *app, sessionID string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state, err := a.store.GetOrchestratorState(ctx, sessionID)
			if err != nil {
				return err
			}
			if state.Status != models.OrchestratorRunning {
				return nil
			}
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	return nil
}
