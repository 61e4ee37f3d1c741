// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/app"
	"github.com/jeranaias/rigchat/internal/cachepurge"
	"github.com/jeranaias/rigchat/internal/engine"
)

// =============================================================================
// SEND
// =============================================================================

func newSendCmd(e *env) *cobra.Command {
	var modelID string
	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Send one message to the active session and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrinter(cmd.OutOrStdout())
			if err := ensureLoaded(ctx, a, modelID, p); err != nil {
				return err
			}
			if err := a.Store.SendMessage(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			p.reply(a.Store.Active())
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelID, "model", "m", "", "model to load when none is loaded")
	return cmd
}

// ensureLoaded loads modelID (or the default model) unless a model is
// already loaded and no different one was asked for.
func ensureLoaded(ctx context.Context, a *app.App, modelID string, p *printer) error {
	st := a.Controller.State()
	if st.Loaded && (modelID == "" || modelID == st.ModelID) {
		return nil
	}
	return loadModel(ctx, a, modelID, p)
}

// loadModel loads modelID, printing progress while it runs.
func loadModel(ctx context.Context, a *app.App, modelID string, p *printer) error {
	stop := a.OnModelEvent(p.progress())
	defer stop()

	if err := a.Controller.Load(ctx, modelID); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "%s %s\n", SuccessStyle.Render("[OK]"), a.Controller.State().ModelID)
	return nil
}

// =============================================================================
// MODELS
// =============================================================================

func newModelsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the runtime can load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			printModels(cmd.Context(), newPrinter(cmd.OutOrStdout()), a)
			return nil
		},
	}
}

func printModels(ctx context.Context, p *printer, a *app.App) {
	models, err := engine.Catalog(ctx, a.Runtime)
	if err != nil {
		fmt.Fprintf(p.out, "%s runtime listing failed, showing built-in catalog\n", WarningStyle.Render("[WARN]"))
	}
	current := a.Controller.State()
	for _, m := range models {
		marker := " "
		if current.Loaded && current.ModelID == m {
			marker = SuccessStyle.Render("*")
		}
		fmt.Fprintf(p.out, "%s %s\n", marker, m)
	}
}

// =============================================================================
// LOAD / REMOVE
// =============================================================================

func newLoadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "load [model]",
		Short: "Load a model into the runtime (the default model when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			modelID := ""
			if len(args) == 1 {
				modelID = args[0]
			}
			return loadModel(cmd.Context(), a, modelID, newPrinter(cmd.OutOrStdout()))
		},
	}
}

func newRemoveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <model>",
		Short: "Unload a model and delete its cached artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			return removeModel(cmd.Context(), a, args[0], newPrinter(cmd.OutOrStdout()))
		},
	}
}

func removeModel(ctx context.Context, a *app.App, modelID string, p *printer) error {
	res, err := a.Controller.Remove(ctx, modelID)
	var re *cachepurge.RemovalError
	switch {
	case err == nil:
		fmt.Fprintf(p.out, "%s removed %s (%d cached entries)\n", SuccessStyle.Render("[OK]"), modelID, res.Deleted)
		return nil
	case errors.As(err, &re) && re.Kind == cachepurge.RemovalPartial:
		fmt.Fprintf(p.out, "%s removed %d of %d cached entries for %s\n",
			WarningStyle.Render("[WARN]"), res.Deleted, res.Matched, modelID)
		return err
	default:
		return err
	}
}

// =============================================================================
// STATUS
// =============================================================================

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the model and session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			newPrinter(cmd.OutOrStdout()).status(a.Controller.Reconcile(cmd.Context()), a.Store.Snapshot())
			return nil
		},
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

func newSessionsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
		Long: `List and manage chat sessions.

Subcommands:
  list            - List all sessions, oldest first
  new [role]      - Create a session and make it active
  use <id>        - Switch the active session (id prefix accepted)
  delete <id>     - Delete a session (the last one is kept)
  show [id]       - Print a session transcript`,
	}

	// withApp runs fn against an app opened without model verification.
	withApp := func(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd, a, args)
		}
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all sessions",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			snap := a.Store.Snapshot()
			newPrinter(cmd.OutOrStdout()).sessions(a.Store.Sessions(), snap.Sessions.ActiveChatID)
			return nil
		}),
	}
	cmd.RunE = list.RunE

	newCmd := &cobra.Command{
		Use:   "new [role]",
		Short: "Create a session and make it active",
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			id := a.Store.CreateSession(strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "%s created %s\n", SuccessStyle.Render("[OK]"), shortID(id))
			return nil
		}),
	}

	use := &cobra.Command{
		Use:   "use <id>",
		Short: "Switch the active session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			id, err := resolveSession(a.Store.Sessions(), args[0])
			if err != nil {
				return err
			}
			a.Store.SetActive(id)
			fmt.Fprintf(cmd.OutOrStdout(), "%s active session %s\n", SuccessStyle.Render("[OK]"), shortID(id))
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			return deleteSession(cmd.OutOrStdout(), a, args[0])
		}),
	}

	show := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a session transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			sess := a.Store.Active()
			if len(args) == 1 {
				id, err := resolveSession(a.Store.Sessions(), args[0])
				if err != nil {
					return err
				}
				sess = a.Store.Snapshot().Sessions.Chats[id]
			}
			newPrinter(cmd.OutOrStdout()).transcript(sess)
			return nil
		}),
	}

	cmd.AddCommand(list, newCmd, use, del, show)
	return cmd
}
