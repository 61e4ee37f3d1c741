// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/app"
	"github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/config"
)

func newChatCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, e)
		},
	}
}

// runChat opens the app, reconciling a restored model, and runs the REPL
// until /quit or end of input.
func runChat(cmd *cobra.Command, e *env) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := e.open(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	in := newLineReader(cmd.InOrStdin())
	defer in.Close()

	r := &repl{ctx: ctx, a: a, p: newPrinter(cmd.OutOrStdout())}
	r.welcome()

	for {
		line, err := in.Prompt(PromptStyle.Render("rigchat> "))
		if err != nil {
			fmt.Fprintln(r.p.out)
			return nil
		}
		if !r.handle(line) {
			return nil
		}
	}
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of input per prompt.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close()
}

// newLineReader uses liner with persistent history for an interactive stdin
// and a plain scanner otherwise.
func newLineReader(in io.Reader) lineReader {
	if f, ok := in.(*os.File); ok && f == os.Stdin && isTerminal(os.Stdin) {
		return newHistoryReader()
	}
	return &scanReader{scanner: bufio.NewScanner(in)}
}

// historyReader provides line editing and input history.
type historyReader struct {
	line        *liner.State
	historyFile string
}

func newHistoryReader() *historyReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &historyReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

// Prompt reads a line, adding non-empty input to the history.
func (r *historyReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (r *historyReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// scanReader reads lines from a non-interactive input.
type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) Close() {}

// =============================================================================
// REPL
// =============================================================================

// repl executes chat input and slash commands against one app.
type repl struct {
	ctx context.Context
	a   *app.App
	p   *printer
}

func (r *repl) welcome() {
	fmt.Fprintln(r.p.out, TitleStyle.Render("rigchat "+Version))
	r.p.status(r.a.Controller.State(), r.a.Store.Snapshot())
	fmt.Fprintln(r.p.out, DimStyle.Render("Type a message, or /help for commands."))
}

// handle executes one input line and reports whether the REPL continues.
func (r *repl) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if strings.HasPrefix(line, "/") {
		cont, err := r.command(line)
		if err != nil {
			printError(r.p.out, err)
		}
		return cont
	}
	if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
		return false
	}
	r.send(line)
	return true
}

func (r *repl) send(text string) {
	err := r.a.Store.SendMessage(r.ctx, text)
	switch {
	case err == nil:
		r.p.reply(r.a.Store.Active())
	case errors.Is(err, chat.ErrModelNotLoaded):
		fmt.Fprintf(r.p.out, "%s no model loaded, use /load [model]\n", WarningStyle.Render("[WARN]"))
	default:
		printError(r.p.out, err)
	}
}

// command runs a slash command.
func (r *repl) command(line string) (bool, error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return false, nil

	case "help", "h", "?":
		r.help()

	case "new":
		id := r.a.Store.CreateSession(arg)
		fmt.Fprintf(r.p.out, "%s new session %s\n", SuccessStyle.Render("[OK]"), shortID(id))

	case "role":
		if arg == "" {
			fmt.Fprintf(r.p.out, "%s %s\n", LabelStyle.Render("Role:"), r.a.Store.Active().EffectiveRole())
			return true, nil
		}
		if !r.a.Store.EditRoleSeed(arg) {
			return true, errors.New("role is locked once the session has messages")
		}
		fmt.Fprintf(r.p.out, "%s role updated\n", SuccessStyle.Render("[OK]"))

	case "sessions", "ls":
		r.p.sessions(r.a.Store.Sessions(), r.a.Store.Active().ID)

	case "use":
		id, err := resolveSession(r.a.Store.Sessions(), arg)
		if err != nil {
			return true, err
		}
		r.a.Store.SetActive(id)
		r.p.transcript(r.a.Store.Active())

	case "delete":
		return true, deleteSession(r.p.out, r.a, arg)

	case "history":
		r.p.transcript(r.a.Store.Active())

	case "load":
		return true, loadModel(r.ctx, r.a, arg, r.p)

	case "models":
		printModels(r.ctx, r.p, r.a)

	case "remove":
		if arg == "" {
			return true, errors.New("usage: /remove <model>")
		}
		return true, removeModel(r.ctx, r.a, arg, r.p)

	case "status":
		r.p.status(r.a.Controller.State(), r.a.Store.Snapshot())

	default:
		return true, fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return true, nil
}

func (r *repl) help() {
	cmds := [][2]string{
		{"/new [role]", "start a session, optionally with a role prompt"},
		{"/role [text]", "show or edit the role before the first message"},
		{"/sessions", "list sessions"},
		{"/use <id>", "switch session (id prefix accepted)"},
		{"/delete <id>", "delete a session"},
		{"/history", "print the active transcript"},
		{"/load [model]", "load a model (default when omitted)"},
		{"/models", "list available models"},
		{"/remove <model>", "unload a model and purge its cache"},
		{"/status", "show model and session state"},
		{"/quit", "exit"},
	}
	for _, c := range cmds {
		fmt.Fprintf(r.p.out, "  %s %s\n", PromptStyle.Render(fmt.Sprintf("%-16s", c[0])), DimStyle.Render(c[1]))
	}
}

// deleteSession deletes the session matching prefix.
func deleteSession(w io.Writer, a *app.App, prefix string) error {
	id, err := resolveSession(a.Store.Sessions(), prefix)
	if err != nil {
		return err
	}
	if !a.Store.DeleteSession(id) {
		return errors.New("the last session cannot be deleted")
	}
	fmt.Fprintf(w, "%s deleted %s\n", SuccessStyle.Render("[OK]"), shortID(id))
	return nil
}
