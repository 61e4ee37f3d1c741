// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/lifecycle"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// Column widths for the session listing.
const (
	idColumnWidth    = 8
	titleColumnWidth = 40
)

// printer renders store and model state to one writer. Markdown is only
// rendered for terminals so piped output stays plain.
type printer struct {
	out      io.Writer
	markdown bool
	width    int
}

func newPrinter(w io.Writer) *printer {
	return &printer{out: w, markdown: isTerminal(w), width: terminalWidth(w)}
}

// message prints one transcript entry.
func (p *printer) message(msg model.ChatMessage) {
	switch {
	case msg.IsError():
		fmt.Fprintf(p.out, "%s %s\n", ErrorStyle.Render("[!]"), msg.Content)
	case msg.Role == model.RoleUser:
		fmt.Fprintf(p.out, "%s %s\n", UserStyle.Render("You:"), msg.Content)
	default:
		content := msg.Content
		if p.markdown {
			fmt.Fprintln(p.out, AssistantStyle.Render("AI:"))
			fmt.Fprint(p.out, renderMarkdown(content, p.width))
			return
		}
		fmt.Fprintf(p.out, "%s %s\n", AssistantStyle.Render("AI:"), content)
	}
}

// reply prints the last message of sess, which after a send is the reply or
// the error-marked entry.
func (p *printer) reply(sess *model.ChatSession) {
	if sess == nil || len(sess.Messages) == 0 {
		return
	}
	p.message(sess.Messages[len(sess.Messages)-1])
}

// transcript prints every message of sess.
func (p *printer) transcript(sess *model.ChatSession) {
	fmt.Fprintln(p.out, TitleStyle.Render(sess.Title))
	if role := sess.EffectiveRole(); role != "" {
		fmt.Fprintf(p.out, "%s %s\n", LabelStyle.Render("Role:"), role)
	}
	for _, msg := range sess.Messages {
		p.message(msg)
	}
}

// sessions prints an aligned session table, marking the active one.
func (p *printer) sessions(list []*model.ChatSession, activeID string) {
	for _, s := range list {
		marker := " "
		if s.ID == activeID {
			marker = SuccessStyle.Render("*")
		}
		lock := ""
		if s.RoleLocked {
			lock = DimStyle.Render(" (locked)")
		}
		title := util.PadWidth(util.TruncateWidth(s.Title, titleColumnWidth), titleColumnWidth)
		fmt.Fprintf(p.out, "%s %s  %s  %3d msgs  %s%s\n",
			marker,
			DimStyle.Render(shortID(s.ID)),
			title,
			len(s.Messages),
			s.CreatedAt.Format("2006-01-02 15:04"),
			lock)
	}
}

// status prints the model state and the session summary.
func (p *printer) status(st model.ModelState, snap chat.Snapshot) {
	fmt.Fprintf(p.out, "%s %s", LabelStyle.Render("Model:"), RenderPhase(st.Phase()))
	if st.ModelID != "" {
		fmt.Fprintf(p.out, " %s", st.ModelID)
	}
	fmt.Fprintln(p.out)
	if st.Progress != "" && st.Loading {
		fmt.Fprintf(p.out, "%s %s\n", LabelStyle.Render("Progress:"), st.Progress)
	}
	if st.Error != "" {
		fmt.Fprintf(p.out, "%s %s\n", LabelStyle.Render("Error:"), ErrorStyle.Render(st.Error))
	}
	fmt.Fprintf(p.out, "%s %d\n", LabelStyle.Render("Sessions:"), len(snap.Sessions.Chats))
	if active := snap.Sessions.Active(); active != nil {
		fmt.Fprintf(p.out, "%s %s %s\n", LabelStyle.Render("Active:"), shortID(active.ID), active.Title)
	}
}

// progress returns a model event callback printing loading progress.
func (p *printer) progress() func(lifecycle.Event) {
	last := ""
	return func(ev lifecycle.Event) {
		if ev.Kind != lifecycle.EventProgress || ev.State.Progress == last {
			return
		}
		last = ev.State.Progress
		fmt.Fprintf(p.out, "%s %s\n", WarningStyle.Render("[...]"), last)
	}
}

func shortID(id string) string {
	return util.TruncateRunesNoEllipsis(id, idColumnWidth)
}

// =============================================================================
// SESSION LOOKUP
// =============================================================================

var (
	errNoSession        = errors.New("no session matches")
	errAmbiguousSession = errors.New("session id prefix is ambiguous")
)

// resolveSession returns the id of the session whose id equals or starts
// with prefix.
func resolveSession(list []*model.ChatSession, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", errNoSession
	}
	match := ""
	for _, s := range list {
		if s.ID == prefix {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", errAmbiguousSession, prefix)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", errNoSession, prefix)
	}
	return match, nil
}
