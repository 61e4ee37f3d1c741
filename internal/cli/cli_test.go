// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/engine/enginetest"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// harness runs commands against one config and runtime, like separate
// invocations of the binary sharing a state directory.
type harness struct {
	t   *testing.T
	cfg *config.Config
	rt  *enginetest.Runtime
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RIGCHAT_HOME", dir)

	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(dir, "state")
	cfg.Log.File = filepath.Join(dir, "rigchat.log")
	return &harness{t: t, cfg: cfg, rt: enginetest.New()}
}

func (h *harness) run(input string, args ...string) (string, error) {
	h.t.Helper()
	cmd := NewRootCmd(Options{Runtime: h.rt, Config: h.cfg})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSend_LoadsDefaultModelAndReplies(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "send", "How", "do", "I", "jab?")
	require.NoError(t, err)
	assert.Contains(t, out, "[OK] llama3.2:1b")
	assert.Contains(t, out, "AI: ok")
	assert.Equal(t, "llama3.2:1b", h.rt.Bound())

	req := h.rt.Request()
	require.Len(t, req, 2)
	assert.Equal(t, model.RoleSystem, req[0].Role)
	assert.Equal(t, "How do I jab?", req[1].Content)
}

func TestSend_FailedCompletionIsShownInTranscript(t *testing.T) {
	h := newHarness(t)
	h.rt.Set(func(r *enginetest.Runtime) { r.CompleteErr = assert.AnError })

	out, err := h.run("", "send", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "[!]")
}

func TestSessions_Lifecycle(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "sessions", "new", "You are a boxing coach.")
	require.NoError(t, err)
	assert.Contains(t, out, "[OK] created")

	out, err = h.run("", "sessions", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "*"), "newest session is active: %q", lines[1])

	// Switch back to the first session by id prefix.
	firstID := strings.Fields(lines[0])[0]
	out, err = h.run("", "sessions", "use", firstID)
	require.NoError(t, err)
	assert.Contains(t, out, "active session "+firstID)

	out, err = h.run("", "sessions", "delete", firstID)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+firstID)

	_, err = h.run("", "sessions", "delete", strings.Fields(lines[1])[1])
	assert.Error(t, err)
}

func TestSessions_UnknownID(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "sessions", "use", "zzzzzz")
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoSession)
}

func TestModels_ListsCatalog(t *testing.T) {
	h := newHarness(t)
	h.rt.Set(func(r *enginetest.Runtime) { r.Models = []string{"llama3.2:1b", "qwen2.5:0.5b"} })

	out, err := h.run("", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "llama3.2:1b")
	assert.Contains(t, out, "qwen2.5:0.5b")
}

func TestLoadAndStatus(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "load", "qwen2.5:0.5b")
	require.NoError(t, err)
	assert.Contains(t, out, "Fetching param cache[2/2]")
	assert.Contains(t, out, "[OK] qwen2.5:0.5b")

	out, err = h.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "[LOADED] qwen2.5:0.5b")
	assert.Contains(t, out, "Sessions: 1")
}

func TestStatus_ReportsRememberedModelThatIsGone(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "load", "qwen2.5:0.5b")
	require.NoError(t, err)

	// A later process whose runtime no longer holds the model.
	h.rt = enginetest.New()
	out, err := h.run("", "status")
	require.NoError(t, err)
	assert.NotContains(t, out, "[LOADED]")
	assert.Contains(t, out, "qwen2.5:0.5b")
}

func TestRemove_NothingCached(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "remove", "gemma2:2b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemma2:2b")
}

func TestChat_REPL(t *testing.T) {
	h := newHarness(t)

	script := strings.Join([]string{
		"hello before load",
		"/role You are a boxing coach.",
		"/load",
		"How do I jab?",
		"/role something else",
		"/new",
		"/sessions",
		"/bogus",
		"/status",
		"/quit",
		"never sent",
	}, "\n")

	out, err := h.run(script, "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "no model loaded")
	assert.Contains(t, out, "role updated")
	assert.Contains(t, out, "AI: ok")
	assert.Contains(t, out, "role is locked")
	assert.Contains(t, out, "new session")
	assert.Contains(t, out, "You are a boxing coach.")
	assert.Contains(t, out, "unknown command /bogus")
	assert.NotContains(t, out, "never sent")

	inits, _, completes := h.rt.Counts()
	assert.Equal(t, 1, inits)
	assert.Equal(t, 1, completes)
}

func TestChat_RestoresModelOnStart(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "load")
	require.NoError(t, err)

	// A fresh runtime stands in for a restarted Ollama.
	h.rt = enginetest.New()
	out, err := h.run("hi\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "[LOADED] llama3.2:1b")
	assert.Contains(t, out, "AI: ok")
}

func TestResolveSession(t *testing.T) {
	list := []*model.ChatSession{
		{ID: "abc123", CreatedAt: time.Now()},
		{ID: "abd456", CreatedAt: time.Now()},
	}

	id, err := resolveSession(list, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = resolveSession(list, "ab")
	assert.ErrorIs(t, err, errAmbiguousSession)

	_, err = resolveSession(list, "")
	assert.ErrorIs(t, err, errNoSession)
}

func TestPrinter_SessionsAlignWideTitles(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{out: &buf, width: 80}
	now := time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)
	p.sessions([]*model.ChatSession{
		{ID: "11111111-aaaa", Title: "拳击教练", CreatedAt: now},
		{ID: "22222222-bbbb", Title: "Boxing coach", CreatedAt: now},
	}, "22222222-bbbb")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	// Both rows place the message count at the same display column.
	col := func(s string) int { return strings.Index(s, "msgs") }
	assert.Equal(t,
		util.StringWidth(lines[0][:col(lines[0])]),
		util.StringWidth(lines[1][:col(lines[1])]))
}

func TestSetup_WritesConfigAndLoads(t *testing.T) {
	h := newHarness(t)
	h.rt.Set(func(r *enginetest.Runtime) { r.Models = []string{"llama3.2:1b", "gemma2:2b"} })
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := h.run("2\n", "--config", path, "setup")
	require.NoError(t, err)
	assert.Contains(t, out, "Ollama: running")
	assert.Contains(t, out, "[2] gemma2:2b")
	assert.Contains(t, out, "[OK] gemma2:2b")
	assert.Equal(t, "gemma2:2b", h.rt.Bound())

	saved, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "gemma2:2b", saved.Runtime.DefaultModel)
}

func TestChooseModel(t *testing.T) {
	var out bytes.Buffer
	models := []string{"a", "b"}

	m, err := chooseModel(strings.NewReader("\n"), &out, models, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", m)

	m, err = chooseModel(strings.NewReader("custom:7b"), &out, models, "a")
	require.NoError(t, err)
	assert.Equal(t, "custom:7b", m)

	_, err = chooseModel(strings.NewReader("9\n"), &out, models, "a")
	assert.Error(t, err)
}
