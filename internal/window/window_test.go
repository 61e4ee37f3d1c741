// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package window

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/jeranaias/rigchat/internal/model"
)

func history(turns int) []model.ChatMessage {
	var msgs []model.ChatMessage
	for i := 0; i < turns; i++ {
		msgs = append(msgs,
			model.NewUserMessage(fmt.Sprintf("q%d", i)),
			model.NewAssistantMessage(fmt.Sprintf("a%d", i)),
		)
	}
	return msgs
}

func TestBuild_EmptyHistory(t *testing.T) {
	got := Build("You are a boxing coach.", nil, "hi", 6)
	want := []model.ChatMessage{
		{Role: model.RoleSystem, Content: "You are a boxing coach."},
		{Role: model.RoleUser, Content: "hi"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build() = %+v, want %+v", got, want)
	}
}

func TestBuild_EmptyRoleStillSendsSystem(t *testing.T) {
	got := Build("", nil, "hi", 6)
	if len(got) != 2 || got[0].Role != model.RoleSystem || got[0].Content != "" {
		t.Errorf("Build() = %+v, want empty system message first", got)
	}
}

func TestBuild_SingleSystemMessageAtIndexZero(t *testing.T) {
	for turns := 0; turns < 20; turns++ {
		h := history(turns)
		h = append([]model.ChatMessage{model.NewSystemMessage("stale")}, h...)

		got := Build("role", h, "next", 6)

		systems := 0
		for i, m := range got {
			if m.Role == model.RoleSystem {
				systems++
				if i != 0 {
					t.Fatalf("turns=%d: system message at index %d", turns, i)
				}
			}
		}
		if systems != 1 {
			t.Fatalf("turns=%d: %d system messages, want 1", turns, systems)
		}
		if len(got) > MaxLength(6) {
			t.Fatalf("turns=%d: len = %d, want <= %d", turns, len(got), MaxLength(6))
		}
		if last := got[len(got)-1]; last.Role != model.RoleUser || last.Content != "next" {
			t.Fatalf("turns=%d: last message = %+v", turns, last)
		}
	}
}

func TestBuild_KeepsMostRecentTurns(t *testing.T) {
	got := Build("role", history(10), "now", 3)

	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	if got[1].Content != "q7" || got[6].Content != "a9" {
		t.Errorf("window = %+v, want turns 7..9", got)
	}
}

func TestBuild_DoesNotMutateHistory(t *testing.T) {
	h := history(8)
	snapshot := append([]model.ChatMessage(nil), h...)

	_ = Build("role", h, "x", 2)

	if !reflect.DeepEqual(h, snapshot) {
		t.Error("Build mutated its history argument")
	}
}

func TestBuild_DefaultMaxTurns(t *testing.T) {
	got := Build("role", history(20), "x", 0)
	if len(got) != MaxLength(DefaultMaxTurns) {
		t.Errorf("len = %d, want %d", len(got), MaxLength(DefaultMaxTurns))
	}
}
