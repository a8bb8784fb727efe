package conversation

import (
	"testing"

	"github.com/HendryAvila/stickyboard/internal/board"
	"github.com/google/go-cmp/cmp"
)

func TestBuild_FullConversation(t *testing.T) {
	ancestors := []board.Note{
		{ID: 1, Title: "A title", Content: "A content"},
		{ID: 2, Title: "B title", Content: "> **model: gpt-4o**\n\nB content"},
	}

	got := Build("  Be concise.  ", ancestors, "What next?")
	want := []Message{
		{Role: RoleSystem, Content: "Be concise."},
		{Role: RoleUser, Content: "A title"},
		{Role: RoleAssistant, Content: "A content"},
		{Role: RoleUser, Content: "B title"},
		{Role: RoleAssistant, Content: "B content"},
		{Role: RoleUser, Content: "What next?"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_BlankSystemPromptOmitted(t *testing.T) {
	got := Build(" \n\t ", nil, "hello")
	want := []Message{{Role: RoleUser, Content: "hello"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	ancestors := []board.Note{{Title: "x", Content: "y"}, {Title: "z", Content: "w"}}
	first := Build("sys", ancestors, "p")
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Build("sys", ancestors, "p")); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestStripBanner(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"quoted banner", "> **model: gpt-4o**\n\nHello", "Hello"},
		{"unquoted legacy banner", "**model: deepseek-r1**\nHello", "Hello"},
		{"banner only", "> **model: o3**", ""},
		{"crlf", "> **model: o3**\r\n\r\nHi", "Hi"},
		{"no banner", "Plain **bold** text", "Plain **bold** text"},
		{"banner not at start", "Intro\n> **model: x**\nrest", "Intro\n> **model: x**\nrest"},
		{"keeps indentation of first line", "> **model: x**\n\n    code", "    code"},
		{"only first banner", "> **model: a**\n> **model: b**\nbody", "> **model: b**\nbody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripBanner(tt.in); got != tt.want {
				t.Errorf("StripBanner(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
