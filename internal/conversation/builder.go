// Package conversation turns a board's system prompt, resolved ancestor notes
// and the caller's prompt into the ordered message list sent upstream.
//
// Each ancestor note becomes a user/assistant exchange (title asked, content
// answered) so the provider treats earlier notes as things already said.
package conversation

import (
	"regexp"
	"strings"

	"github.com/HendryAvila/stickyboard/internal/board"
)

// Role values understood by chat-completion providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Build assembles the conversation. It performs no I/O and its output is a
// pure function of its inputs.
func Build(systemPrompt string, ancestors []board.Note, prompt string) []Message {
	msgs := make([]Message, 0, 2*len(ancestors)+2)

	if sp := strings.TrimSpace(systemPrompt); sp != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: sp})
	}

	for _, n := range ancestors {
		msgs = append(msgs,
			Message{Role: RoleUser, Content: n.Title},
			Message{Role: RoleAssistant, Content: StripBanner(n.Content)},
		)
	}

	return append(msgs, Message{Role: RoleUser, Content: prompt})
}

// bannerRe matches the model banner the relay prepends to generated notes,
// in the current quoted form and the older unquoted one, plus blank lines after it.
var bannerRe = regexp.MustCompile(`\A[ \t]*(?:>[ \t]*)?\*\*model:[^\n*]*\*\*[ \t]*(?:\r?\n|\z)(?:[ \t]*\r?\n)*`)

// StripBanner removes a leading model banner line from note content.
func StripBanner(content string) string {
	return bannerRe.ReplaceAllString(content, "")
}
