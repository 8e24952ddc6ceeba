package domain

import "strings"

const (
	// HistoryWindow is the number of turns a session keeps.
	HistoryWindow = 10
	// PromptTurns is the number of turns rendered into prompts.
	PromptTurns = 6
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleModel is accepted on input as an alias of RoleAssistant.
	RoleModel Role = "model"
)

// Turn is a single conversation message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// IsUser reports whether the turn was written by the user.
func (t Turn) IsUser() bool {
	return t.Role == RoleUser
}

// History is an ordered list of turns, oldest first.
type History []Turn

// Trim returns the last n turns.
func (h History) Trim(n int) History {
	if n <= 0 {
		return History{}
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// Last returns the trailing turn and whether one exists.
func (h History) Last() (Turn, bool) {
	if len(h) == 0 {
		return Turn{}, false
	}
	return h[len(h)-1], true
}

// Format renders the last n turns for prompting.
func (h History) Format(n int) string {
	if len(h) == 0 {
		return "Sin historial."
	}
	recent := h.Trim(n)
	lines := make([]string, 0, len(recent))
	for _, t := range recent {
		who := "IA"
		if t.IsUser() {
			who = "USER"
		}
		lines = append(lines, who+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}
