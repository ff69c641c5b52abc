// Package history keeps the process-wide conversation with the assistant.
package history

import "sync"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role
	Content string
}

// History is written by a single goroutine (the session worker) and may be
// read concurrently; readers always get a copy.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// New starts a conversation with the persona preamble as its only turn.
func New(persona string) *History {
	return &History{
		turns: []Turn{{Role: RoleSystem, Content: persona}},
	}
}

func (h *History) Append(role Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, Turn{Role: role, Content: content})
}

// RollbackUser drops the newest turn if it is a user turn and reports whether
// it did.
func (h *History) RollbackUser() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.turns)
	if n == 0 || h.turns[n-1].Role != RoleUser {
		return false
	}
	h.turns = h.turns[:n-1]
	return true
}

func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
