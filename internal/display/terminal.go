// Package display renders the session on a terminal.
package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"marco/internal/history"
)

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	marcoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	lineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

// Terminal writes the status line, transcript lines and new history turns to
// w. History is printed incrementally: only turns not shown before. User turns
// are skipped because the input side already echoed them with Append.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	status string
	shown  int
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) SetStatus(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if text == t.status {
		return
	}
	t.status = text
	fmt.Fprintln(t.w, statusStyle.Render("» "+text))
}

func (t *Terminal) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, lineStyle.Render(line))
}

func (t *Terminal) ShowHistory(turns []history.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// a rolled back turn was never shown as an answer; just resync
	if len(turns) < t.shown {
		t.shown = len(turns)
		return
	}

	for _, turn := range turns[t.shown:] {
		if turn.Role == history.RoleUser {
			continue
		}
		fmt.Fprintln(t.w, Format(turn))
	}
	t.shown = len(turns)
}

// Format renders a turn the way the transcript shows it. The persona
// preamble is attributed to Marco.
func Format(turn history.Turn) string {
	if turn.Role == history.RoleUser {
		return userStyle.Render("You:") + " " + turn.Content
	}
	return marcoStyle.Render("Marco:") + " " + turn.Content
}
