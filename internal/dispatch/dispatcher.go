// Package dispatch maps a command string onto exactly one action.
//
// Matching walks a fixed, ordered list of substring predicates and stops at
// the first hit, so a command that mentions several intents goes to whichever
// comes first in the list. The order is part of the contract.
package dispatch

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"

	"marco/internal/news"
)

type Voice interface {
	Speak(text string)
}

type Browser interface {
	Open(url string) error
}

type Music interface {
	Play(ctx context.Context, query string)
	Stop(ctx context.Context)
}

type News interface {
	Fetch(ctx context.Context, q news.Query)
}

type Chat interface {
	Respond(ctx context.Context, text string)
}

// Handlers are the collaborators the actions talk to. Each of them reports
// its own failures to the user.
type Handlers struct {
	Voice   Voice
	Browser Browser
	Music   Music
	News    News
	Chat    Chat
}

type Result struct {
	Terminate bool
	Status    string
}

func Continue(status string) Result { return Result{Status: status} }

func Terminate() Result { return Result{Terminate: true} }

// Input carries the command as received and its lowercased form.
type Input struct {
	Raw  string
	Text string
}

type Rule struct {
	Intent Intent
	Match  func(text string) bool
	Handle func(ctx context.Context, in Input) Result
}

type Dispatcher struct {
	rules []Rule
	voice Voice
}

func New(h Handlers) *Dispatcher {
	return NewWithRules(Rules(h), h.Voice)
}

// NewWithRules builds a dispatcher over an explicit rule list. The last rule
// should match everything.
func NewWithRules(rules []Rule, voice Voice) *Dispatcher {
	return &Dispatcher{rules: rules, voice: voice}
}

// Dispatch runs the first matching rule. Nothing escapes it: a panicking
// handler is logged, apologised for and reported as a failed command.
func (d *Dispatcher) Dispatch(ctx context.Context, command string) (res Result) {
	in := Input{Raw: command, Text: strings.ToLower(strings.TrimSpace(command))}
	if in.Text == "" {
		return Continue("No command entered.")
	}

	for _, r := range d.rules {
		if !r.Match(in.Text) {
			continue
		}

		defer func() {
			if p := recover(); p != nil {
				log.Error("Handler panicked", "intent", r.Intent, "panic", fmt.Sprint(p))
				d.voice.Speak("An unexpected anomaly occurred while processing that command.")
				res = Continue("Command failed.")
			}
		}()

		log.Debug("Dispatching", "intent", r.Intent, "text", in.Text)
		return r.Handle(ctx, in)
	}

	log.Warn("No rule matched", "text", in.Text)
	return Continue("No command matched.")
}
