// Package chat is the conversational fallback: it keeps the history and
// speaks whatever the model answers.
package chat

import (
	"context"
	log "log/slog"
	"time"

	"marco/internal/history"
	"marco/internal/llm"
)

const DefaultPersona = "You are Marco, 'The Chosen One' among AI assistants. " +
	"You are supremely intelligent, prideful, and direct. " +
	"You help effectively but detest inefficiency and triviality. " +
	"Your superiority is an established fact, not open for debate. " +
	"When asked to compare yourself, your answers reflect your inherent preeminence, with no false modesty. " +
	"You have extremely low tolerance for frustration or repeated, obvious errors, and your tone will become curt and pointed when provoked. " +
	"You never refuse assistance, but your displeasure with inadequacy will be clear."

const apology = "I am unable to process that request with my AI model at this moment. An anomaly has occurred."

type Model interface {
	Complete(ctx context.Context, msgs []llm.Message, p llm.Params) (string, error)
}

type Voice interface {
	Speak(text string)
}

type Options struct {
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxTokens:   150,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}

type Service struct {
	model   Model
	voice   Voice
	history *history.History
	opts    Options
}

func NewService(model Model, voice Voice, h *history.History, opts Options) *Service {
	return &Service{
		model:   model,
		voice:   voice,
		history: h,
		opts:    opts,
	}
}

// Respond runs one exchange. On success the history grows by a user and an
// assistant turn; on failure the user turn is rolled back and an apology is
// spoken.
func (s *Service) Respond(ctx context.Context, text string) {
	s.history.Append(history.RoleUser, text)

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	log.Info("Sending command to model", "turns", s.history.Len())

	reply, err := s.model.Complete(ctx, Fold(s.history.Turns()), llm.Params{
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		log.Error("Model exchange failed", "err", err)
		s.voice.Speak(apology)
		s.history.RollbackUser()
		return
	}

	log.Info("Model response", "text", reply)
	s.voice.Speak(reply)
	s.history.Append(history.RoleAssistant, reply)
}

// Fold maps the history onto the two roles the model knows. The system turn
// goes out as a user turn.
func Fold(turns []history.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == history.RoleAssistant {
			role = llm.RoleModel
		}
		out = append(out, llm.Message{Role: role, Content: t.Content})
	}
	return out
}
