// Package app builds the assistant from its parts once per process.
package app

import (
	"context"
	"fmt"
	log "log/slog"
	"net/http"
	"time"

	"marco/internal/chat"
	"marco/internal/config"
	"marco/internal/dispatch"
	"marco/internal/history"
	"marco/internal/ipc"
	"marco/internal/llm"
	"marco/internal/music"
	"marco/internal/news"
	"marco/internal/session"
	"marco/internal/speech"
)

type Voice interface {
	Speak(text string)
}

// Deps are the platform adapters. Capture and Transcriber may be nil, in
// which case voice input reports the recognizer as not initialized; Player
// may be nil, in which case music reports the player as not initialized.
type Deps struct {
	Voice       Voice
	Display     session.Display
	Browser     dispatch.Browser
	Player      music.Player
	Resolver    music.Resolver
	Model       chat.Model
	HTTP        *http.Client
	Capture     speech.Capturer
	Transcriber speech.Transcriber
	Chime       session.Chimer
	Ducker      session.Ducker
}

// Context owns every long-lived object of a session.
type Context struct {
	History  *history.History
	Chat     *chat.Service
	News     *news.Service
	Music    *music.Service
	Dispatch *dispatch.Dispatcher
	Loop     *session.Loop
	Listener *session.Listener
	Input    *session.Input

	player music.Player
}

func New(cfg config.Config, d Deps) (*Context, error) {
	mode, err := session.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	model := d.Model
	if model == nil {
		if cfg.LLM.APIKey == "" {
			log.Warn("No LLM API key configured, conversation will fail")
		}
		lc := cfg.LLM
		lc.HTTP = d.HTTP
		model = llm.NewClient(lc)
	}

	nc := cfg.News
	nc.HTTP = d.HTTP
	if nc.APIKey == "" {
		log.Warn("No news API key configured, headlines will fail")
	}

	c := &Context{
		History: history.New(chat.DefaultPersona),
		player:  d.Player,
	}
	c.Chat = chat.NewService(model, d.Voice, c.History, chat.DefaultOptions())
	c.News = news.NewService(nc, d.Voice)

	c.Music = music.NewService(d.Resolver, d.Player, d.Voice)

	c.Dispatch = dispatch.New(dispatch.Handlers{
		Voice:   d.Voice,
		Browser: d.Browser,
		Music:   c.Music,
		News:    c.News,
		Chat:    c.Chat,
	})

	c.Loop = session.NewLoop(c.Dispatch, d.Voice, d.Display, c.History, session.Options{
		PollInterval: cfg.PollInterval,
		WaitTimeout:  cfg.WaitTimeout,
	})

	if d.Capture != nil && d.Transcriber != nil {
		c.Listener = session.NewListener(session.ListenerConfig{
			Capture:    d.Capture,
			Recognizer: speech.NewRecognizer(d.Transcriber, time.Minute),
			Sink:       c.Loop,
			Display:    d.Display,
			Chime:      d.Chime,
			Ducker:     d.Ducker,
			WakeWord:   cfg.WakeWord,
		})
	}

	c.Input = session.NewInput(c.Loop, c.Listener, d.Display, d.Voice, mode)
	return c, nil
}

// Control serves one message from the control socket.
func (c *Context) Control(ctx context.Context, msg ipc.ControlMessage) error {
	switch msg.Cmd {
	case ipc.CmdListen:
		if !c.Input.Listen(ctx) {
			return fmt.Errorf("cannot listen now (mode %s)", c.Input.Mode())
		}
	case ipc.CmdSay:
		if !c.Input.Text(msg.Text, "ipc") {
			return fmt.Errorf("command not accepted (mode %s)", c.Input.Mode())
		}
	case ipc.CmdMode:
		m, err := session.ParseMode(msg.Text)
		if err != nil {
			return err
		}
		c.Input.SetMode(m)
	default:
		return fmt.Errorf("unknown command %q", msg.Cmd)
	}
	return nil
}

// Shutdown releases what outlives the session loop.
func (c *Context) Shutdown() {
	if c.Listener != nil {
		c.Listener.Close()
	}
	if c.player != nil && c.player.Playing() {
		if err := c.player.Stop(); err != nil {
			log.Warn("Failed to stop playback", "err", err)
		}
	}
}
