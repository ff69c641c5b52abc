package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	"marco/internal/app"
	"marco/internal/audio"
	"marco/internal/bus"
	"marco/internal/config"
	"marco/internal/display"
	"marco/internal/duck"
	"marco/internal/ipc"
	"marco/internal/music"
	"marco/internal/notify"
	"marco/internal/proxy"
	"marco/internal/speech"
	"marco/internal/tts"
	"marco/internal/web"
	"marco/pkg/stt"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "marco:", err)
		os.Exit(2)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
	})))

	log.Info("Booting up")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := proxy.NewClient(cfg.Proxy, 0)
	if err != nil {
		log.Error("Failed to set up socks proxy", "proxy", cfg.Proxy, "err", err)
		os.Exit(1)
	}

	voice, closeVoice := newVoice(cfg)
	defer closeVoice()

	sinks := []display.Sink{display.NewTerminal(os.Stdout)}
	var bridge *bus.Bridge
	if cfg.BusURL != "" {
		bridge, err = bus.Dial(ctx, bus.Config{URL: cfg.BusURL})
		if err != nil {
			log.Warn("Bus unavailable, continuing without it", "err", err)
		} else {
			defer bridge.Close()
			sinks = append(sinks, bridge)
		}
	}

	deps := app.Deps{
		Voice:    voice,
		Display:  display.NewTee(sinks...),
		Browser:  web.NewBrowser(),
		Player:   audio.NewStreamPlayer(""),
		Resolver: music.NewYTDLP(""),
		HTTP:     httpClient,
		Chime:    notify.NewChime(cfg.Chime),
	}
	if cfg.Duck {
		deps.Ducker = duck.New(duck.Config{
			Skip:   []string{"marco", "espeak-ng"},
			Factor: 0.3,
			Floor:  10,
			Fade:   150 * time.Millisecond,
		})
	}

	capture, closeCapture := newCapture(cfg)
	defer closeCapture()
	transcriber, closeTranscriber := newTranscriber(cfg)
	defer closeTranscriber()
	deps.Capture, deps.Transcriber = capture, transcriber

	c, err := app.New(cfg, deps)
	if err != nil {
		log.Error("Failed to assemble assistant", "err", err)
		os.Exit(1)
	}
	defer c.Shutdown()

	srv, err := ipc.Listen(cfg.Socket, c.Control)
	if err != nil {
		log.Error("Failed to open control socket", "path", cfg.Socket, "err", err)
		os.Exit(1)
	}
	defer srv.Close()
	go func() {
		if err := srv.Serve(ctx); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error("Control socket stopped", "err", err)
		}
	}()

	if bridge != nil {
		go func() {
			if err := bridge.Run(ctx, c.Loop); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Bus bridge stopped", "err", err)
			}
		}()
	}

	go readStdin(ctx, os.Stdin, c.Input)

	if cfg.HandsFree {
		go c.Input.HandsFree(ctx)
	}

	log.Info("Boot up - successful", "mode", c.Input.Mode(), "socket", srv.Path())

	if err := c.Loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Session ended with error", "err", err)
	}
	log.Info("Shutting down")
}

func newVoice(cfg config.Config) (app.Voice, func()) {
	if cfg.Mute {
		return tts.Silent{}, func() {}
	}
	v, err := tts.NewEspeak(cfg.Lang)
	if err != nil {
		log.Warn("Speech output unavailable, replies will only be logged", "err", err)
		return tts.Silent{}, func() {}
	}
	return v, v.Close
}

func newCapture(cfg config.Config) (speech.Capturer, func()) {
	if cfg.Replay != "" {
		r, err := audio.NewReplay(cfg.Replay)
		if err != nil {
			log.Warn("Replay unavailable", "err", err)
			return nil, func() {}
		}
		return r, func() {}
	}

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		log.Warn("Microphone unavailable, voice mode disabled", "err", err)
		return nil, func() {}
	}
	return rec, rec.Close
}

func newTranscriber(cfg config.Config) (speech.Transcriber, func()) {
	tr, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{Language: cfg.Lang})
	if err != nil {
		log.Warn("Whisper unavailable, voice mode disabled", "model", cfg.WhisperModel, "err", err)
		return nil, func() {}
	}
	return tr, func() {
		if err := tr.Close(); err != nil {
			log.Warn("Failed to release whisper model", "err", err)
		}
	}
}
