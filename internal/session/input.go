package session

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"
)

type Mode string

const (
	ModeText  Mode = "text"
	ModeVoice Mode = "voice"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeText, ModeVoice:
		return m, nil
	default:
		return "", fmt.Errorf("unknown input mode %q", s)
	}
}

const (
	handsFreeRetry       = 200 * time.Millisecond
	handsFreeMaxRetry    = 5 * time.Second
	handsFreeMaxFailures = 5
)

// Input is the control surface: typed commands, the listen trigger and the
// mode switch. Typed text is refused in voice mode and the other way round.
type Input struct {
	loop     *Loop
	listener *Listener
	display  Display
	voice    Voice

	// retry is the first pause after an attempt that queued nothing. It
	// doubles with each consecutive capture error.
	retry time.Duration

	mu   sync.Mutex
	mode Mode
}

// NewInput accepts a nil listener when no microphone pipeline is available.
func NewInput(loop *Loop, listener *Listener, display Display, voice Voice, mode Mode) *Input {
	in := &Input{
		loop:     loop,
		listener: listener,
		display:  display,
		voice:    voice,
		mode:     mode,
		retry:    handsFreeRetry,
	}
	if listener != nil && mode == ModeText {
		listener.Pause()
	}
	return in
}

func (in *Input) Mode() Mode {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.mode
}

func (in *Input) SetMode(m Mode) {
	in.mu.Lock()
	in.mode = m
	in.mu.Unlock()

	in.display.SetStatus(fmt.Sprintf("Switched to %s mode.", m))
	log.Info("Input mode changed", "mode", m)

	if m == ModeVoice {
		wake := "Marco"
		if in.listener != nil {
			in.listener.Reset()
			wake = in.listener.wakeName()
		}
		in.voice.Speak(fmt.Sprintf("Switched to voice input mode. Say '%s' to activate.", wake))
		return
	}
	if in.listener != nil {
		in.listener.Pause()
	}
}

// Text submits a typed command exactly as given. It reports whether anything
// was queued.
func (in *Input) Text(text, source string) bool {
	if in.Mode() != ModeText {
		in.display.SetStatus("Please switch to 'Text' input mode to type commands.")
		return false
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		in.display.SetStatus("No command entered.")
		return false
	}

	in.display.Append("You: " + trimmed)
	in.display.SetStatus("Processing typed command...")
	in.loop.Submit(text, source)
	return true
}

// Listen starts one voice capture attempt in the background.
func (in *Input) Listen(ctx context.Context) bool {
	if in.Mode() != ModeVoice {
		in.display.SetStatus("Please switch to 'Voice' input mode to use voice commands.")
		return false
	}
	if in.listener == nil {
		in.loop.Notify("Recognizer not initialized.")
		return false
	}

	if in.listener.Busy() {
		log.Debug("Capture already in progress")
		return false
	}

	in.display.SetStatus("Listening for voice...")
	return in.listener.Trigger(ctx)
}

// HandsFree keeps running capture attempts back to back while voice mode is
// on, until ctx ends or the session terminates. Capture errors back off
// exponentially, and after handsFreeMaxFailures of them in a row it gives up.
func (in *Input) HandsFree(ctx context.Context) {
	if in.listener == nil {
		return
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-in.loop.Done():
			return
		default:
		}

		wait := in.retry
		if in.Mode() == ModeVoice {
			switch in.listener.Attempt(ctx) {
			case Dispatched:
				failures = 0
				continue
			case Failed:
				failures++
				if failures >= handsFreeMaxFailures {
					log.Error("Hands-free listening stopped", "failures", failures)
					in.loop.Notify("Voice input keeps failing. Hands-free listening stopped.")
					return
				}
				wait = min(in.retry<<(failures-1), handsFreeMaxRetry)
			case Missed:
				failures = 0
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-in.loop.Done():
			return
		case <-time.After(wait):
		}
	}
}
