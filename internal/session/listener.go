package session

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync/atomic"

	"marco/internal/speech"
)

type State int32

const (
	Idle State = iota
	AwaitingActivationWord
	AwaitingCommand
	Dispatching
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingActivationWord:
		return "awaiting-activation"
	case AwaitingCommand:
		return "awaiting-command"
	case Dispatching:
		return "dispatching"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcome is how a single capture attempt ended.
type Outcome int

const (
	// Refused means no attempt ran: one was already in flight or the
	// listener is closed.
	Refused Outcome = iota
	Dispatched
	// Missed covers timeouts, a missing wake word, an empty transcript and
	// cancellation.
	Missed
	// Failed means the capture device itself returned an error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Refused:
		return "refused"
	case Dispatched:
		return "dispatched"
	case Missed:
		return "missed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Recognizer interface {
	Recognize(ctx context.Context, pcm []float32) string
}

// Sink is where the listener hands recognized commands and user-facing
// messages. *Loop implements it.
type Sink interface {
	Submit(text, source string) string
	Notify(msg string)
}

type Chimer interface {
	Chime()
}

// Ducker lowers other audio while the microphone is open.
type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

type ListenerConfig struct {
	Capture    speech.Capturer
	Recognizer Recognizer
	Sink       Sink
	Display    Display
	Chime      Chimer
	Ducker     Ducker
	WakeWord   string
	Activation speech.Window
	Command    speech.Window
}

// Listener runs the wake-word protocol. Only its own attempts change its
// state, and at most one attempt runs at a time.
type Listener struct {
	cfg   ListenerConfig
	state atomic.Int32
	busy  atomic.Bool
}

func NewListener(cfg ListenerConfig) *Listener {
	if cfg.WakeWord == "" {
		cfg.WakeWord = "marco"
	}
	cfg.WakeWord = strings.ToLower(cfg.WakeWord)
	if cfg.Activation == (speech.Window{}) {
		cfg.Activation = speech.ActivationWindow()
	}
	if cfg.Command == (speech.Window{}) {
		cfg.Command = speech.CommandWindow()
	}

	l := &Listener{cfg: cfg}
	l.state.Store(int32(AwaitingActivationWord))
	return l
}

func (l *Listener) State() State {
	return State(l.state.Load())
}

func (l *Listener) Busy() bool {
	return l.busy.Load()
}

// Reset puts a live listener back to waiting for the wake word.
func (l *Listener) Reset() {
	l.setState(AwaitingActivationWord)
}

// Pause parks the listener while voice input is switched off.
func (l *Listener) Pause() {
	l.setState(Idle)
}

func (l *Listener) Close() {
	l.state.Store(int32(Terminated))
}

// Trigger starts an attempt in the background. It returns false when one is
// already running or the listener is closed.
func (l *Listener) Trigger(ctx context.Context) bool {
	if l.State() == Terminated || !l.busy.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		defer l.busy.Store(false)
		l.attempt(ctx)
	}()
	return true
}

// Attempt runs one full capture attempt on the calling goroutine: wake word,
// then a single command. It returns Refused without doing anything when an
// attempt is already running.
func (l *Listener) Attempt(ctx context.Context) Outcome {
	if l.State() == Terminated || !l.busy.CompareAndSwap(false, true) {
		return Refused
	}
	defer l.busy.Store(false)

	return l.attempt(ctx)
}

func (l *Listener) attempt(ctx context.Context) Outcome {
	defer l.ready()

	l.setState(AwaitingActivationWord)
	l.cfg.Display.SetStatus(fmt.Sprintf("Say '%s' to activate...", l.wakeName()))

	pcm, err := l.capture(ctx, l.cfg.Activation)
	if err != nil {
		return l.captureFailed(ctx, err,
			fmt.Sprintf("No speech detected within the timeout. Say '%s' to activate or give command.", l.wakeName()),
			"An unexpected error during voice input")
	}

	word := l.cfg.Recognizer.Recognize(ctx, pcm)
	l.cfg.Display.Append(fmt.Sprintf("Heard activation attempt: '%s'", word))

	if !strings.Contains(word, l.cfg.WakeWord) {
		l.cfg.Sink.Notify(fmt.Sprintf("Activation word not detected. Say '%s' again or switch mode.", l.wakeName()))
		return Missed
	}

	log.Info("Activated", "heard", word)
	if l.cfg.Chime != nil {
		l.cfg.Chime.Chime()
	}
	l.cfg.Sink.Notify("The Chosen One is Active. Your command, please.")
	l.setState(AwaitingCommand)

	return l.listenCommand(ctx)
}

func (l *Listener) listenCommand(ctx context.Context) Outcome {
	l.cfg.Display.SetStatus("Listening for command...")

	pcm, err := l.capture(ctx, l.cfg.Command)
	if err != nil {
		return l.captureFailed(ctx, err,
			"No command received. Returning to activation state.",
			"An error occurred while getting command")
	}

	command := l.cfg.Recognizer.Recognize(ctx, pcm)
	l.cfg.Display.Append("You: " + command)

	if command == "" {
		l.cfg.Sink.Notify("Command not recognized. Please try again.")
		return Missed
	}

	l.cfg.Display.SetStatus("Processing voice command...")
	l.setState(Dispatching)
	id := l.cfg.Sink.Submit(command, "voice")
	log.Info("Voice command queued", "id", id, "text", command)
	return Dispatched
}

func (l *Listener) capture(ctx context.Context, w speech.Window) ([]float32, error) {
	if l.cfg.Capture == nil {
		return nil, errors.New("recognizer not initialized")
	}

	if l.cfg.Ducker != nil {
		if err := l.cfg.Ducker.Duck(ctx); err != nil {
			log.Warn("Failed to duck other audio", "err", err)
		}
		defer func() {
			if err := l.cfg.Ducker.Restore(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to restore other audio", "err", err)
			}
		}()
	}

	return l.cfg.Capture.Capture(ctx, w)
}

func (l *Listener) captureFailed(ctx context.Context, err error, timeoutMsg, failurePrefix string) Outcome {
	switch {
	case ctx.Err() != nil:
		log.Debug("Capture cancelled", "err", err)
		return Missed
	case errors.Is(err, speech.ErrWaitTimeout):
		l.cfg.Sink.Notify(timeoutMsg)
		return Missed
	default:
		log.Error("Capture failed", "err", err)
		l.cfg.Sink.Notify(fmt.Sprintf("%s: %v", failurePrefix, err))
		return Failed
	}
}

// ready ends every attempt: back to the wake word, controls re-enabled.
func (l *Listener) ready() {
	if l.State() == Terminated {
		return
	}
	l.setState(AwaitingActivationWord)
	l.cfg.Display.SetStatus("Ready. (Voice Mode)")
}

func (l *Listener) setState(s State) {
	for {
		cur := l.state.Load()
		if State(cur) == Terminated {
			return
		}
		if l.state.CompareAndSwap(cur, int32(s)) {
			log.Debug("Listener state", "from", State(cur), "to", s)
			return
		}
	}
}

func (l *Listener) wakeName() string {
	return strings.ToUpper(l.cfg.WakeWord[:1]) + l.cfg.WakeWord[1:]
}
