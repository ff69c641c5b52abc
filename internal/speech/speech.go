// Package speech turns captured audio into command text.
package speech

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"
)

var (
	// ErrWaitTimeout means nobody started speaking inside the window.
	ErrWaitTimeout   = errors.New("speech: no phrase started before timeout")
	ErrNotUnderstood = errors.New("speech: audio not understood")
	ErrUnavailable   = errors.New("speech: recognition service unavailable")
)

// Window bounds one capture: how long to wait for speech to start, how long
// the phrase may run and how much leading audio to spend on noise calibration.
type Window struct {
	Timeout     time.Duration
	PhraseLimit time.Duration
	Calibrate   time.Duration
}

func ActivationWindow() Window {
	return Window{Timeout: 10 * time.Second, PhraseLimit: 7 * time.Second, Calibrate: 500 * time.Millisecond}
}

func CommandWindow() Window {
	return Window{Timeout: 10 * time.Second, PhraseLimit: 8 * time.Second, Calibrate: 500 * time.Millisecond}
}

type Capturer interface {
	Capture(ctx context.Context, w Window) ([]float32, error)
}

// Transcriber is the raw speech-to-text backend.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

type Recognizer struct {
	tr      Transcriber
	timeout time.Duration
}

func NewRecognizer(tr Transcriber, timeout time.Duration) *Recognizer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Recognizer{tr: tr, timeout: timeout}
}

// Recognize returns the lowercased transcript, or "" when the audio could not
// be understood or the backend failed. It never reports an error.
func (r *Recognizer) Recognize(ctx context.Context, pcm []float32) string {
	if r == nil || r.tr == nil {
		log.Error("Speech recognizer not initialized")
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.tr.Transcribe(ctx, pcm)
	if err != nil {
		log.Error("Could not request results from speech recognition", "err", errors.Join(ErrUnavailable, err))
		return ""
	}

	text := Normalize(raw)
	if text == "" {
		log.Warn("Speech recognition could not understand audio", "err", ErrNotUnderstood, "raw", raw)
	}
	return text
}

// Normalize lowercases a transcript and drops the punctuation and
// non-speech markers ("[BLANK_AUDIO]", "(music)") the backend emits.
func Normalize(raw string) string {
	var b strings.Builder
	depth := 0
	for _, r := range raw {
		switch r {
		case '[', '(':
			depth++
			continue
		case ']', ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth == 0 {
			b.WriteRune(r)
		}
	}

	fields := strings.Fields(strings.ToLower(b.String()))
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".,!?;:\"")
	}
	return strings.Join(strings.Fields(strings.Join(fields, " ")), " ")
}
