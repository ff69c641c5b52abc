package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marco/internal/history"
	"marco/internal/speech"
)

func newInput(mode Mode, withListener bool) (*Input, *Loop, *Listener, *fakeDisplay, *fakeVoice) {
	display := &fakeDisplay{}
	voice := &fakeVoice{}
	loop := NewLoop(&fakeDispatcher{}, voice, display, history.New("p"), fastOptions())

	var l *Listener
	if withListener {
		l = NewListener(ListenerConfig{
			Capture:    &fakeCapture{block: make(chan struct{})},
			Recognizer: &fakeRecognizer{},
			Sink:       loop,
			Display:    display,
		})
	}
	return NewInput(loop, l, display, voice, mode), loop, l, display, voice
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Voice ")
	require.NoError(t, err)
	assert.Equal(t, ModeVoice, m)

	_, err = ParseMode("telepathy")
	assert.Error(t, err)
}

func TestInput_TextModeQueuesCommand(t *testing.T) {
	in, loop, _, display, _ := newInput(ModeText, false)

	assert.True(t, in.Text("  open google  ", "text"))

	require.Equal(t, 1, loop.commands.Len())
	cmd, _ := loop.commands.TryPop()
	assert.Equal(t, "  open google  ", cmd.Text)
	assert.Equal(t, "text", cmd.Source)
	assert.Equal(t, []string{"You: open google"}, display.Lines())
	assert.Equal(t, "Processing typed command...", display.LastStatus())
}

func TestInput_TextRejected(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		in, loop, _, display, _ := newInput(ModeText, false)

		assert.False(t, in.Text("   ", "text"))
		assert.Equal(t, 0, loop.commands.Len())
		assert.Equal(t, "No command entered.", display.LastStatus())
	})

	t.Run("voice mode", func(t *testing.T) {
		in, loop, _, display, _ := newInput(ModeVoice, false)

		assert.False(t, in.Text("open google", "text"))
		assert.Equal(t, 0, loop.commands.Len())
		assert.Equal(t, "Please switch to 'Text' input mode to type commands.", display.LastStatus())
	})
}

func TestInput_ListenRejected(t *testing.T) {
	t.Run("text mode", func(t *testing.T) {
		in, _, _, display, _ := newInput(ModeText, true)

		assert.False(t, in.Listen(context.Background()))
		assert.Equal(t, "Please switch to 'Voice' input mode to use voice commands.", display.LastStatus())
	})

	t.Run("no recognizer", func(t *testing.T) {
		in, loop, _, _, _ := newInput(ModeVoice, false)

		assert.False(t, in.Listen(context.Background()))
		assert.Equal(t, 1, loop.responses.Len())
	})
}

func TestInput_ListenWhileBusy(t *testing.T) {
	in, _, l, display, _ := newInput(ModeVoice, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.True(t, in.Listen(ctx))
	assert.True(t, l.Busy())
	assert.Contains(t, display.Statuses(), "Listening for voice...")
	assert.False(t, in.Listen(ctx))

	cancel()
	assert.Eventually(t, func() bool { return !l.Busy() }, time.Second, 5*time.Millisecond)
}

func TestInput_SetMode(t *testing.T) {
	in, _, l, display, voice := newInput(ModeText, true)
	assert.Equal(t, Idle, l.State())

	in.SetMode(ModeVoice)
	assert.Equal(t, ModeVoice, in.Mode())
	assert.Equal(t, AwaitingActivationWord, l.State())
	assert.Equal(t, "Switched to voice mode.", display.LastStatus())
	assert.Equal(t, []string{"Switched to voice input mode. Say 'Marco' to activate."}, voice.Said())

	in.SetMode(ModeText)
	assert.Equal(t, Idle, l.State())
	assert.Equal(t, "Switched to text mode.", display.LastStatus())
	assert.Len(t, voice.Said(), 1)
}

func TestInput_SetModeWithoutListener(t *testing.T) {
	in, _, _, display, voice := newInput(ModeText, false)

	in.SetMode(ModeVoice)
	assert.Equal(t, ModeVoice, in.Mode())
	assert.Equal(t, "Switched to voice mode.", display.LastStatus())
	assert.Equal(t, []string{"Switched to voice input mode. Say 'Marco' to activate."}, voice.Said())

	in.SetMode(ModeText)
	assert.Equal(t, ModeText, in.Mode())
	assert.Len(t, voice.Said(), 1)
}

// brokenMic builds a voice-mode input whose capture device fails every time.
func brokenMic() (*Input, *Loop, *fakeCapture) {
	steps := make([]captureStep, 1000)
	for i := range steps {
		steps[i] = captureStep{err: errors.New("device unplugged")}
	}
	capture := &fakeCapture{steps: steps}

	display := &fakeDisplay{}
	voice := &fakeVoice{}
	loop := NewLoop(&fakeDispatcher{}, voice, display, history.New("p"), fastOptions())
	l := NewListener(ListenerConfig{
		Capture:    capture,
		Recognizer: &fakeRecognizer{},
		Sink:       loop,
		Display:    display,
	})
	return NewInput(loop, l, display, voice, ModeVoice), loop, capture
}

func TestInput_HandsFreeBacksOffOnCaptureErrors(t *testing.T) {
	in, loop, capture := brokenMic()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	in.HandsFree(ctx)

	// first attempt, then 200ms, then a second one before the 400ms pause
	assert.LessOrEqual(t, capture.Calls(), 3)
	assert.LessOrEqual(t, loop.responses.Len(), 3)
}

func TestInput_HandsFreeGivesUp(t *testing.T) {
	in, loop, capture := brokenMic()
	in.retry = time.Millisecond

	done := make(chan struct{})
	go func() {
		in.HandsFree(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hands-free loop kept retrying a broken device")
	}

	assert.Equal(t, handsFreeMaxFailures, capture.Calls())

	var last string
	for {
		msg, ok := loop.responses.TryPop()
		if !ok {
			break
		}
		last = msg
	}
	assert.Equal(t, "Voice input keeps failing. Hands-free listening stopped.", last)
}

func TestInput_HandsFreeResetsFailuresAfterTimeout(t *testing.T) {
	in, _, capture := brokenMic()
	in.retry = time.Millisecond

	fail := captureStep{err: errors.New("device unplugged")}
	timeout := captureStep{err: speech.ErrWaitTimeout}
	capture.steps = []captureStep{fail, fail, fail, fail, timeout, fail, fail, fail, fail, fail}

	done := make(chan struct{})
	go func() {
		in.HandsFree(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hands-free loop did not stop")
	}
	assert.Equal(t, 10, capture.Calls())
}

func TestInput_HandsFreeStopsWithContext(t *testing.T) {
	in, _, _, _, _ := newInput(ModeVoice, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		in.HandsFree(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hands-free loop did not stop")
	}
}
