package audio

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// OutputRate is the rate the shared speaker runs at. Everything played is
// resampled to it.
const OutputRate beep.SampleRate = 44100

var (
	speakerOnce sync.Once
	speakerErr  error
)

// InitSpeaker opens the output device once per process.
func InitSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(OutputRate, OutputRate.N(time.Second/10))
	})
	return speakerErr
}

func toOutput(s beep.Streamer, rate beep.SampleRate) beep.Streamer {
	if rate == OutputRate {
		return s
	}
	return beep.Resample(4, rate, OutputRate, s)
}

// PlayWait plays s to the end and blocks until it finishes.
func PlayWait(s beep.Streamer, rate beep.SampleRate) error {
	if err := InitSpeaker(); err != nil {
		return err
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(toOutput(s, rate), beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
