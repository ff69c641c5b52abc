package audio

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/gordonklaus/portaudio"

	"marco/internal/speech"
	"marco/pkg/pcm"
)

// 20ms at 16kHz
const frameSize = 320

// Recorder captures single phrases from the default input device.
type Recorder struct {
	seg pcm.SegmentConfig
}

func NewRecorder() *Recorder {
	return &Recorder{seg: pcm.DefaultSegmentConfig()}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Capture calibrates against ambient noise, waits for a phrase to start and
// records it until a pause or the phrase limit. It returns
// speech.ErrWaitTimeout when nothing was said inside w.Timeout.
func (r *Recorder) Capture(ctx context.Context, w speech.Window) ([]float32, error) {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, pcm.Rate, len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start input: %w", err)
	}
	defer stream.Stop()

	cfg := r.seg
	cfg.Timeout = w.Timeout
	cfg.PhraseLimit = w.PhraseLimit
	seg := pcm.NewSegmenter(cfg)

	calib := int(w.Calibrate / cfg.Frame)
	for range calib {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		seg.Calibrate(buf)
	}
	log.Debug("Calibrated", "threshold", seg.Threshold())

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}

		switch seg.Feed(buf) {
		case pcm.TimedOut:
			return nil, speech.ErrWaitTimeout
		case pcm.Done:
			out := seg.Samples()
			log.Debug("Recorded phrase", "samples", len(out), "duration", seg.Duration())
			return out, nil
		}
	}
}
