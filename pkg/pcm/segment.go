package pcm

import "time"

type Verdict int

const (
	// Waiting means no phrase has started yet.
	Waiting Verdict = iota
	Recording
	// Done means the phrase ended on a pause or hit its length limit.
	Done
	TimedOut
)

type SegmentConfig struct {
	Frame       time.Duration
	Timeout     time.Duration
	PhraseLimit time.Duration
	// Pause is how much trailing quiet ends a phrase.
	Pause time.Duration
	// MinThreshold is the floor for the speech energy threshold.
	MinThreshold float64
	// Ratio scales ambient energy into the threshold after calibration.
	Ratio float64
}

func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		Frame:        20 * time.Millisecond,
		Pause:        800 * time.Millisecond,
		MinThreshold: 0.015,
		Ratio:        1.5,
	}
}

// Segmenter finds one phrase in a stream of fixed-size frames: it waits up to
// Timeout for energy above the threshold, then records until Pause worth of
// quiet frames or PhraseLimit.
type Segmenter struct {
	cfg       SegmentConfig
	threshold float64

	ambient   float64
	ambientN  int
	waited    int
	quiet     int
	recording bool
	out       []float32
}

func NewSegmenter(cfg SegmentConfig) *Segmenter {
	if cfg.Frame <= 0 {
		cfg.Frame = 20 * time.Millisecond
	}
	if cfg.Ratio <= 0 {
		cfg.Ratio = 1.5
	}
	return &Segmenter{cfg: cfg, threshold: cfg.MinThreshold}
}

// Calibrate folds an ambient-noise frame into the threshold.
func (s *Segmenter) Calibrate(frame []float32) {
	s.ambient += RMS(frame)
	s.ambientN++
	s.threshold = max(s.cfg.MinThreshold, s.ambient/float64(s.ambientN)*s.cfg.Ratio)
}

func (s *Segmenter) Threshold() float64 {
	return s.threshold
}

// Feed consumes one frame. The frame is copied when kept.
func (s *Segmenter) Feed(frame []float32) Verdict {
	loud := RMS(frame) > s.threshold

	if !s.recording {
		if !loud {
			s.waited++
			if s.cfg.Timeout > 0 && s.elapsed(s.waited) >= s.cfg.Timeout {
				return TimedOut
			}
			return Waiting
		}
		s.recording = true
	}

	s.out = append(s.out, frame...)
	if loud {
		s.quiet = 0
	} else {
		s.quiet++
	}

	if s.cfg.Pause > 0 && s.elapsed(s.quiet) >= s.cfg.Pause {
		return Done
	}
	if s.cfg.PhraseLimit > 0 && s.Duration() >= s.cfg.PhraseLimit {
		return Done
	}
	return Recording
}

// Samples returns what was recorded so far.
func (s *Segmenter) Samples() []float32 {
	return s.out
}

// Duration of the recorded phrase, assuming frames at Rate.
func (s *Segmenter) Duration() time.Duration {
	return time.Duration(len(s.out)) * time.Second / Rate
}

func (s *Segmenter) elapsed(frames int) time.Duration {
	return time.Duration(frames) * s.cfg.Frame
}
