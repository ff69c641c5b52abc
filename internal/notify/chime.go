// Package notify plays the short cue that confirms the wake word was heard.
package notify

import (
	log "log/slog"
	"math"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"

	"marco/internal/audio"
)

type Chime struct {
	path string
}

// NewChime plays the mp3 at path, or a short generated tone when path is
// empty or unreadable.
func NewChime(path string) *Chime {
	return &Chime{path: path}
}

func (c *Chime) Chime() {
	if err := c.play(); err != nil {
		log.Warn("Failed to play chime", "err", err)
	}
}

func (c *Chime) play() error {
	if c.path != "" {
		f, err := os.Open(c.path)
		if err == nil {
			stream, format, err := mp3.Decode(f)
			if err != nil {
				f.Close()
				return err
			}
			defer stream.Close()
			return audio.PlayWait(stream, format.SampleRate)
		}
		log.Debug("Chime file unavailable, using tone", "path", c.path, "err", err)
	}

	return audio.PlayWait(Tone(audio.OutputRate, 880, 150*time.Millisecond), audio.OutputRate)
}

// Tone is a sine wave with a short linear fade at both ends.
func Tone(rate beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := rate.N(d)
	fade := max(total/10, 1)
	pos := 0

	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := min(len(samples), total-pos)
		for i := range n {
			env := math.Min(1, float64(min(pos, total-pos))/float64(fade))
			v := 0.4 * env * math.Sin(2*math.Pi*freq*float64(pos)/float64(rate))
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return n, true
	})
}
