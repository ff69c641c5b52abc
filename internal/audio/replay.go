package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"marco/internal/speech"
	"marco/pkg/pcm"
)

// Replay stands in for the microphone: every capture returns the next
// recording from a directory, in name order. Once the recordings run out it
// behaves like a silent room.
type Replay struct {
	mu    sync.Mutex
	files []string
}

func NewReplay(dir string) (*Replay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)

	log.Info("Replaying recordings", "dir", dir, "count", len(files))
	return &Replay{files: files}, nil
}

func (r *Replay) next() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.files) == 0 {
		return "", false
	}
	f := r.files[0]
	r.files = r.files[1:]
	return f, true
}

func (r *Replay) Capture(ctx context.Context, w speech.Window) ([]float32, error) {
	for {
		path, ok := r.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(w.Timeout):
				return nil, speech.ErrWaitTimeout
			}
		}

		limit := int(w.PhraseLimit.Seconds() * pcm.Rate)
		x, err := DecodeFile(path, limit)
		if err != nil {
			log.Warn("Skipping recording", "path", path, "err", err)
			continue
		}

		log.Debug("Replayed recording", "path", path, "samples", len(x))
		return x, nil
	}
}
