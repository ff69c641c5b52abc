package audio

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os/exec"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"marco/internal/music"
)

// StreamPlayer plays remote audio by piping it through ffmpeg as mp3 and
// decoding on the shared speaker. One track at a time.
type StreamPlayer struct {
	ffmpeg string

	mu      sync.Mutex
	cmd     *exec.Cmd
	ctrl    *beep.Ctrl
	stream  beep.StreamSeekCloser
	playing bool
}

func NewStreamPlayer(ffmpeg string) *StreamPlayer {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &StreamPlayer{ffmpeg: ffmpeg}
}

func (p *StreamPlayer) Play(ctx context.Context, t music.Track) error {
	if err := InitSpeaker(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	if err := p.Stop(); err != nil {
		log.Warn("Failed to stop previous track", "err", err)
	}

	// the track outlives the request that started it
	cmd := exec.CommandContext(context.WithoutCancel(ctx), p.ffmpeg,
		"-loglevel", "error",
		"-reconnect", "1", "-reconnect_streamed", "1",
		"-i", t.StreamURL,
		"-vn", "-f", "mp3", "pipe:1",
	)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	stream, format, err := mp3.Decode(out)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("decode stream: %w", err)
	}

	ctrl := &beep.Ctrl{Streamer: toOutput(stream, format.SampleRate)}

	p.mu.Lock()
	p.cmd, p.ctrl, p.stream, p.playing = cmd, ctrl, stream, true
	p.mu.Unlock()

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		p.finished(ctrl)
	})))

	log.Info("Playback started", "title", t.Title)
	return nil
}

// finished runs on the speaker goroutine when a track ends by itself.
func (p *StreamPlayer) finished(ctrl *beep.Ctrl) {
	p.mu.Lock()
	if p.ctrl != ctrl {
		p.mu.Unlock()
		return
	}
	cmd, stream := p.cmd, p.stream
	p.cmd, p.ctrl, p.stream, p.playing = nil, nil, nil, false
	p.mu.Unlock()

	go func() {
		_ = stream.Close()
		_ = cmd.Wait()
	}()
}

func (p *StreamPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Stop silences the current track and reaps ffmpeg. Stopping an idle player
// is not an error.
func (p *StreamPlayer) Stop() error {
	p.mu.Lock()
	cmd, ctrl, stream := p.cmd, p.ctrl, p.stream
	p.cmd, p.ctrl, p.stream, p.playing = nil, nil, nil, false
	p.mu.Unlock()

	if ctrl == nil {
		return nil
	}

	speaker.Lock()
	ctrl.Streamer = nil
	speaker.Unlock()

	var errs []error
	if err := stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	// killed ffmpeg always exits non-zero
	_ = cmd.Wait()

	return errors.Join(errs...)
}
