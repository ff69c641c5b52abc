package session

import (
	"context"
	"sync"

	"marco/internal/dispatch"
	"marco/internal/history"
	"marco/internal/speech"
)

type fakeDisplay struct {
	mu        sync.Mutex
	statuses  []string
	lines     []string
	refreshes int
}

func (d *fakeDisplay) SetStatus(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, text)
}

func (d *fakeDisplay) Append(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, line)
}

func (d *fakeDisplay) ShowHistory([]history.Turn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshes++
}

func (d *fakeDisplay) Statuses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.statuses...)
}

func (d *fakeDisplay) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

func (d *fakeDisplay) Refreshes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshes
}

func (d *fakeDisplay) LastStatus() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.statuses) == 0 {
		return ""
	}
	return d.statuses[len(d.statuses)-1]
}

type fakeVoice struct {
	mu   sync.Mutex
	said []string
}

func (v *fakeVoice) Speak(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.said = append(v.said, text)
}

func (v *fakeVoice) Said() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.said...)
}

type fakeDispatcher struct {
	mu   sync.Mutex
	seen []string
	fn   func(cmd string) dispatch.Result
}

func (d *fakeDispatcher) Dispatch(_ context.Context, cmd string) dispatch.Result {
	d.mu.Lock()
	d.seen = append(d.seen, cmd)
	d.mu.Unlock()

	if d.fn != nil {
		return d.fn(cmd)
	}
	if cmd == "exit" {
		return dispatch.Terminate()
	}
	return dispatch.Continue("ok")
}

func (d *fakeDispatcher) Seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.seen...)
}

type fakeSink struct {
	mu        sync.Mutex
	submitted []string
	notified  []string
}

func (s *fakeSink) Submit(text, _ string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, text)
	return "id"
}

func (s *fakeSink) Notify(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, msg)
}

type captureStep struct {
	pcm []float32
	err error
}

// fakeCapture replays steps in order; block, when set, holds every capture
// until it is closed.
type fakeCapture struct {
	mu      sync.Mutex
	steps   []captureStep
	windows []speech.Window
	block   chan struct{}
}

func (c *fakeCapture) Capture(ctx context.Context, w speech.Window) ([]float32, error) {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows = append(c.windows, w)
	if len(c.steps) == 0 {
		return nil, speech.ErrWaitTimeout
	}
	step := c.steps[0]
	c.steps = c.steps[1:]
	return step.pcm, step.err
}

func (c *fakeCapture) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// fakeRecognizer hands out transcripts in order.
type fakeRecognizer struct {
	mu    sync.Mutex
	texts []string
}

func (r *fakeRecognizer) Recognize(context.Context, []float32) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	t := r.texts[0]
	r.texts = r.texts[1:]
	return t
}

type fakeChime struct{ n int }

func (c *fakeChime) Chime() { c.n++ }

type fakeDucker struct{ ducks, restores int }

func (d *fakeDucker) Duck(context.Context) error    { d.ducks++; return nil }
func (d *fakeDucker) Restore(context.Context) error { d.restores++; return nil }
