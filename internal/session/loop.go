// Package session runs the assistant: a background worker that dispatches
// queued commands and a foreground loop that presents what comes back.
package session

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"marco/internal/dispatch"
	"marco/internal/history"
	"marco/internal/queue"
)

// Processed is the worker's acknowledgement that a command finished.
const Processed = "Command processed."

type Dispatcher interface {
	Dispatch(ctx context.Context, command string) dispatch.Result
}

type Voice interface {
	Speak(text string)
}

type Display interface {
	SetStatus(text string)
	Append(line string)
	ShowHistory(turns []history.Turn)
}

type HistoryReader interface {
	Turns() []history.Turn
}

type Command struct {
	ID     string
	Text   string
	Source string
	At     time.Time
}

type Options struct {
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

func DefaultOptions() Options {
	return Options{
		PollInterval: 100 * time.Millisecond,
		WaitTimeout:  time.Second,
	}
}

type Loop struct {
	dispatcher Dispatcher
	voice      Voice
	display    Display
	history    HistoryReader
	opts       Options

	commands  *queue.Queue[Command]
	responses *queue.Queue[string]
	refresh   chan struct{}

	done     chan struct{}
	doneOnce sync.Once
}

func NewLoop(d Dispatcher, voice Voice, display Display, h HistoryReader, opts Options) *Loop {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultOptions().WaitTimeout
	}

	return &Loop{
		dispatcher: d,
		voice:      voice,
		display:    display,
		history:    h,
		opts:       opts,
		commands:   queue.New[Command](),
		responses:  queue.New[string](),
		refresh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Submit queues a command for the worker and returns its ID.
func (l *Loop) Submit(text, source string) string {
	cmd := Command{
		ID:     uuid.NewString(),
		Text:   text,
		Source: source,
		At:     time.Now(),
	}
	l.commands.Push(cmd)
	log.Debug("Command queued", "id", cmd.ID, "source", source, "pending", l.commands.Len())
	return cmd.ID
}

// Notify queues a message for the presentation loop.
func (l *Loop) Notify(msg string) {
	l.responses.Push(msg)
}

// Done is closed once a command asked the session to end.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run starts the worker and presents responses on the calling goroutine
// until a command terminates the session or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.display.ShowHistory(l.history.Turns())
	l.display.SetStatus("Ready.")

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.work(ctx)
	}()

	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			log.Info("Session terminated")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-l.refresh:
			l.display.ShowHistory(l.history.Turns())
		case <-ticker.C:
			l.present()
		}
	}
}

func (l *Loop) present() {
	msg, ok := l.responses.TryPop()
	if !ok {
		return
	}

	if msg == Processed {
		l.display.SetStatus("Ready.")
		return
	}

	l.display.SetStatus(msg)
	l.voice.Speak(msg)
}

func (l *Loop) work(ctx context.Context) {
	for {
		cmd, err := l.commands.Pop(ctx, l.opts.WaitTimeout)
		if errors.Is(err, queue.ErrTimeout) {
			continue
		}
		if err != nil {
			return
		}

		if l.handle(ctx, cmd) {
			l.terminate()
			return
		}
	}
}

// handle reports whether the session should end.
func (l *Loop) handle(ctx context.Context, cmd Command) (terminate bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("Worker recovered", "id", cmd.ID, "panic", fmt.Sprint(p))
			l.responses.Push(fmt.Sprintf("Error in processing thread: %v", p))
			terminate = false
		}
	}()

	start := time.Now()
	res := l.dispatcher.Dispatch(ctx, cmd.Text)
	log.Info("Command done", "id", cmd.ID, "status", res.Status, "terminate", res.Terminate,
		"took", time.Since(start), "waited", start.Sub(cmd.At))

	if res.Terminate {
		return true
	}

	select {
	case l.refresh <- struct{}{}:
	default:
	}
	l.responses.Push(Processed)
	return false
}

func (l *Loop) terminate() {
	l.doneOnce.Do(func() { close(l.done) })
}
