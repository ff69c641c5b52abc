// Package bus connects the assistant to a websocket message hub: commands
// arrive from other shards, status and replies go back out.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"marco/internal/history"
)

const (
	KindCommand = "command"
	KindStatus  = "status"
	KindLine    = "line"
	KindReply   = "reply"
)

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// Submitter receives commands read from the bus.
type Submitter interface {
	Submit(text, source string) string
}

type Config struct {
	URL  string
	Name string
	// Reconnect is the pause between redial attempts.
	Reconnect time.Duration
}

// Bridge is safe for concurrent use. While the hub is unreachable outgoing
// messages are dropped.
type Bridge struct {
	cfg Config

	mu    sync.Mutex
	conn  *ws.Conn
	shown int
}

func Dial(ctx context.Context, cfg Config) (*Bridge, error) {
	if cfg.Name == "" {
		cfg.Name = "marco"
	}
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = 2 * time.Second
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus %s: %w", cfg.URL, err)
	}
	log.Info("Connected to bus", "url", cfg.URL)

	return &Bridge{cfg: cfg, conn: conn}, nil
}

// Run reads the bus until ctx ends, handing commands addressed to this shard
// (or to nobody in particular) to s. Dropped connections are redialed.
func (b *Bridge) Run(ctx context.Context, s Submitter) error {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.conn != nil {
			b.conn.Close()
		}
	})
	defer stop()

	for {
		conn := b.current()
		if conn == nil {
			if err := b.redial(ctx); err != nil {
				return err
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Bus connection lost", "err", err)
			b.drop(conn)
			continue
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("Bad bus message", "msg", string(data), "err", err)
			continue
		}
		if m.To != "" && m.To != b.cfg.Name {
			continue
		}
		if m.Kind != KindCommand || m.Content == "" {
			log.Debug("Ignoring bus message", "kind", m.Kind, "from", m.From)
			continue
		}

		id := s.Submit(m.Content, "bus:"+m.From)
		log.Info("Bus command queued", "id", id, "from", m.From)
	}
}

func (b *Bridge) current() *ws.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *Bridge) drop(conn *ws.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == conn {
		b.conn.Close()
		b.conn = nil
	}
}

func (b *Bridge) redial(ctx context.Context) error {
	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, b.cfg.URL, nil)
		if err == nil {
			b.mu.Lock()
			b.conn = conn
			b.mu.Unlock()
			log.Info("Reconnected to bus", "url", b.cfg.URL)
			return nil
		}
		log.Debug("Bus redial failed", "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.Reconnect):
		}
	}
}

func (b *Bridge) send(kind, content string) {
	data, err := json.Marshal(Message{From: b.cfg.Name, Kind: kind, Content: content})
	if err != nil {
		log.Error("Failed to encode bus message", "err", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return
	}
	if err := b.conn.WriteMessage(ws.TextMessage, data); err != nil {
		log.Warn("Failed to write to bus", "err", err)
	}
}

func (b *Bridge) SetStatus(text string) { b.send(KindStatus, text) }

func (b *Bridge) Append(line string) { b.send(KindLine, line) }

// ShowHistory publishes assistant turns added since the last call.
func (b *Bridge) ShowHistory(turns []history.Turn) {
	b.mu.Lock()
	from := min(b.shown, len(turns))
	b.shown = len(turns)
	b.mu.Unlock()

	for _, t := range turns[from:] {
		if t.Role == history.RoleAssistant {
			b.send(KindReply, t.Content)
		}
	}
}

func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	err = errors.Join(err, b.conn.Close())
	b.conn = nil
	return err
}
