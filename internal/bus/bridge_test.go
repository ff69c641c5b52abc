package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marco/internal/history"
)

// hub accepts connections and hands each one to the test.
type hub struct {
	srv   *httptest.Server
	conns chan *ws.Conn
}

func newHub(t *testing.T) *hub {
	t.Helper()

	h := &hub{conns: make(chan *ws.Conn, 4)}
	up := ws.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- c
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *hub) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *hub) accept(t *testing.T) *ws.Conn {
	t.Helper()
	select {
	case c := <-h.conns:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection")
		return nil
	}
}

func readMsg(t *testing.T, c *ws.Conn) Message {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, c.ReadJSON(&m))
	return m
}

type submitter struct {
	mu   sync.Mutex
	got  []string
	from []string
}

func (s *submitter) Submit(text, source string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, text)
	s.from = append(s.from, source)
	return "id"
}

func (s *submitter) Got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestBridge_CommandsIn(t *testing.T) {
	h := newHub(t)
	b, err := Dial(context.Background(), Config{URL: h.url()})
	require.NoError(t, err)
	peer := h.accept(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := &submitter{}
	errc := make(chan error, 1)
	go func() { errc <- b.Run(ctx, s) }()

	require.NoError(t, peer.WriteJSON(Message{From: "panel", To: "marco", Kind: KindCommand, Content: "open google"}))
	require.NoError(t, peer.WriteJSON(Message{From: "panel", To: "lamp", Kind: KindCommand, Content: "turn on"}))
	require.NoError(t, peer.WriteJSON(Message{From: "panel", Kind: KindStatus, Content: "ignored"}))
	require.NoError(t, peer.WriteJSON(Message{From: "panel", Kind: KindCommand, Content: "news"}))

	assert.Eventually(t, func() bool { return len(s.Got()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"open google", "news"}, s.Got())
	assert.Equal(t, "bus:panel", s.from[0])

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestBridge_StatusAndRepliesOut(t *testing.T) {
	h := newHub(t)
	b, err := Dial(context.Background(), Config{URL: h.url(), Name: "marco"})
	require.NoError(t, err)
	defer b.Close()
	peer := h.accept(t)

	b.SetStatus("Ready.")
	b.Append("You: who are you")
	b.ShowHistory([]history.Turn{
		{Role: history.RoleSystem, Content: "persona"},
		{Role: history.RoleUser, Content: "who are you"},
		{Role: history.RoleAssistant, Content: "I am Marco."},
	})

	assert.Equal(t, Message{From: "marco", Kind: KindStatus, Content: "Ready."}, readMsg(t, peer))
	assert.Equal(t, Message{From: "marco", Kind: KindLine, Content: "You: who are you"}, readMsg(t, peer))
	assert.Equal(t, Message{From: "marco", Kind: KindReply, Content: "I am Marco."}, readMsg(t, peer))
}

func TestBridge_Reconnects(t *testing.T) {
	h := newHub(t)
	b, err := Dial(context.Background(), Config{URL: h.url(), Reconnect: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &submitter{}
	go b.Run(ctx, s)

	first := h.accept(t)
	require.NoError(t, first.Close())

	second := h.accept(t)
	require.NoError(t, second.WriteJSON(Message{From: "panel", Kind: KindCommand, Content: "stop music"}))

	assert.Eventually(t, func() bool { return len(s.Got()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"stop music"}, s.Got())
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(context.Background(), Config{URL: "ws://127.0.0.1:1/ws"})
	assert.Error(t, err)
}
