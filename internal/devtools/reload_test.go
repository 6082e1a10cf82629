package devtools

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/tabreload/internal/domain"
)

// fakePeer is a minimal CDP page endpoint that tracks open sessions.
type fakePeer struct {
	server   *httptest.Server
	open     atomic.Int32
	sessions atomic.Int32
	received chan []byte
}

func newFakePeer(t *testing.T, onCommand func(conn *websocket.Conn, data []byte)) *fakePeer {
	t.Helper()
	p := &fakePeer{received: make(chan []byte, 8)}
	upgrader := websocket.Upgrader{}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.open.Add(1)
		p.sessions.Add(1)
		defer p.open.Add(-1)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			p.received <- data
			if onCommand != nil {
				onCommand(conn, data)
			}
		}
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePeer) target() domain.DebugTarget {
	return domain.DebugTarget{
		URL:                  "http://localhost:5173/",
		WebSocketDebuggerURL: "ws" + strings.TrimPrefix(p.server.URL, "http") + "/devtools/page/1",
	}
}

func (p *fakePeer) requireClosed(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return p.open.Load() == 0 }, 2*time.Second, 10*time.Millisecond, "session left open")
}

func reply(body string) func(*websocket.Conn, []byte) {
	return func(conn *websocket.Conn, _ []byte) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(body))
	}
}

func TestReloadAcknowledged(t *testing.T) {
	peer := newFakePeer(t, reply(`{"id":1,"result":{}}`))
	rec := &domain.Recorder{}

	c := NewCommander(Config{}, WithReporter(rec))
	result, err := c.Reload(domain.WithAttemptID(context.Background(), "attempt-1"), peer.target())

	require.NoError(t, err)
	assert.Equal(t, OutcomeAcknowledged, result.Outcome)
	assert.Empty(t, result.ProtocolError)

	sent := <-peer.received
	assert.JSONEq(t, `{"id":1,"method":"Page.reload","params":{"ignoreCache":true}}`, string(sent))

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventReloadSent, events[0].Type)
	assert.Equal(t, "attempt-1", events[0].AttemptID)

	peer.requireClosed(t)
	assert.EqualValues(t, 1, peer.sessions.Load())
}

func TestReloadIgnoresUnrelatedMessages(t *testing.T) {
	peer := newFakePeer(t, func(conn *websocket.Conn, _ []byte) {
		for _, msg := range []string{`not json`, `{"method":"Page.frameNavigated","params":{}}`, `{"id":2,"result":{}}`, `[1,2]`, `{"id":1}`} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}
	})

	result, err := NewCommander(Config{}).Reload(context.Background(), peer.target())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAcknowledged, result.Outcome)
	peer.requireClosed(t)
}

func TestReloadProtocolError(t *testing.T) {
	peer := newFakePeer(t, reply(`{"id":1,"error":{"code":-32000,"message":"Not allowed"}}`))

	result, err := NewCommander(Config{}).Reload(context.Background(), peer.target())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAcknowledged, result.Outcome)
	assert.Contains(t, result.ProtocolError, "Not allowed")
	peer.requireClosed(t)
}

func TestReloadAckTimeoutIsSoftSuccess(t *testing.T) {
	peer := newFakePeer(t, nil)
	mock := clock.NewMock()

	c := NewCommander(Config{CommandAckTimeout: 5 * time.Second}, WithClock(mock))

	type outcome struct {
		result ReloadResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := c.Reload(context.Background(), peer.target())
		done <- outcome{result, err}
	}()

	select {
	case <-peer.received:
	case <-time.After(2 * time.Second):
		t.Fatal("command never arrived")
	}
	mock.Add(5 * time.Second)

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, OutcomeUnconfirmed, got.result.Outcome)
		assert.Equal(t, 5*time.Second, got.result.Elapsed)
	case <-time.After(2 * time.Second):
		t.Fatal("Reload did not return after ack timeout")
	}
	peer.requireClosed(t)
}

func TestReloadPeerClose(t *testing.T) {
	peer := newFakePeer(t, func(conn *websocket.Conn, _ []byte) {
		_ = conn.Close()
	})

	result, err := NewCommander(Config{}).Reload(context.Background(), peer.target())
	require.NoError(t, err)
	assert.Equal(t, OutcomePeerClosed, result.Outcome)
	peer.requireClosed(t)
}

func TestReloadOpenTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var abandoned atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 1024)
				for {
					if _, err := conn.Read(buf); err != nil {
						abandoned.Add(1)
						return
					}
				}
			}()
		}
	}()

	c := NewCommander(Config{SocketOpenTimeout: 100 * time.Millisecond})
	start := time.Now()
	_, err = c.Reload(context.Background(), domain.DebugTarget{URL: "http://localhost:5173/", WebSocketDebuggerURL: "ws://" + ln.Addr().String() + "/devtools/page/1"})

	require.ErrorIs(t, err, ErrSocketTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.Eventually(t, func() bool { return abandoned.Load() == 1 }, 2*time.Second, 10*time.Millisecond, "socket not released")
}

func TestReloadHandshakeError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewCommander(Config{}).Reload(context.Background(), domain.DebugTarget{
		URL:                  "http://localhost:5173/",
		WebSocketDebuggerURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	require.ErrorIs(t, err, ErrSocket)
}

func TestReloadWithoutSocketURL(t *testing.T) {
	_, err := NewCommander(Config{}).Reload(context.Background(), domain.DebugTarget{URL: "http://localhost:5173/"})
	require.ErrorIs(t, err, ErrTargetNoSocket)
}

func TestReloadCancelledWhileWaiting(t *testing.T) {
	peer := newFakePeer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := NewCommander(Config{}).Reload(ctx, peer.target())
		done <- err
	}()
	<-peer.received
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Reload ignored cancellation")
	}
	peer.requireClosed(t)
}
