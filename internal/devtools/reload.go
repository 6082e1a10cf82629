package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/gorilla/websocket"
	"github.com/vburojevic/tabreload/internal/domain"
	"go.uber.org/zap"
)

// Outcome is how a reload attempt concluded without failing
type Outcome string

const (
	// OutcomeAcknowledged means the browser answered the command
	OutcomeAcknowledged Outcome = "acknowledged"
	// OutcomePeerClosed means the browser closed the session before answering
	OutcomePeerClosed Outcome = "peer_closed"
	// OutcomeUnconfirmed means no answer arrived within CommandAckTimeout.
	// The reload may still have happened.
	OutcomeUnconfirmed Outcome = "unconfirmed"
)

// ReloadResult is returned by a reload that did not fail
type ReloadResult struct {
	Outcome       Outcome
	ProtocolError string
	Elapsed       time.Duration
}

// Each attempt owns its session, so a fixed id is unique within it.
const reloadCommandID int64 = 1

type reloadCommand struct {
	ID     int64              `json:"id"`
	Method string             `json:"method"`
	Params *page.ReloadParams `json:"params"`
}

type commandReply struct {
	ID    int64 `json:"id"`
	Error *struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newReloadCommand() reloadCommand {
	return reloadCommand{
		ID:     reloadCommandID,
		Method: string(page.CommandReload),
		Params: page.Reload().WithIgnoreCache(true),
	}
}

// Commander sends a cache-bypassing Page.reload to one target
type Commander struct {
	cfg    Config
	dialer *websocket.Dialer
	opts   options
}

// NewCommander creates a commander with compression disabled
func NewCommander(cfg Config, opts ...Option) *Commander {
	cfg = cfg.WithDefaults()
	return &Commander{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  cfg.SocketOpenTimeout,
			EnableCompression: false,
		},
		opts: buildOptions(opts),
	}
}

// Reload opens a session to the target, sends the command and waits for an
// acknowledgment, a peer close or the ack timeout. The session is closed
// before Reload returns on every path.
func (c *Commander) Reload(ctx context.Context, target domain.DebugTarget) (ReloadResult, error) {
	if target.WebSocketDebuggerURL == "" {
		return ReloadResult{}, fmt.Errorf("%w: %s", ErrTargetNoSocket, target.URL)
	}
	logger := c.opts.logger.With(zap.String("ws", target.WebSocketDebuggerURL))
	clk := c.opts.clock
	start := clk.Now()

	// The dial deadline becomes a socket deadline, so it must be wall time.
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.SocketOpenTimeout)
	conn, _, err := c.dialer.DialContext(dialCtx, target.WebSocketDebuggerURL, nil)
	timedOut := errors.Is(dialCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ReloadResult{}, ctx.Err()
		}
		if timedOut || isTimeout(err) {
			return ReloadResult{}, fmt.Errorf("%w after %s", ErrSocketTimeout, c.cfg.SocketOpenTimeout)
		}
		return ReloadResult{}, fmt.Errorf("%w: %v", ErrSocket, err)
	}

	replies := make(chan commandReply, 1)
	closed := make(chan error, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				closed <- err
				return
			}
			var reply commandReply
			if err := json.Unmarshal(data, &reply); err != nil {
				continue
			}
			if reply.ID == reloadCommandID {
				replies <- reply
				return
			}
		}
	}()
	shutdown := func(graceful bool) {
		if graceful {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		_ = conn.Close()
		<-readerDone
	}

	// Armed before sending so an immediate reply can never race the timer.
	ack := clk.Timer(c.cfg.CommandAckTimeout)
	defer ack.Stop()

	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.SocketOpenTimeout))
	if err := conn.WriteJSON(newReloadCommand()); err != nil {
		shutdown(false)
		return ReloadResult{}, fmt.Errorf("%w: send Page.reload: %v", ErrSocket, err)
	}
	ev := domain.NewEvent(domain.EventReloadSent, "Page.reload sent")
	ev.URL = target.URL
	c.opts.report(ctx, ev)

	var result ReloadResult
	select {
	case reply := <-replies:
		result.Outcome = OutcomeAcknowledged
		if reply.Error != nil {
			result.ProtocolError = fmt.Sprintf("%d: %s", reply.Error.Code, reply.Error.Message)
		}
		shutdown(true)
	case err := <-closed:
		logger.Debug("session closed by peer", zap.Error(err))
		result.Outcome = OutcomePeerClosed
		shutdown(false)
	case <-ack.C:
		logger.Debug("no acknowledgment", zap.Duration("timeout", c.cfg.CommandAckTimeout))
		result.Outcome = OutcomeUnconfirmed
		shutdown(true)
	case <-ctx.Done():
		shutdown(true)
		return ReloadResult{}, ctx.Err()
	}
	result.Elapsed = clk.Since(start)
	return result, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
