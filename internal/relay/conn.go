// Package relay serves device websocket connections and broadcasts
// periodic metrics and feedback to them.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/seandooa/cg4002-capstone-code/internal/protocol"
)

const writeWait = 10 * time.Second

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrSlowConsumer = errors.New("send queue full")
)

// Conn is one device websocket. Outbound frames go through a buffered
// queue drained by a single writer goroutine, so Send never blocks.
type Conn struct {
	id     string
	remote string
	ws     *websocket.Conn
	out    chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
	log    *slog.Logger
}

func newConn(ws *websocket.Conn, remote string, buffer int, log *slog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		remote: remote,
		ws:     ws,
		out:    make(chan []byte, buffer),
		done:   make(chan struct{}),
		log:    log.With("conn_id", id, "remote", remote),
	}
}

// ID returns the connection's random identifier.
func (c *Conn) ID() string { return c.id }

// Open reports whether frames can still be queued.
func (c *Conn) Open() bool { return !c.closed.Load() }

// Send encodes msg and queues it. It fails with ErrSlowConsumer instead of
// waiting when the queue is full.
func (c *Conn) Send(msg protocol.Outbound) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSlowConsumer
	}
}

func (c *Conn) writeLoop(ctx context.Context) {
	defer c.close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}
		}
	}
}

func (c *Conn) close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}
