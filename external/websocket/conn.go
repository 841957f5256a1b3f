package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/kikitori/internal/session"
	gws "github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// Conn adapts a gorilla connection to session.Connection. Writes are
// serialized; reads must come from a single goroutine.
type Conn struct {
	ws           *gws.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ session.Connection = (*Conn)(nil)

func NewConn(ws *gws.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// ReadMessage returns the next text or binary frame. Client disconnects are
// reported as errors wrapping session.ErrConnectionClosed.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if isDisconnect(err) {
			return nil, fmt.Errorf("%w: %v", session.ErrConnectionClosed, err)
		}
		return nil, err
	}
	return data, nil
}

func (c *Conn) WriteMessage(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(gws.TextMessage, data); err != nil {
		return fmt.Errorf("write websocket message: %w", err)
	}
	return nil
}

// Close sends a normal closure frame when possible and releases the socket.
// It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
		c.writeMu.Lock()
		_ = c.ws.WriteControl(gws.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func isDisconnect(err error) bool {
	if gws.IsCloseError(err,
		gws.CloseNormalClosure,
		gws.CloseGoingAway,
		gws.CloseNoStatusReceived,
		gws.CloseAbnormalClosure,
	) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}

// NewUpgrader returns an upgrader that accepts the given origins. A "*" entry
// accepts any origin.
func NewUpgrader(allowedOrigins []string) *gws.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	anyOrigin := false
	for _, o := range allowedOrigins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = struct{}{}
	}
	return &gws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if anyOrigin {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}
