// Package coordinator implements the outbound snapshot publisher and the
// inbound command inbox: the agent's two boundary adapters to the
// coordinator and to peer agents.
package coordinator

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/netobserve/linkwatch/faultlog"
	"github.com/netobserve/linkwatch/printer"
	"github.com/netobserve/linkwatch/wire"
)

// requestTimeout is the deadline every coordinator RPC carries.
const requestTimeout = 5 * time.Second

// Client publishes snapshots to the coordinator over the length-prefixed
// wire protocol. One Client per agent process; its callers are the boot-time
// hello in cmd/agent and, after that, the publisher task.
type Client struct {
	addr string

	mu   sync.Mutex
	conn net.Conn
}

// NewClient builds a Client targeting the coordinator's server.ip:server.port.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// Publish sends one framed message, reconnecting first if needed. On any
// failure the message is dropped and the coordinator-drop counter is
// incremented; the caller retries at the next tick. There is no backoff
// beyond the tick interval.
func (c *Client) Publish(ctx context.Context, msg wire.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dialLocked(ctx); err != nil {
			faultlog.Global.IncCoordinatorDrop()
			return err
		}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(requestTimeout)
	}
	_ = c.conn.SetWriteDeadline(deadline)

	if err := wire.WriteMessage(c.conn, msg); err != nil {
		c.conn.Close()
		c.conn = nil
		faultlog.Global.IncCoordinatorDrop()
		return errors.Wrap(err, "failed to publish snapshot to coordinator")
	}
	return nil
}

func (c *Client) dialLocked(ctx context.Context) error {
	dialer := net.Dialer{Timeout: requestTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		printer.V(2).Debugf("failed to dial coordinator at %s: %v\n", c.addr, err)
		return errors.Wrapf(err, "failed to dial coordinator at %s", c.addr)
	}
	c.conn = conn
	return nil
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// PublishWithTimeout is a convenience wrapper applying the standard
// per-request deadline.
func (c *Client) PublishWithTimeout(msg wire.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return c.Publish(ctx, msg)
}
