package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// envelope is the wire format: the channel routes the message on the relay
// server, the payload is the translation itself.
type envelope struct {
	Channel string  `json:"channel"`
	Message Message `json:"message"`
}

// Client is a WebSocket-backed [Publisher]. It holds one connection to the
// relay server and re-dials lazily after a write failure.
//
// Client is safe for concurrent use.
type Client struct {
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

var _ Publisher = (*Client)(nil)

// Dial connects to the relay server at url (a ws:// or wss:// endpoint).
// A nil logger falls back to slog.Default.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if url == "" {
		return nil, errors.New("relay: url must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", url, err)
	}
	return &Client{url: url, logger: logger, conn: conn}, nil
}

// Publish implements [Publisher]. On a write failure it re-dials once and
// retries; a second failure is returned to the caller.
func (c *Client) Publish(ctx context.Context, channel string, msg Message) error {
	payload, err := json.Marshal(envelope{Channel: channel, Message: msg})
	if err != nil {
		return fmt.Errorf("relay: marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("relay: client is closed")
	}

	if c.conn != nil {
		if err := c.conn.Write(ctx, websocket.MessageText, payload); err == nil {
			return nil
		} else {
			c.logger.Warn("relay write failed, reconnecting", "error", err)
			c.conn.Close(websocket.StatusAbnormalClosure, "write failed")
			c.conn = nil
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("relay: redial %s: %w", c.url, err)
	}
	c.conn = conn

	if err := c.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("relay: publish to %s: %w", channel, err)
	}
	return nil
}

// Listen reads inbound envelopes and delivers the messages addressed to
// channel until ctx is cancelled or the connection drops. A joined
// participant uses this to receive the counterpart's translations.
//
// The returned channel is closed when the read loop exits; inspect the error
// sent on errs (buffered, at most one) to distinguish cancellation from a
// transport failure.
func (c *Client) Listen(ctx context.Context, channel string) (<-chan Message, <-chan error) {
	out := make(chan Message, 8)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	go func() {
		defer close(out)
		if conn == nil {
			errs <- errors.New("relay: client is closed")
			return
		}
		for {
			_, payload, err := conn.Read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("relay: read: %w", err)
				}
				return
			}
			var env envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				c.logger.Warn("relay: dropping malformed message", "error", err)
				continue
			}
			if env.Channel != channel {
				continue
			}
			select {
			case out <- env.Message:
			default:
				// A slow consumer must not stall the socket.
				c.logger.Warn("relay: dropping message, receiver is behind")
			}
		}
	}()
	return out, errs
}

// Close implements [Publisher]. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		err := c.conn.Close(websocket.StatusNormalClosure, "done")
		c.conn = nil
		return err
	}
	return nil
}
