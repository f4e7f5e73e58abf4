// Package remote is the controller side of the relay protocol: it pairs with a
// robot and streams touch samples the way the phone app does.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kome-inc/robocar/pkg/protocol"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("remote: client closed")

// Options selects the joystick geometry requested from the relay.
// Zero values use the relay defaults.
type Options struct {
	Platform string
	Radius   float64

	HandshakeTimeout time.Duration
}

// Client is a controller connection to one robot.
type Client struct {
	ws     *websocket.Conn
	wsMu   sync.Mutex
	closed bool
}

// ControllerURL builds the relay endpoint for robotID with opts as query parameters.
func ControllerURL(serverURL, robotID string, opts Options) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("remote: bad server url: %w", err)
	}
	u.Path = "/ws/controller/" + url.PathEscape(robotID)

	q := u.Query()
	if opts.Platform != "" {
		q.Set("platform", opts.Platform)
	}
	if opts.Radius != 0 {
		q.Set("radius", strconv.FormatFloat(opts.Radius, 'f', -1, 64))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects to the relay at serverURL (ws:// or wss://) and pairs with robotID.
func Dial(ctx context.Context, serverURL, robotID string, opts Options) (*Client, error) {
	target, err := ControllerURL(serverURL, robotID, opts)
	if err != nil {
		return nil, err
	}

	timeout := opts.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	ws, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", target, err)
	}
	return &Client{ws: ws}, nil
}

func (c *Client) send(msg *protocol.Message, err error) error {
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Touch sends one touch sample in raw platform coordinates.
func (c *Client) Touch(phase protocol.TouchPhase, x, y float64) error {
	return c.send(protocol.NewTouchMessage(phase, x, y))
}

// Press sends a face button press.
func (c *Client) Press(name string) error {
	return c.send(protocol.NewButtonMessage(name))
}

// Ping sends a keepalive; the relay answers with a pong.
func (c *Client) Ping() error {
	return c.send(protocol.NewPingMessage(""))
}

// Next reads the next message from the relay, waiting at most timeout.
// A zero timeout waits forever.
func (c *Client) Next(timeout time.Duration) (*protocol.Message, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.ParseMessage(data)
}

// NextOf reads messages until one of type t arrives.
func (c *Client) NextOf(t protocol.MessageType, timeout time.Duration) (*protocol.Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if timeout > 0 && remaining <= 0 {
			return nil, fmt.Errorf("remote: no %s message within %s", t, timeout)
		}
		if timeout <= 0 {
			remaining = 0
		}

		msg, err := c.Next(remaining)
		if err != nil {
			return nil, err
		}
		if msg.Type == t {
			return msg, nil
		}
	}
}

// Close closes the connection. The relay stops the robot if a gesture was in progress.
func (c *Client) Close() error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}
