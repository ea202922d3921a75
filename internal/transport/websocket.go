package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	rtcPath      = "/rtc"
	readTimeout  = 120 * time.Second
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Dialer opens plain-frame websocket sessions: every text frame is one data
// packet. It speaks to a data relay or a test server, not to the session
// service's signalling protocol; RoomDialer is the production transport.
type Dialer struct {
	ws *websocket.Dialer
}

func NewDialer() *Dialer {
	return &Dialer{ws: &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}}
}

// SessionURL builds the join URL from the server URL and access token.
func SessionURL(serverURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + rtcPath
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *Dialer) Dial(ctx context.Context, serverURL, token string) (*Conn, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("participant token is required")
	}
	target, err := SessionURL(serverURL, token)
	if err != nil {
		return nil, err
	}
	ws, res, err := d.ws.DialContext(ctx, target, http.Header{})
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial session (status %d): %w", res.StatusCode, err)
		}
		return nil, fmt.Errorf("dial session: %w", err)
	}
	c := &Conn{
		ws:     ws,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// Conn is one open session. Events is closed when the read loop exits;
// the last event before that is the Closed notification unless the
// connection was closed locally.
type Conn struct {
	ws      *websocket.Conn
	events  chan Event
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
	local   bool
}

func (c *Conn) Events() <-chan Event { return c.events }

// Send writes a data payload as a text frame.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close ends the session. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		c.local = true
		_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.events)

	c.ws.SetReadLimit(1 << 20)
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.emit(Event{Closed: true, Err: c.closeCause(err)})
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		if !c.emit(Event{Data: data}) {
			return
		}
	}
}

// emit drops the event once the connection was closed locally; the owner
// already knows it is gone.
func (c *Conn) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conn) closeCause(err error) error {
	c.writeMu.Lock()
	local := c.local
	c.writeMu.Unlock()
	if local {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
