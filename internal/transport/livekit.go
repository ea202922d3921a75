// Package transport opens the realtime session connection. The client only
// consumes the data channel; audio is published and subscribed by the
// session service's media stack.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
)

// Event is one item from the session: a data payload, or the final close
// notification (Closed true, Err nil for a clean close).
type Event struct {
	Data   []byte
	Closed bool
	Err    error
}

// ErrConnectionFailed is the cause reported when the room connection drops
// without a leave from either side.
var ErrConnectionFailed = errors.New("room connection failed")

// RoomDialer joins session-service rooms with a participant token.
type RoomDialer struct {
	// Options are passed to every connect, after the defaults.
	Options []lksdk.ConnectOption
}

func NewRoomDialer() *RoomDialer {
	return &RoomDialer{}
}

func (d *RoomDialer) Dial(ctx context.Context, serverURL, token string) (*RoomConn, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("participant token is required")
	}
	c := newRoomConn()
	opts := append([]lksdk.ConnectOption{lksdk.WithAutoSubscribe(false)}, d.Options...)

	type result struct {
		room *lksdk.Room
		err  error
	}
	res := make(chan result, 1)
	go func() {
		room, err := lksdk.ConnectToRoomWithToken(serverURL, token, c.callback(), opts...)
		res <- result{room, err}
	}()

	select {
	case r := <-res:
		if r.err != nil {
			return nil, fmt.Errorf("join room: %w", r.err)
		}
		c.room = r.room
		return c, nil
	case <-ctx.Done():
		go func() {
			if r := <-res; r.room != nil {
				r.room.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

// RoomConn is one joined room. Events is closed after the Closed
// notification, or at once when the connection is closed locally.
type RoomConn struct {
	room   *lksdk.Room
	events chan Event
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	ended bool
}

func newRoomConn() *RoomConn {
	return &RoomConn{
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

func (c *RoomConn) Events() <-chan Event { return c.events }

// Close leaves the room. Safe to call more than once.
func (c *RoomConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		if !c.ended {
			c.ended = true
			close(c.events)
		}
		c.mu.Unlock()
		if c.room != nil {
			c.room.Disconnect()
		}
	})
	return nil
}

func (c *RoomConn) callback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		OnDisconnectedWithReason: func(reason lksdk.DisconnectionReason) {
			var err error
			if reason == lksdk.Failed {
				err = ErrConnectionFailed
			}
			c.emit(Event{Closed: true, Err: err})
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnDataPacket: func(data lksdk.DataPacket, _ lksdk.DataReceiveParams) {
				if pkt, ok := data.(*lksdk.UserDataPacket); ok {
					c.emit(Event{Data: pkt.Payload})
				}
			},
		},
	}
}

// emit drops everything after the close notification or a local close.
func (c *RoomConn) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return
	}
	select {
	case c.events <- ev:
	case <-c.done:
		return
	}
	if ev.Closed {
		c.ended = true
		close(c.events)
	}
}
