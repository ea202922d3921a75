package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
)

func nextEvent(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}, false
	}
}

func TestRoomConnForwardsUserData(t *testing.T) {
	c := newRoomConn()
	cb := c.callback()

	cb.ParticipantCallback.OnDataPacket(&lksdk.UserDataPacket{Payload: []byte(`{"type":"disconnect"}`), Topic: "lk.chat"}, lksdk.DataReceiveParams{})
	ev, ok := nextEvent(t, c.Events())
	if !ok || ev.Closed || string(ev.Data) != `{"type":"disconnect"}` {
		t.Fatalf("event = %+v ok=%v, want data payload", ev, ok)
	}
}

func TestRoomConnCleanLeave(t *testing.T) {
	c := newRoomConn()
	cb := c.callback()

	cb.OnDisconnectedWithReason(lksdk.LeaveRequested)
	ev, ok := nextEvent(t, c.Events())
	if !ok || !ev.Closed || ev.Err != nil {
		t.Fatalf("event = %+v ok=%v, want clean close", ev, ok)
	}
	if _, ok := nextEvent(t, c.Events()); ok {
		t.Fatalf("Events() still open after close notification")
	}

	// Late packets after the close are dropped, not sent on a closed channel.
	cb.ParticipantCallback.OnDataPacket(&lksdk.UserDataPacket{Payload: []byte("late")}, lksdk.DataReceiveParams{})
}

func TestRoomConnFailureCarriesError(t *testing.T) {
	c := newRoomConn()
	c.callback().OnDisconnectedWithReason(lksdk.Failed)

	ev, _ := nextEvent(t, c.Events())
	if !ev.Closed || !errors.Is(ev.Err, ErrConnectionFailed) {
		t.Fatalf("event = %+v, want ErrConnectionFailed", ev)
	}
}

func TestRoomConnLocalCloseSuppressesEvents(t *testing.T) {
	c := newRoomConn()
	cb := c.callback()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	cb.OnDisconnectedWithReason(lksdk.LeaveRequested)
	if ev, ok := nextEvent(t, c.Events()); ok {
		t.Fatalf("event after local close = %+v, want closed channel", ev)
	}
}

func TestRoomDialerRequiresToken(t *testing.T) {
	if _, err := NewRoomDialer().Dial(context.Background(), "wss://rtc.example.test", " "); err == nil {
		t.Fatalf("Dial() with blank token succeeded, want error")
	}
}
