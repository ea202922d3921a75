package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ent0n29/voicecard/internal/protocol"
	"github.com/ent0n29/voicecard/internal/provision"
)

var testDetails = provision.ConnectionDetails{
	ServerURL:        "wss://rtc.example.test",
	RoomName:         "voice_assistant_room_1",
	ParticipantName:  "voice_assistant_user_1",
	ParticipantToken: "tok",
}

func connected(t *testing.T) Snapshot {
	t.Helper()
	s, _ := Transition(Initial(), RevealRequested{})
	s, _ = Transition(s, ProvisionSucceeded{Request: s.Request, Details: testDetails})
	if s.State != StateConnected {
		t.Fatalf("setup State = %q, want connected", s.State)
	}
	return s
}

func TestRevealStartsProvisioning(t *testing.T) {
	s, effects := Transition(Initial(), RevealRequested{})
	if s.State != StateRevealed {
		t.Fatalf("State = %q, want %q", s.State, StateRevealed)
	}
	if s.Request != 1 {
		t.Fatalf("Request = %d, want 1", s.Request)
	}
	if !reflect.DeepEqual(effects, []Effect{StartProvisioning{Request: 1}}) {
		t.Fatalf("effects = %#v", effects)
	}
}

func TestRevealIgnoredUnlessIdle(t *testing.T) {
	s, _ := Transition(Initial(), RevealRequested{})
	again, effects := Transition(s, RevealRequested{})
	if again.Request != s.Request || len(effects) != 0 {
		t.Fatalf("second reveal while revealed started request %d with %v", again.Request, effects)
	}

	c := connected(t)
	after, effects := Transition(c, RevealRequested{})
	if after.State != StateConnected || len(effects) != 0 {
		t.Fatalf("reveal while connected: State = %q, effects = %v", after.State, effects)
	}
}

func TestProvisionSuccessOpensTransport(t *testing.T) {
	s, _ := Transition(Initial(), RevealRequested{})
	s, effects := Transition(s, ProvisionSucceeded{Request: s.Request, Details: testDetails})
	if s.State != StateConnected || s.Details == nil || *s.Details != testDetails {
		t.Fatalf("snapshot = %+v", s)
	}
	want := []Effect{OpenTransport{Request: 1, Details: testDetails}}
	if !reflect.DeepEqual(effects, want) {
		t.Fatalf("effects = %#v, want %#v", effects, want)
	}
}

func TestProvisionFailureReturnsToIdle(t *testing.T) {
	boom := errors.New("boom")
	s, _ := Transition(Initial(), RevealRequested{})
	s, effects := Transition(s, ProvisionFailed{Request: s.Request, Err: boom})
	if s.State != StateIdle || s.Details != nil {
		t.Fatalf("snapshot = %+v, want idle without details", s)
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %v", effects)
	}
	if re, ok := effects[0].(ReportError); !ok || !errors.Is(re.Err, boom) {
		t.Fatalf("effect = %#v, want ReportError(boom)", effects[0])
	}
}

func TestDisconnectSignalCollapsesToIdle(t *testing.T) {
	s := connected(t)
	s, effects := Transition(s, DataReceived{Request: s.Request, Payload: []byte(`{"type":"user_disconnect"}`)})
	if s.State != StateIdle {
		t.Fatalf("State = %q, want idle", s.State)
	}
	if s.Via != StateDisconnected {
		t.Fatalf("Via = %q, want %q", s.Via, StateDisconnected)
	}
	if s.Details != nil {
		t.Fatalf("Details = %+v, want nil", s.Details)
	}
	if !reflect.DeepEqual(effects, []Effect{CloseTransport{Request: 1}}) {
		t.Fatalf("effects = %#v", effects)
	}
}

func TestUnparseableDataLeavesStateUnchanged(t *testing.T) {
	for _, payload := range [][]byte{
		[]byte(`garbage`),
		[]byte(`{"type":"agent_state","state":"speaking"}`),
		{0xff, 0x00},
	} {
		s := connected(t)
		next, effects := Transition(s, DataReceived{Request: s.Request, Payload: payload})
		if next.State != StateConnected || next.Details == nil {
			t.Fatalf("payload %q changed state to %+v", payload, next)
		}
		if len(effects) != 1 {
			t.Fatalf("effects = %v, want one IgnoredMessage", effects)
		}
		if _, ok := effects[0].(IgnoredMessage); !ok {
			t.Fatalf("effect = %#v, want IgnoredMessage", effects[0])
		}
	}
}

func TestTransportDropReportsError(t *testing.T) {
	drop := errors.New("network lost")
	s := connected(t)
	s, effects := Transition(s, TransportDisconnected{Request: s.Request, Err: drop})
	if s.State != StateIdle || s.Details != nil {
		t.Fatalf("snapshot = %+v", s)
	}
	if len(effects) != 2 {
		t.Fatalf("effects = %#v, want close + report", effects)
	}
	if re, ok := effects[1].(ReportError); !ok || !errors.Is(re.Err, drop) {
		t.Fatalf("effects[1] = %#v", effects[1])
	}
}

func TestCleanTransportCloseDoesNotReport(t *testing.T) {
	s := connected(t)
	_, effects := Transition(s, TransportDisconnected{Request: s.Request})
	if !reflect.DeepEqual(effects, []Effect{CloseTransport{Request: s.Request}}) {
		t.Fatalf("effects = %#v", effects)
	}
}

func TestLeaveRequested(t *testing.T) {
	s := connected(t)
	s, effects := Transition(s, LeaveRequested{})
	if s.State != StateIdle || len(effects) != 1 {
		t.Fatalf("State = %q effects = %v", s.State, effects)
	}
}

// A disconnect from the previous session must not clear a session that
// was provisioned after it.
func TestStaleSignalsIgnoredAfterReprovision(t *testing.T) {
	s := connected(t)
	old := s.Request
	s, _ = Transition(s, TransportDisconnected{Request: old})
	s, _ = Transition(s, RevealRequested{})
	fresh := s.Request
	if fresh == old {
		t.Fatalf("reveal reused request id %d", old)
	}

	next, effects := Transition(s, DataReceived{Request: old, Payload: protocol.EncodeDisconnect("")})
	if next.State != StateRevealed || len(effects) != 0 {
		t.Fatalf("stale disconnect while revealed: %+v %v", next, effects)
	}

	s, _ = Transition(s, ProvisionSucceeded{Request: fresh, Details: testDetails})
	next, effects = Transition(s, DataReceived{Request: old, Payload: protocol.EncodeDisconnect("")})
	if next.State != StateConnected || next.Details == nil || len(effects) != 0 {
		t.Fatalf("stale disconnect cleared fresh session: %+v %v", next, effects)
	}
	next, _ = Transition(s, TransportDisconnected{Request: old, Err: errors.New("late")})
	if next.State != StateConnected {
		t.Fatalf("stale transport close cleared fresh session: %+v", next)
	}
}

func TestStaleProvisionResultIgnored(t *testing.T) {
	s, _ := Transition(Initial(), RevealRequested{})
	s, _ = Transition(s, ProvisionFailed{Request: s.Request, Err: errors.New("x")})
	s, _ = Transition(s, RevealRequested{})

	next, effects := Transition(s, ProvisionSucceeded{Request: 1, Details: testDetails})
	if next.State != StateRevealed || len(effects) != 0 {
		t.Fatalf("stale success applied: %+v %v", next, effects)
	}
}
