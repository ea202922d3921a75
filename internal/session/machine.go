// Package session holds the client-side session state machine. Transition
// is pure: it maps (snapshot, event) to (snapshot, effects) and never
// touches the network. client.Driver executes the effects.
package session

import (
	"github.com/ent0n29/voicecard/internal/protocol"
	"github.com/ent0n29/voicecard/internal/provision"
)

type State string

const (
	StateIdle      State = "idle"
	StateRevealed  State = "revealed"
	StateConnected State = "connected"

	// StateDisconnected is never held: a disconnect passes through it and
	// lands in StateIdle within the same transition.
	StateDisconnected State = "disconnected"
)

// RequestID tags one provisioning attempt. Events carrying any other id
// than the snapshot's current one are stale and ignored.
type RequestID uint64

type Snapshot struct {
	State   State
	Request RequestID
	// Details is non-nil only while Connected.
	Details *provision.ConnectionDetails
	// Via is the transient state this transition passed through, if any.
	Via     State

	// last is the highest RequestID handed out so far.
	last RequestID
}

func Initial() Snapshot {
	return Snapshot{State: StateIdle}
}

type Event interface{ isEvent() }

// RevealRequested is the user's reveal action.
type RevealRequested struct{}

// LeaveRequested is the user closing the session.
type LeaveRequested struct{}

type ProvisionSucceeded struct {
	Request RequestID
	Details provision.ConnectionDetails
}

type ProvisionFailed struct {
	Request RequestID
	Err     error
}

// DataReceived is a payload from the session's data channel.
type DataReceived struct {
	Request RequestID
	Payload []byte
}

// TransportDisconnected is reported by the transport on remote close or
// network loss. Err is nil for a clean close.
type TransportDisconnected struct {
	Request RequestID
	Err     error
}

func (RevealRequested) isEvent()       {}
func (LeaveRequested) isEvent()        {}
func (ProvisionSucceeded) isEvent()    {}
func (ProvisionFailed) isEvent()       {}
func (DataReceived) isEvent()          {}
func (TransportDisconnected) isEvent() {}

type Effect interface{ isEffect() }

type StartProvisioning struct{ Request RequestID }

type OpenTransport struct {
	Request RequestID
	Details provision.ConnectionDetails
}

type CloseTransport struct{ Request RequestID }

// ReportError surfaces a failure to the user without blocking.
type ReportError struct{ Err error }

// IgnoredMessage is a data payload that was not a recognized control message.
type IgnoredMessage struct {
	Request RequestID
	Err     error
}

func (StartProvisioning) isEffect() {}
func (OpenTransport) isEffect()     {}
func (CloseTransport) isEffect()    {}
func (ReportError) isEffect()       {}
func (IgnoredMessage) isEffect()    {}

// Transition applies ev to s.
func Transition(s Snapshot, ev Event) (Snapshot, []Effect) {
	s.Via = ""
	switch e := ev.(type) {
	case RevealRequested:
		if s.State != StateIdle {
			return s, nil
		}
		s.last++
		s.Request = s.last
		s.State = StateRevealed
		s.Details = nil
		return s, []Effect{StartProvisioning{Request: s.Request}}

	case ProvisionSucceeded:
		if s.State != StateRevealed || e.Request != s.Request {
			return s, nil
		}
		details := e.Details
		s.State = StateConnected
		s.Details = &details
		return s, []Effect{OpenTransport{Request: s.Request, Details: details}}

	case ProvisionFailed:
		if s.State != StateRevealed || e.Request != s.Request {
			return s, nil
		}
		s.State = StateIdle
		s.Details = nil
		return s, []Effect{ReportError{Err: e.Err}}

	case DataReceived:
		if s.State != StateConnected || e.Request != s.Request {
			return s, nil
		}
		msg, err := protocol.ParseControlMessage(e.Payload)
		if err != nil {
			return s, []Effect{IgnoredMessage{Request: e.Request, Err: err}}
		}
		if _, ok := msg.(protocol.DisconnectSignal); !ok {
			return s, []Effect{IgnoredMessage{Request: e.Request}}
		}
		return disconnect(s, nil)

	case TransportDisconnected:
		if e.Request != s.Request {
			return s, nil
		}
		switch s.State {
		case StateConnected:
			return disconnect(s, e.Err)
		default:
			return s, nil
		}

	case LeaveRequested:
		if s.State != StateConnected {
			return s, nil
		}
		return disconnect(s, nil)
	}
	return s, nil
}

func disconnect(s Snapshot, cause error) (Snapshot, []Effect) {
	req := s.Request
	s.State = StateIdle
	s.Via = StateDisconnected
	s.Details = nil
	effects := []Effect{CloseTransport{Request: req}}
	if cause != nil {
		effects = append(effects, ReportError{Err: cause})
	}
	return s, effects
}
