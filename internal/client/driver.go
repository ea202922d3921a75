// Package client runs the card recipient's side of a session: it feeds user
// actions, provisioning results and transport events through the session
// state machine and executes the effects it returns.
package client

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/voicecard/internal/apperrors"
	"github.com/ent0n29/voicecard/internal/card"
	"github.com/ent0n29/voicecard/internal/logging"
	"github.com/ent0n29/voicecard/internal/provision"
	"github.com/ent0n29/voicecard/internal/session"
	"github.com/ent0n29/voicecard/internal/transport"
)

// Provisioner requests connection details for one session.
type Provisioner interface {
	Provision(ctx context.Context, payload card.Payload) (provision.ConnectionDetails, error)
}

// Conn is an open realtime session.
type Conn interface {
	Events() <-chan transport.Event
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, serverURL, token string) (Conn, error)
}

// RoomDialer joins the session service's room. It is the default Dialer.
type RoomDialer struct {
	D *transport.RoomDialer
}

func (r RoomDialer) Dial(ctx context.Context, serverURL, token string) (Conn, error) {
	d := r.D
	if d == nil {
		d = transport.NewRoomDialer()
	}
	conn, err := d.Dial(ctx, serverURL, token)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// WebsocketDialer adapts the plain-frame transport.Dialer to Dialer, for
// data relays that forward room data packets as websocket frames.
type WebsocketDialer struct {
	D *transport.Dialer
}

func (w WebsocketDialer) Dial(ctx context.Context, serverURL, token string) (Conn, error) {
	d := w.D
	if d == nil {
		d = transport.NewDialer()
	}
	conn, err := d.Dial(ctx, serverURL, token)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type Options struct {
	Provisioner Provisioner
	Dialer      Dialer
	Logger      *logrus.Logger
	// OnChange is called from the driver loop after every transition that
	// changed the snapshot. It must not block.
	OnChange func(session.Snapshot)
}

// transportOpened is posted by the dial goroutine. It is not a session
// event: the machine already considers the session connected.
type transportOpened struct {
	request session.RequestID
	conn    Conn
}

// Driver owns one session for one card. All state is mutated on the Run
// goroutine; the other methods only post to it.
type Driver struct {
	payload card.Payload
	opts    Options

	inbox  chan any
	errs   chan error
	done   chan struct{}
	closed sync.Once

	mu   sync.RWMutex
	snap session.Snapshot

	conns map[session.RequestID]Conn
}

func NewDriver(payload card.Payload, opts Options) *Driver {
	if opts.Dialer == nil {
		opts.Dialer = RoomDialer{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Driver{
		payload: payload,
		opts:    opts,
		inbox:   make(chan any, 64),
		errs:    make(chan error, 16),
		done:    make(chan struct{}),
		snap:    session.Initial(),
		conns:   make(map[session.RequestID]Conn),
	}
}

// Reveal asks for a session. Ignored unless the driver is idle.
func (d *Driver) Reveal() { d.post(session.RevealRequested{}) }

// Leave ends the current session, if any.
func (d *Driver) Leave() { d.post(session.LeaveRequested{}) }

func (d *Driver) Snapshot() session.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Errors delivers user-facing failures. Errors are dropped when nobody
// drains the channel.
func (d *Driver) Errors() <-chan error { return d.errs }

// Run processes events until ctx is cancelled, then closes any open
// session.
func (d *Driver) Run(ctx context.Context) error {
	defer d.closed.Do(func() { close(d.done) })
	defer d.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.inbox:
			d.handle(ctx, msg)
		}
	}
}

func (d *Driver) post(msg any) bool {
	select {
	case d.inbox <- msg:
		return true
	case <-d.done:
		return false
	}
}

func (d *Driver) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case transportOpened:
		cur := d.Snapshot()
		if cur.State != session.StateConnected || cur.Request != m.request {
			d.opts.Logger.WithField("request", m.request).Debug("closing transport for stale request")
			_ = m.conn.Close()
			return
		}
		d.conns[m.request] = m.conn
		go d.pump(m.request, m.conn)

	case session.Event:
		prev := d.Snapshot()
		next, effects := session.Transition(prev, m)
		d.mu.Lock()
		d.snap = next
		d.mu.Unlock()
		if changed(prev, next) && d.opts.OnChange != nil {
			d.opts.OnChange(next)
		}
		for _, eff := range effects {
			d.execute(ctx, eff)
		}
	}
}

func (d *Driver) execute(ctx context.Context, eff session.Effect) {
	log := d.opts.Logger
	switch e := eff.(type) {
	case session.StartProvisioning:
		go func() {
			details, err := d.opts.Provisioner.Provision(ctx, d.payload)
			if err != nil {
				d.post(session.ProvisionFailed{Request: e.Request, Err: err})
				return
			}
			d.post(session.ProvisionSucceeded{Request: e.Request, Details: details})
		}()

	case session.OpenTransport:
		go func() {
			conn, err := d.opts.Dialer.Dial(ctx, e.Details.ServerURL, e.Details.ParticipantToken)
			if err != nil {
				d.post(session.TransportDisconnected{
					Request: e.Request,
					Err:     &apperrors.TransportError{Op: "dial", Cause: err},
				})
				return
			}
			if !d.post(transportOpened{request: e.Request, conn: conn}) {
				_ = conn.Close()
			}
		}()

	case session.CloseTransport:
		if conn, ok := d.conns[e.Request]; ok {
			delete(d.conns, e.Request)
			if err := conn.Close(); err != nil {
				log.WithError(err).Debug("close transport")
			}
		}

	case session.ReportError:
		log.WithError(e.Err).Warn("session error")
		select {
		case d.errs <- e.Err:
		default:
		}

	case session.IgnoredMessage:
		entry := log.WithField("request", e.Request)
		if e.Err != nil {
			entry = entry.WithError(e.Err)
		}
		entry.Debug("ignoring data message")
	}
}

func (d *Driver) pump(req session.RequestID, conn Conn) {
	for ev := range conn.Events() {
		if ev.Closed {
			var err error
			if ev.Err != nil {
				err = &apperrors.TransportError{Op: "read", Cause: ev.Err}
			}
			d.post(session.TransportDisconnected{Request: req, Err: err})
			return
		}
		if !d.post(session.DataReceived{Request: req, Payload: ev.Data}) {
			return
		}
	}
	d.post(session.TransportDisconnected{Request: req})
}

// changed ignores Via, which every transition resets.
func changed(prev, next session.Snapshot) bool {
	return prev.State != next.State || prev.Request != next.Request || prev.Details != next.Details || next.Via != ""
}

func (d *Driver) closeAll() {
	for req, conn := range d.conns {
		_ = conn.Close()
		delete(d.conns, req)
	}
}
