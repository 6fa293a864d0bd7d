// Package session implements one connected client's lifecycle: its
// websocket read/write loops and the Accepted -> Introduced -> Active ->
// Closed state machine spec §4.E describes.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/noodles-scene/noodles-server/internal/core/broadcast"
	"github.com/noodles-scene/noodles-server/internal/core/wire"
)

// State is one stage of a session's lifecycle.
type State int

const (
	// Accepted is the state right after the websocket upgrade: the
	// session has sent nothing meaningful yet and will accept exactly
	// one IntroMessage.
	Accepted State = iota
	// Introduced is transient: set the instant the intro is accepted,
	// cleared the instant the init snapshot finishes sending, at which
	// point the session moves to Active. No frame from the client is
	// read while a session is Introduced.
	Introduced
	// Active is the steady state: the session may invoke methods and
	// receives every broadcast.
	Active
	// Closed is terminal. A closed session accepts no further state
	// transitions.
	Closed
)

func (s State) String() string {
	switch s {
	case Accepted:
		return "Accepted"
	case Introduced:
		return "Introduced"
	case Active:
		return "Active"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ErrIllegalTransition is returned by a transition method called from a
// state that does not permit it — including, per [EXPANSION] EXP-3, a
// second IntroMessage sent while Active.
var ErrIllegalTransition = errors.New("session: illegal state transition")

// Inbound is one decoded client frame, or a terminal read-loop error,
// handed from a session's read goroutine to the server's core loop.
// Err set (Elements nil) means the session's read loop has ended and the
// core loop should tear the session down; everything else about the
// session (state, outbox) stays valid until the core loop acts on it.
type Inbound struct {
	SessionID uuid.UUID
	Elements  []wire.RawElement
	Err       error
}

// Session is one connected client. Its State field, and the Introduce/
// Activate/Close transitions, are only ever called from the server's
// core loop — matching Registry and Hub, Session carries no locking of
// its own. Only the read/write loops run concurrently with the core
// loop, and they communicate with it exclusively through channels.
type Session struct {
	ID    uuid.UUID
	Name  string
	State State

	conn   *websocket.Conn
	outbox *broadcast.Outbox
	toCore chan<- Inbound
}

// New wraps conn as a freshly Accepted session. outbox is this
// session's registered broadcast.Outbox; toCore is the core loop's
// shared inbound channel, written to by Run's read loop.
func New(conn *websocket.Conn, outbox *broadcast.Outbox, toCore chan<- Inbound) *Session {
	return &Session{
		ID:     outbox.ID,
		State:  Accepted,
		conn:   conn,
		outbox: outbox,
		toCore: toCore,
	}
}

// Introduce accepts a client's IntroMessage, recording its declared name
// and moving Accepted -> Introduced. Any other starting state is a
// protocol violation.
func (s *Session) Introduce(name string) error {
	if s.State != Accepted {
		return fmt.Errorf("%w: intro from %s session", ErrIllegalTransition, s.State)
	}
	s.Name = name
	s.State = Introduced
	return nil
}

// Activate moves Introduced -> Active, once the init snapshot has been
// fully enqueued on the session's outbox.
func (s *Session) Activate() error {
	if s.State != Introduced {
		return fmt.Errorf("%w: activate from %s session", ErrIllegalTransition, s.State)
	}
	s.State = Active
	return nil
}

// Close moves any non-Closed state to Closed. It is idempotent.
func (s *Session) Close() {
	s.State = Closed
}

// Run starts the session's read and write loops and blocks until either
// exits: the read loop on a decode/connection error or ctx cancellation,
// the write loop when its outbox channel closes or a write fails. The
// underlying connection is closed before Run returns.
func (s *Session) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return s.readLoop(ctx)
	})
	group.Go(func() error {
		err := s.writeLoop(ctx)
		// Closing the connection unblocks the read loop's ReadMessage, so
		// Run returns when the write loop exits too.
		_ = s.conn.Close()
		return err
	})

	err := group.Wait()
	_ = s.conn.Close()
	return err
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.notifyCore(ctx, Inbound{SessionID: s.ID, Err: fmt.Errorf("session: read: %w", err)})
			return err
		}

		elements, err := wire.Decode(data)
		if err != nil {
			s.notifyCore(ctx, Inbound{SessionID: s.ID, Err: err})
			return err
		}

		if !s.notifyCore(ctx, Inbound{SessionID: s.ID, Elements: elements}) {
			return ctx.Err()
		}
	}
}

// notifyCore forwards msg to the core loop, honoring ctx cancellation so
// a wedged core loop can't leak this goroutine. It reports whether the
// send landed.
func (s *Session) notifyCore(ctx context.Context, msg Inbound) bool {
	select {
	case s.toCore <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-s.outbox.Frames():
			if !ok {
				return nil
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return fmt.Errorf("session: write: %w", err)
			}
		}
	}
}
