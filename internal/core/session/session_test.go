package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noodles-scene/noodles-server/internal/core/broadcast"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	hub := broadcast.NewHub(4)
	ob := hub.Register(uuid.New())
	return New(nil, ob, make(chan Inbound, 4))
}

func TestSession_HappyPathTransitions(t *testing.T) {
	s := newTestSession(t)
	require.Equal(t, Accepted, s.State)

	require.NoError(t, s.Introduce("noodle-client"))
	require.Equal(t, Introduced, s.State)
	require.Equal(t, "noodle-client", s.Name)

	require.NoError(t, s.Activate())
	require.Equal(t, Active, s.State)

	s.Close()
	require.Equal(t, Closed, s.State)
}

func TestSession_SecondIntroWhileActiveIsIllegal(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Introduce("first"))
	require.NoError(t, s.Activate())

	err := s.Introduce("second")
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.Equal(t, Active, s.State)
	require.Equal(t, "first", s.Name)
}

func TestSession_ActivateBeforeIntroduceIsIllegal(t *testing.T) {
	s := newTestSession(t)
	err := s.Activate()
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.Equal(t, Accepted, s.State)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s := newTestSession(t)
	s.Close()
	s.Close()
	require.Equal(t, Closed, s.State)
}
