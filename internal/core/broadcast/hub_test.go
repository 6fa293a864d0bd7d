package broadcast

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noodles-scene/noodles-server/internal/core/wire"
)

func TestHub_BroadcastFansOutToEverySession(t *testing.T) {
	h := NewHub(4)
	a := h.Register(uuid.New())
	b := h.Register(uuid.New())

	frame := wire.Frame{{Tag: uint64(wire.TagInitDone), Payload: wire.Empty{}}}
	overflowed, err := h.Broadcast(frame)
	require.NoError(t, err)
	require.Empty(t, overflowed)

	require.Len(t, a.frames, 1)
	require.Len(t, b.frames, 1)

	wantBytes, err := frame.Encode()
	require.NoError(t, err)
	require.Equal(t, wantBytes, <-a.frames)
	require.Equal(t, wantBytes, <-b.frames)
}

func TestHub_BroadcastReportsOverflowWithoutBlocking(t *testing.T) {
	h := NewHub(1)
	full := h.Register(uuid.New())
	full.frames <- []byte("stale")

	frame := wire.Frame{{Tag: uint64(wire.TagInitDone), Payload: wire.Empty{}}}
	overflowed, err := h.Broadcast(frame)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{full.ID}, overflowed)
}

func TestHub_SendToTargetsOneSession(t *testing.T) {
	h := NewHub(4)
	a := h.Register(uuid.New())
	_ = h.Register(uuid.New())

	frame := wire.Frame{{Tag: uint64(wire.TagMethodReply), Payload: wire.MethodReply{InvokeID: "1"}}}
	ok, err := h.SendTo(a.ID, frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, a.frames, 1)
}

func TestHub_SendToUnknownSessionReturnsFalse(t *testing.T) {
	h := NewHub(4)
	ok, err := h.SendTo(uuid.New(), wire.Frame{{Tag: uint64(wire.TagInitDone), Payload: wire.Empty{}}})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHub_UnregisterRemovesFromFanOut(t *testing.T) {
	h := NewHub(4)
	a := h.Register(uuid.New())
	h.Unregister(a.ID)

	require.Empty(t, h.Sessions())
	ok, err := h.SendTo(a.ID, wire.Frame{{Tag: uint64(wire.TagInitDone), Payload: wire.Empty{}}})
	require.NoError(t, err)
	require.False(t, ok)
}
