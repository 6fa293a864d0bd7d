package ids_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noodles-scene/noodles-server/internal/core/ids"
)

func TestAllocReusesFreedSlotWithBumpedGeneration(t *testing.T) {
	a := ids.NewAllocator()

	first := a.Alloc(ids.KindEntity)
	require.Equal(t, uint32(0), first.Slot)
	require.Equal(t, uint32(0), first.Generation)
	require.True(t, a.Alive(first))

	require.NoError(t, a.Free(first))
	require.False(t, a.Alive(first))

	second := a.Alloc(ids.KindEntity)
	require.Equal(t, first.Slot, second.Slot)
	require.Equal(t, uint32(1), second.Generation)
	require.True(t, a.Alive(second))
	require.False(t, a.Alive(first), "stale id must stay stale after slot reuse")
}

func TestAllocKindsAreIndependent(t *testing.T) {
	a := ids.NewAllocator()

	e := a.Alloc(ids.KindEntity)
	m := a.Alloc(ids.KindMethod)

	require.Equal(t, uint32(0), e.Slot)
	require.Equal(t, uint32(0), m.Slot)
	require.NotEqual(t, e.Kind, m.Kind)
	require.True(t, a.Alive(e))
	require.True(t, a.Alive(m))
}

func TestFreeUnknownOrStaleIsError(t *testing.T) {
	a := ids.NewAllocator()

	require.Error(t, a.Free(ids.ID{Kind: ids.KindBuffer, Slot: 0, Generation: 0}))

	id := a.Alloc(ids.KindBuffer)
	require.NoError(t, a.Free(id))
	require.Error(t, a.Free(id), "double free must fail")
}

func TestNilIDIsNeverAlive(t *testing.T) {
	a := ids.NewAllocator()
	require.True(t, ids.ID{}.IsNil())
	require.False(t, a.Alive(ids.ID{}))
}

func TestRepeatedAllocFreeMonotonicallyIncreasesGeneration(t *testing.T) {
	a := ids.NewAllocator()
	id := a.Alloc(ids.KindLight)

	for i := uint32(0); i < 5; i++ {
		require.Equal(t, i, id.Generation)
		require.NoError(t, a.Free(id))
		id = a.Alloc(ids.KindLight)
	}
}
