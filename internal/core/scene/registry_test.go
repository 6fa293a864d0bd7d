package scene

import (
	"context"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/noodles-scene/noodles-server/internal/core/ids"
)

func mustMethod(t *testing.T, id ids.ID, name string) *Method {
	t.Helper()
	m, err := NewMethod(id, name, nil, nil, nil)
	require.NoError(t, err)
	return m
}

func TestRegistry_CreateGetDelete(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	id := r.Alloc(ids.KindBuffer)
	buf := &Buffer{base: base{id: id, name: "vertex-data"}, Size: 12, InlineBytes: []byte{1, 2, 3}}
	require.NoError(t, r.Create(ctx, buf, nil))

	got, ok := r.Get(id)
	require.True(t, ok)
	require.Same(t, buf, got)

	require.NoError(t, r.Delete(ctx, id))
	_, ok = r.Get(id)
	require.False(t, ok)
}

func TestRegistry_CreateRejectsDanglingReference(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	viewID := r.Alloc(ids.KindBufferView)
	ghostBuffer := ids.ID{Kind: ids.KindBuffer, Slot: 99, Generation: 0}
	view := &BufferView{base: base{id: viewID}, SourceBuffer: ghostBuffer, Type: BufferViewGeometry, Offset: 0, Length: 16}

	err := r.Create(ctx, view, nil)
	require.ErrorIs(t, err, ErrDanglingReference)
}

func TestRegistry_DeleteFailsWhileReferenced(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	bufID := r.Alloc(ids.KindBuffer)
	require.NoError(t, r.Create(ctx, &Buffer{base: base{id: bufID}, Size: 4, InlineBytes: []byte{0, 0, 0, 0}}, nil))

	viewID := r.Alloc(ids.KindBufferView)
	view := &BufferView{base: base{id: viewID}, SourceBuffer: bufID, Type: BufferViewGeometry, Offset: 0, Length: 4}
	require.NoError(t, r.Create(ctx, view, nil))

	err := r.Delete(ctx, bufID)
	require.ErrorIs(t, err, ErrInUse)

	require.NoError(t, r.Delete(ctx, viewID))
	require.NoError(t, r.Delete(ctx, bufID))
}

func TestRegistry_UpdateRevalidatesAndReindexesReferences(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	buf1 := r.Alloc(ids.KindBuffer)
	require.NoError(t, r.Create(ctx, &Buffer{base: base{id: buf1}, Size: 4, InlineBytes: []byte{0, 0, 0, 0}}, nil))
	buf2 := r.Alloc(ids.KindBuffer)
	require.NoError(t, r.Create(ctx, &Buffer{base: base{id: buf2}, Size: 4, InlineBytes: []byte{0, 0, 0, 0}}, nil))

	viewID := r.Alloc(ids.KindBufferView)
	view := &BufferView{base: base{id: viewID}, SourceBuffer: buf1, Type: BufferViewGeometry, Offset: 0, Length: 4}
	require.NoError(t, r.Create(ctx, view, nil))

	newSource, err := cbor.Marshal(buf2)
	require.NoError(t, err)
	_, err = r.Update(viewID, Delta{"source_buffer": newSource})
	require.NoError(t, err)

	require.ErrorIs(t, r.Delete(ctx, buf2), ErrInUse)
	require.NoError(t, r.Delete(ctx, buf1))
}

func TestRegistry_ComponentIDByNameReturnsMostRecentlyCreated(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	first := r.Alloc(ids.KindMethod)
	require.NoError(t, r.Create(ctx, mustMethod(t, first, "noo::ping"), nil))
	second := r.Alloc(ids.KindMethod)
	require.NoError(t, r.Create(ctx, mustMethod(t, second, "noo::ping"), nil))

	got, ok := r.ComponentIDByName(ids.KindMethod, "noo::ping")
	require.True(t, ok)
	require.Equal(t, second, got)

	require.NoError(t, r.Delete(ctx, second))
	got, ok = r.ComponentIDByName(ids.KindMethod, "noo::ping")
	require.True(t, ok)
	require.Equal(t, first, got)
}

func TestRegistry_SnapshotOrdersDependenciesBeforeDependents(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	bufID := r.Alloc(ids.KindBuffer)
	require.NoError(t, r.Create(ctx, &Buffer{base: base{id: bufID}, Size: 4, InlineBytes: []byte{0, 0, 0, 0}}, nil))

	viewID := r.Alloc(ids.KindBufferView)
	require.NoError(t, r.Create(ctx, &BufferView{base: base{id: viewID}, SourceBuffer: bufID, Type: BufferViewGeometry, Offset: 0, Length: 4}, nil))

	imgID := r.Alloc(ids.KindImage)
	require.NoError(t, r.Create(ctx, &Image{base: base{id: imgID}, BufferSource: &bufID}, nil))

	snap := r.Snapshot()
	index := make(map[ids.ID]int, len(snap))
	for i, c := range snap {
		index[c.ComponentID()] = i
	}

	require.Less(t, index[bufID], index[viewID])
	require.Less(t, index[bufID], index[imgID])
}
