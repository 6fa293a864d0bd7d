package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noodles-scene/noodles-server/internal/core/ids"
)

func TestDispatcher_DispatchInvokesRegisteredHandler(t *testing.T) {
	d := NewDispatcher()
	pingID := ids.ID{Kind: ids.KindMethod, Slot: 0, Generation: 0}
	d.Register(pingID, func(ctx context.Context, call Context, args []any) (any, error) {
		return "pong", nil
	})

	result, exc := d.Dispatch(context.Background(), pingID, Context{}, nil)
	require.Nil(t, exc)
	require.Equal(t, "pong", result)
}

func TestDispatcher_UnknownMethodIsMethodNotFound(t *testing.T) {
	d := NewDispatcher()
	_, exc := d.Dispatch(context.Background(), ids.ID{Kind: ids.KindMethod, Slot: 7}, Context{}, nil)
	require.NotNil(t, exc)
	require.Equal(t, int(CodeMethodNotFound), exc.Code)
}

func TestDispatcher_HandlerErrorTranslatesToShapedException(t *testing.T) {
	d := NewDispatcher()
	id := ids.ID{Kind: ids.KindMethod, Slot: 1}
	d.Register(id, func(ctx context.Context, call Context, args []any) (any, error) {
		return nil, NewInvalidParams("expected 2 args, got %d", len(args))
	})

	_, exc := d.Dispatch(context.Background(), id, Context{}, nil)
	require.NotNil(t, exc)
	require.Equal(t, int(CodeInvalidParams), exc.Code)
	require.Contains(t, exc.Message, "expected 2 args")
}

func TestDispatcher_PlainErrorIsInternalError(t *testing.T) {
	d := NewDispatcher()
	id := ids.ID{Kind: ids.KindMethod, Slot: 2}
	d.Register(id, func(ctx context.Context, call Context, args []any) (any, error) {
		return nil, errors.New("boom")
	})

	_, exc := d.Dispatch(context.Background(), id, Context{}, nil)
	require.NotNil(t, exc)
	require.Equal(t, int(CodeInternalError), exc.Code)
	require.Equal(t, "boom", exc.Message)
}

func TestDispatcher_HandlerPanicIsRecoveredAsInternalError(t *testing.T) {
	d := NewDispatcher()
	id := ids.ID{Kind: ids.KindMethod, Slot: 3}
	d.Register(id, func(ctx context.Context, call Context, args []any) (any, error) {
		panic("unexpected")
	})

	result, exc := d.Dispatch(context.Background(), id, Context{}, nil)
	require.Nil(t, result)
	require.NotNil(t, exc)
	require.Equal(t, int(CodeInternalError), exc.Code)
	require.Contains(t, exc.Message, "unexpected")
}

func TestDispatcher_UnregisterRemovesHandler(t *testing.T) {
	d := NewDispatcher()
	id := ids.ID{Kind: ids.KindMethod, Slot: 4}
	d.Register(id, func(ctx context.Context, call Context, args []any) (any, error) { return nil, nil })
	d.Unregister(id)

	_, exc := d.Dispatch(context.Background(), id, Context{}, nil)
	require.NotNil(t, exc)
	require.Equal(t, int(CodeMethodNotFound), exc.Code)
}
