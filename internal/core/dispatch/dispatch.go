// Package dispatch implements the method invocation pipeline: resolving
// a method ID to a registered Go handler, invoking the handler with the
// call's target context, and translating whatever it returns or panics
// with into a wire.MethodReply. The target context is passed through
// unchecked; validating it is the caller's job.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/noodles-scene/noodles-server/internal/core/ids"
	"github.com/noodles-scene/noodles-server/internal/core/wire"
)

// Code is one of the JSON-RPC-flavored exception codes spec §4.F fixes
// for MethodException.Code.
type Code int

const (
	CodeParseError     Code = -32700
	CodeInvalidRequest Code = -32600
	CodeMethodNotFound Code = -32601
	CodeInvalidParams  Code = -32602
	CodeInternalError  Code = -32603
)

// Error is the error type a Handler returns to control the exact
// MethodException sent back to the caller. A handler that returns a
// plain error instead is reported as CodeInternalError with the error's
// message.
type Error struct {
	Code    Code
	Message string
	Data    any
}

func (e *Error) Error() string { return e.Message }

// NewInvalidParams is a convenience constructor for the common case of
// rejecting a call's argument shape.
func NewInvalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// Context identifies what a method call is attached to: the document
// (all three nil), or exactly one of an entity, table, or plot.
type Context struct {
	Entity *ids.ID
	Table  *ids.ID
	Plot   *ids.ID
}

// Handler is a registered method implementation. args is the decoded,
// but not otherwise validated, argument list from the client's
// InvokeMethod; the handler is responsible for checking arity and
// shape and returning *Error for a shaped rejection.
type Handler func(ctx context.Context, call Context, args []any) (any, error)

// ErrNotFound is wrapped into a CodeMethodNotFound exception when
// Dispatch is asked to invoke an unregistered ID.
var ErrNotFound = errors.New("dispatch: method not found")

// Dispatcher maps Method IDs to their Go implementations. Like
// scene.Registry and broadcast.Hub, it is only ever touched from the
// server's core loop and carries no locking of its own.
type Dispatcher struct {
	handlers map[ids.ID]Handler
}

// NewDispatcher returns a Dispatcher with no methods registered.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[ids.ID]Handler)}
}

// Register attaches h as the implementation of id, replacing any prior
// handler for the same ID.
func (d *Dispatcher) Register(id ids.ID, h Handler) {
	d.handlers[id] = h
}

// Unregister removes id's handler, if any.
func (d *Dispatcher) Unregister(id ids.ID) {
	delete(d.handlers, id)
}

// Dispatch resolves id, invokes its handler with call and args, and
// returns either the handler's result or a MethodException describing
// why invocation failed. A handler panic is recovered and reported as
// CodeInternalError rather than taking down the core loop.
func (d *Dispatcher) Dispatch(ctx context.Context, id ids.ID, call Context, args []any) (result any, exc *wire.MethodException) {
	h, ok := d.handlers[id]
	if !ok {
		return nil, &wire.MethodException{
			Code:    int(CodeMethodNotFound),
			Message: fmt.Sprintf("%v: no handler registered for method %v", ErrNotFound, id),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			exc = &wire.MethodException{Code: int(CodeInternalError), Message: fmt.Sprintf("handler panic: %v", r)}
		}
	}()

	res, err := h(ctx, call, args)
	if err == nil {
		return res, nil
	}

	var de *Error
	if errors.As(err, &de) {
		return nil, &wire.MethodException{Code: int(de.Code), Message: de.Message, Data: de.Data}
	}
	return nil, &wire.MethodException{Code: int(CodeInternalError), Message: err.Error()}
}
