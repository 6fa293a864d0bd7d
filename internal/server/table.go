package server

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/noodles-scene/noodles-server/internal/core/dispatch"
	"github.com/noodles-scene/noodles-server/internal/core/ids"
	"github.com/noodles-scene/noodles-server/internal/core/scene"
)

// builtinTableMethods names the five fixed method names every table
// gets wired with, per spec §4.G/§8 scenario 5 ("client invokes
// tbl_insert..."). Their Args are untyped on purpose: the delegate, not
// the wire layer, is the source of truth for row shape.
var builtinTableMethods = []string{
	"tbl_insert",
	"tbl_update",
	"tbl_remove",
	"tbl_clear",
	"tbl_update_selection",
}

// tableSignalNames are the four signals [EXPANSION] EXP-3 adds, emitted
// automatically after a successful delegate call.
var tableSignalNames = []string{
	"tbl_signal_reset",
	"tbl_signal_updated",
	"tbl_signal_rows_removed",
	"tbl_signal_selection_update",
}

// tableSignalAdapter implements scene.TableSignals by broadcasting each
// callback as a SignalInvoke targeted at the owning table, bridging the
// registry-level delegate callback to the wire protocol. It is grounded
// on rigatoni/delegates.py's table_reset/table_updated/
// table_rows_removed/table_selection_update helpers (see EXP-3).
type tableSignalAdapter struct {
	rt      *Runtime
	tableID ids.ID
	signals map[string]ids.ID
}

func (a *tableSignalAdapter) emit(name string, args ...any) error {
	sigID, ok := a.signals[name]
	if !ok {
		return nil
	}
	call := dispatch.Context{Table: &a.tableID}
	return a.rt.InvokeSignal(sigID, call, args)
}

func (a *tableSignalAdapter) TableReset(_ context.Context, columns []scene.TableColumnInfo, keys []int64, data [][]any) error {
	return a.emit("tbl_signal_reset", columns, keys, data)
}

func (a *tableSignalAdapter) TableUpdated(_ context.Context, keys []int64, data [][]any) error {
	return a.emit("tbl_signal_updated", keys, data)
}

func (a *tableSignalAdapter) TableRowsRemoved(_ context.Context, keys []int64) error {
	return a.emit("tbl_signal_rows_removed", keys)
}

func (a *tableSignalAdapter) TableSelectionUpdated(_ context.Context, selection scene.Selection) error {
	return a.emit("tbl_signal_selection_update", selection)
}

// CreateTable is the typed convenience constructor EXP-3 folds
// rigatoni/interface.py's table-creation wrapper into: it allocates the
// table's built-in methods and signals, wires each method to the
// delegate's matching Handle* capability, attaches a tableSignalAdapter
// so successful delegate calls broadcast the matching signal, and
// finally creates and broadcasts the Table component itself.
//
// newDelegate receives the table's own ID (tables may want to key
// storage by it) and the tableSignalAdapter, and must return a
// scene.TableDelegate; each of the five methods wired here calls the
// delegate's matching Handle* method directly.
func (rt *Runtime) CreateTable(name string, meta *string, newDelegate func(id ids.ID, signals scene.TableSignals) scene.TableDelegate) (ids.ID, error) {
	if rt.shutdown {
		return ids.ID{}, ErrShuttingDown
	}

	tableID := rt.registry.Alloc(ids.KindTable)
	adapter := &tableSignalAdapter{rt: rt, tableID: tableID, signals: make(map[string]ids.ID, len(tableSignalNames))}
	delegate := newDelegate(tableID, adapter)

	signalIDs := make([]ids.ID, 0, len(tableSignalNames))
	for _, sigName := range tableSignalNames {
		sigID, err := rt.CreateComponent(ids.KindSignal, func(id ids.ID) (scene.Component, error) {
			return scene.NewSignal(id, sigName, nil, nil)
		})
		if err != nil {
			return ids.ID{}, fmt.Errorf("create table signal %s: %w", sigName, err)
		}
		adapter.signals[sigName] = sigID
		signalIDs = append(signalIDs, sigID)
	}

	methodIDs := make([]ids.ID, 0, len(builtinTableMethods))
	for _, methodName := range builtinTableMethods {
		mName := methodName
		methodID, err := rt.CreateComponent(ids.KindMethod, func(id ids.ID) (scene.Component, error) {
			return scene.NewMethod(id, mName, nil, nil, nil)
		})
		if err != nil {
			return ids.ID{}, fmt.Errorf("create table method %s: %w", mName, err)
		}
		rt.RegisterMethod(methodID, tableMethodHandler(mName, delegate))
		methodIDs = append(methodIDs, methodID)
	}

	id, err := rt.createComponent(ids.KindTable, func(id ids.ID) (scene.Component, error) {
		t := &scene.Table{Meta: meta, MethodsList: methodIDs, SignalsList: signalIDs}
		t.SetIdentity(id, name)
		return t, nil
	}, delegate)
	if err != nil {
		return ids.ID{}, err
	}
	return id, nil
}

// tableMethodHandler dispatches one of the five built-in table method
// names to the matching TableDelegate capability, decoding args the way
// rigatoni's interface layer does: insert/update take (rows) or
// (keys, rows); remove takes (keys); clear takes no args;
// update_selection takes a single Selection-shaped argument.
func tableMethodHandler(name string, delegate scene.TableDelegate) dispatch.Handler {
	return func(ctx context.Context, call dispatch.Context, args []any) (any, error) {
		switch name {
		case "tbl_insert":
			rows, err := decodeRows(args, 0)
			if err != nil {
				return nil, err
			}
			keys, err := delegate.HandleInsert(ctx, nil, rows)
			if err != nil {
				return nil, err
			}
			return keys, nil

		case "tbl_update":
			if len(args) < 2 {
				return nil, dispatch.NewInvalidParams("tbl_update requires (keys, rows)")
			}
			keys, err := decodeKeys(args[0])
			if err != nil {
				return nil, err
			}
			rows, err := decodeRows(args, 1)
			if err != nil {
				return nil, err
			}
			return nil, delegate.HandleUpdate(ctx, keys, rows)

		case "tbl_remove":
			if len(args) < 1 {
				return nil, dispatch.NewInvalidParams("tbl_remove requires (keys)")
			}
			keys, err := decodeKeys(args[0])
			if err != nil {
				return nil, err
			}
			return nil, delegate.HandleRemove(ctx, keys)

		case "tbl_clear":
			return nil, delegate.HandleClear(ctx)

		case "tbl_update_selection":
			if len(args) < 1 {
				return nil, dispatch.NewInvalidParams("tbl_update_selection requires (selection)")
			}
			sel, err := decodeSelection(args[0])
			if err != nil {
				return nil, dispatch.NewInvalidParams("tbl_update_selection: %v", err)
			}
			return nil, delegate.HandleUpdateSelection(ctx, sel)

		default:
			return nil, dispatch.NewInvalidParams("unknown table method %s", name)
		}
	}
}

func decodeKeys(arg any) ([]int64, error) {
	raw, ok := arg.([]any)
	if !ok {
		return nil, dispatch.NewInvalidParams("keys argument must be an array")
	}
	keys := make([]int64, len(raw))
	for i, v := range raw {
		n, ok := toInt64(v)
		if !ok {
			return nil, dispatch.NewInvalidParams("key %d is not an integer", i)
		}
		keys[i] = n
	}
	return keys, nil
}

func decodeRows(args []any, idx int) ([][]any, error) {
	if idx >= len(args) {
		return nil, dispatch.NewInvalidParams("missing rows argument")
	}
	raw, ok := args[idx].([]any)
	if !ok {
		return nil, dispatch.NewInvalidParams("rows argument must be an array")
	}
	rows := make([][]any, len(raw))
	for i, v := range raw {
		row, ok := v.([]any)
		if !ok {
			return nil, dispatch.NewInvalidParams("row %d is not an array", i)
		}
		rows[i] = row
	}
	return rows, nil
}

// decodeSelection round-trips a generically-decoded CBOR argument back
// through the codec into a typed scene.Selection: args arrive as
// []any/map[string]any from the frame's single generic decode pass, so
// this is the simplest way to recover the concrete shape a specific
// argument is supposed to have.
func decodeSelection(arg any) (scene.Selection, error) {
	var sel scene.Selection
	raw, err := cbor.Marshal(arg)
	if err != nil {
		return sel, fmt.Errorf("re-encode selection argument: %w", err)
	}
	if err := cbor.Unmarshal(raw, &sel); err != nil {
		return sel, fmt.Errorf("decode selection argument: %w", err)
	}
	return sel, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
