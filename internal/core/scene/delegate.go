package scene

import (
	"context"
	"fmt"
	"sync"

	"github.com/noodles-scene/noodles-server/internal/core/ids"
)

// Delegate overrides server behavior for a single component. Most
// components have no delegate; Table is the one kind the spec expects
// applications to routinely delegate, so TableDelegate is the only
// capability set defined so far.
type Delegate interface {
	// OnCreate is called once, synchronously, right after the component
	// is admitted to the registry.
	OnCreate(ctx context.Context, id ids.ID) error
	// OnDelete is called once, synchronously, right before the component
	// is removed from the registry.
	OnDelete(ctx context.Context, id ids.ID) error
}

// TableSignals lets a TableDelegate push row-change notifications back
// out to clients without the registry knowing about row storage.
// [EXPANSION] grounded on original_source/rigatoni/delegates.py's
// table_reset/table_updated/table_rows_removed/table_selection_update
// signal helpers, which spec.md's distillation omitted.
type TableSignals interface {
	TableReset(ctx context.Context, columns []TableColumnInfo, keys []int64, data [][]any) error
	TableUpdated(ctx context.Context, keys []int64, data [][]any) error
	TableRowsRemoved(ctx context.Context, keys []int64) error
	TableSelectionUpdated(ctx context.Context, selection Selection) error
}

// TableDelegate is the capability set a Table's delegate implements. A
// delegate implements all five Handle* methods; server.CreateTable wires
// each built-in table method straight to the matching one.
type TableDelegate interface {
	Delegate

	HandleInsert(ctx context.Context, columns []TableColumnInfo, rows [][]any) ([]int64, error)
	HandleUpdate(ctx context.Context, keys []int64, rows [][]any) error
	HandleRemove(ctx context.Context, keys []int64) error
	HandleClear(ctx context.Context) error
	HandleUpdateSelection(ctx context.Context, selection Selection) error
}

// NopDelegate is a Delegate that does nothing; the default for any
// component not named in a server.Config's delegate factory map.
type NopDelegate struct{}

func (NopDelegate) OnCreate(context.Context, ids.ID) error { return nil }
func (NopDelegate) OnDelete(context.Context, ids.ID) error { return nil }

// InMemoryTableDelegate is a minimal working TableDelegate: rows are
// held in a map keyed by row key, with no persistence. It is grounded
// on the in-memory dict-of-rows approach in
// original_source/rigatoni/delegates.py's default table delegate, and
// is wired through TableSignals so inserts/updates/removes/selection
// changes are echoed back onto the broadcast bus by whatever owns the
// Table component (see server.Runtime).
type InMemoryTableDelegate struct {
	mu      sync.Mutex
	columns []TableColumnInfo
	rows    map[int64][]any
	nextKey int64
	signals TableSignals
}

// NewInMemoryTableDelegate returns a delegate that reports row changes
// through signals. signals may be nil, in which case row mutations are
// applied silently with no signal emitted — used in tests that only
// care about storage semantics.
func NewInMemoryTableDelegate(signals TableSignals) *InMemoryTableDelegate {
	return &InMemoryTableDelegate{rows: make(map[int64][]any), signals: signals}
}

func (d *InMemoryTableDelegate) OnCreate(context.Context, ids.ID) error { return nil }

func (d *InMemoryTableDelegate) OnDelete(context.Context, ids.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = nil
	return nil
}

func (d *InMemoryTableDelegate) HandleInsert(ctx context.Context, columns []TableColumnInfo, rows [][]any) ([]int64, error) {
	d.mu.Lock()
	if d.columns == nil {
		d.columns = columns
	}
	keys := make([]int64, len(rows))
	for i, row := range rows {
		key := d.nextKey
		d.nextKey++
		d.rows[key] = row
		keys[i] = key
	}
	d.mu.Unlock()

	if d.signals == nil {
		return keys, nil
	}
	if err := d.signals.TableUpdated(ctx, keys, rows); err != nil {
		return nil, err
	}
	return keys, nil
}

func (d *InMemoryTableDelegate) HandleUpdate(ctx context.Context, keys []int64, rows [][]any) error {
	if len(keys) != len(rows) {
		return fmt.Errorf("scene: table update key/row count mismatch: %d keys, %d rows", len(keys), len(rows))
	}
	d.mu.Lock()
	for i, key := range keys {
		if _, ok := d.rows[key]; !ok {
			d.mu.Unlock()
			return fmt.Errorf("%w: table row key %d", ErrNotFound, key)
		}
		d.rows[key] = rows[i]
	}
	d.mu.Unlock()

	if d.signals == nil {
		return nil
	}
	return d.signals.TableUpdated(ctx, keys, rows)
}

func (d *InMemoryTableDelegate) HandleRemove(ctx context.Context, keys []int64) error {
	d.mu.Lock()
	for _, key := range keys {
		delete(d.rows, key)
	}
	d.mu.Unlock()

	if d.signals == nil {
		return nil
	}
	return d.signals.TableRowsRemoved(ctx, keys)
}

func (d *InMemoryTableDelegate) HandleClear(ctx context.Context) error {
	d.mu.Lock()
	d.rows = make(map[int64][]any)
	d.mu.Unlock()

	if d.signals == nil {
		return nil
	}
	return d.signals.TableReset(ctx, d.columns, nil, nil)
}

func (d *InMemoryTableDelegate) HandleUpdateSelection(ctx context.Context, selection Selection) error {
	if d.signals == nil {
		return nil
	}
	return d.signals.TableSelectionUpdated(ctx, selection)
}

// Snapshot returns the delegate's current columns, keys, and rows, in
// key order, for a client's init snapshot (TableReset with all rows).
func (d *InMemoryTableDelegate) Snapshot() ([]TableColumnInfo, []int64, [][]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]int64, 0, len(d.rows))
	for k := range d.rows {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	data := make([][]any, len(keys))
	for i, k := range keys {
		data[i] = d.rows[k]
	}
	return d.columns, keys, data
}
