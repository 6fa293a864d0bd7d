// Package ids implements the typed (kind, slot, generation) identifiers
// used throughout the scene graph, and the per-kind slot allocator that
// issues and retires them.
package ids

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind identifies which component table an ID belongs to.
type Kind uint8

const (
	// KindUnspecified is not a real kind; it is the Kind of the null ID
	// so that the zero value of ID can never alias a live component.
	KindUnspecified Kind = iota
	KindMethod
	KindSignal
	KindEntity
	KindPlot
	KindBuffer
	KindBufferView
	KindMaterial
	KindImage
	KindTexture
	KindSampler
	KindLight
	KindGeometry
	KindTable

	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindUnspecified:
		return "Unspecified"
	case KindMethod:
		return "Method"
	case KindSignal:
		return "Signal"
	case KindEntity:
		return "Entity"
	case KindPlot:
		return "Plot"
	case KindBuffer:
		return "Buffer"
	case KindBufferView:
		return "BufferView"
	case KindMaterial:
		return "Material"
	case KindImage:
		return "Image"
	case KindTexture:
		return "Texture"
	case KindSampler:
		return "Sampler"
	case KindLight:
		return "Light"
	case KindGeometry:
		return "Geometry"
	case KindTable:
		return "Table"
	default:
		return "Unknown"
	}
}

// Valid reports whether k is one of the thirteen defined component kinds.
func (k Kind) Valid() bool {
	return k > KindUnspecified && k < kindCount
}

// Kinds returns every defined kind, in tag-table order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindMethod; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ID is a typed identifier: a component kind plus a (slot, generation)
// pair. Two IDs are equal iff kind, slot, and generation all match.
// The zero value is the null ID and never refers to a live component.
type ID struct {
	Kind       Kind
	Slot       uint32
	Generation uint32
}

// IsNil reports whether id is the null ID (the zero value).
func (id ID) IsNil() bool {
	return id == ID{}
}

func (id ID) String() string {
	if id.IsNil() {
		return fmt.Sprintf("%s(nil)", id.Kind)
	}
	return fmt.Sprintf("%s(%d/%d)", id.Kind, id.Slot, id.Generation)
}

// Less establishes the (kind, slot, generation) ordering used when a
// deterministic iteration order over IDs is needed (e.g. snapshot ties).
func (id ID) Less(other ID) bool {
	if id.Kind != other.Kind {
		return id.Kind < other.Kind
	}
	if id.Slot != other.Slot {
		return id.Slot < other.Slot
	}
	return id.Generation < other.Generation
}

// MarshalCBOR encodes id as the two-element [slot, generation] array used
// on the wire. The kind is never part of the wire representation — it is
// always implied by the field the ID appears in (e.g. a GeometryID only
// ever shows up in a "mesh" field).
func (id ID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([2]uint32{id.Slot, id.Generation})
}

// UnmarshalCBOR decodes the [slot, generation] wire pair into id's Slot
// and Generation fields. Kind is left untouched: the caller must set it
// from context immediately after decoding.
func (id *ID) UnmarshalCBOR(data []byte) error {
	var pair [2]uint32
	if err := cbor.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("ids: decode id: %w", err)
	}
	id.Slot, id.Generation = pair[0], pair[1]
	return nil
}

// slotState tracks the current generation of a slot. retired set means
// the slot was retired after generation overflow and must never be
// reissued.
type slotState struct {
	generation uint32
	retired    bool
	free       bool
}

const maxGeneration = ^uint32(0)

// kindTable is the per-kind bookkeeping described in spec section 4.A:
// a vector of slot states plus a stack of free slots.
type kindTable struct {
	slots []slotState
	free  []uint32
}

// Allocator issues and retires typed IDs. It is not safe for concurrent
// use: per the server's single-threaded core-loop concurrency model, an
// Allocator is only ever touched from that loop.
type Allocator struct {
	tables [kindCount]kindTable
}

// NewAllocator returns a fresh allocator with no slots issued in any kind.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Alloc reserves a slot for kind, reusing the most recently freed slot
// (via the free stack) if one is available, and otherwise appending a
// new slot at generation 0.
func (a *Allocator) Alloc(kind Kind) ID {
	t := &a.tables[kind]

	for len(t.free) > 0 {
		slot := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		state := &t.slots[slot]
		if state.retired {
			// Retired slots never re-enter circulation; drop and keep popping.
			continue
		}
		state.free = false
		return ID{Kind: kind, Slot: slot, Generation: state.generation}
	}

	slot := uint32(len(t.slots))
	t.slots = append(t.slots, slotState{generation: 0})
	return ID{Kind: kind, Slot: slot, Generation: 0}
}

// Free retires id's slot generation and, unless the generation counter
// has been exhausted, returns the slot to the free stack under a bumped
// generation. Freeing a stale or already-free id is an error.
func (a *Allocator) Free(id ID) error {
	if !id.Kind.Valid() {
		return fmt.Errorf("ids: invalid kind %v", id.Kind)
	}
	t := &a.tables[id.Kind]
	if int(id.Slot) >= len(t.slots) {
		return fmt.Errorf("ids: unknown slot %v", id)
	}
	state := &t.slots[id.Slot]
	if state.free || state.generation != id.Generation {
		return fmt.Errorf("ids: %v is not live", id)
	}

	state.free = true
	if state.generation == maxGeneration {
		state.retired = true
		return nil
	}
	state.generation++
	t.free = append(t.free, id.Slot)
	return nil
}

// Alive reports whether id currently names a live slot: the slot exists,
// is not marked free, and its generation matches id's.
func (a *Allocator) Alive(id ID) bool {
	if !id.Kind.Valid() || id.IsNil() {
		return false
	}
	t := &a.tables[id.Kind]
	if int(id.Slot) >= len(t.slots) {
		return false
	}
	state := t.slots[id.Slot]
	return !state.free && state.generation == id.Generation
}
