package scene

import (
	"context"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/noodles-scene/noodles-server/internal/core/ids"
)

// nameEntry is one bucket slot of the name index: the literal name plus
// the ID it currently resolves to. Names are not unique; ComponentIDByName
// returns the most recently created entry for a name, per spec §3.2.
type nameEntry struct {
	name string
	id   ids.ID
}

// Registry is the authoritative, single-threaded store of every live
// component. It is only ever touched from the server's core loop (spec
// §5); it carries no internal locking.
type Registry struct {
	alloc *ids.Allocator

	components map[ids.ID]Component
	// order records every ID ever created, in creation order. Deleted
	// IDs remain in order (their components map entry is removed) so
	// Snapshot's outer driver loop has a stable, deterministic sequence
	// to walk without re-sorting a live set each time.
	order []ids.ID

	// reverseRefs[target] is the set of IDs that currently reference
	// target, mirroring rigatoni.core.ComponentServer's self.references:
	// keyed by the referenced component, valued by its referencers.
	reverseRefs map[ids.ID]map[ids.ID]struct{}

	delegates map[ids.ID]Delegate

	nameBuckets map[uint64][]nameEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		alloc:       ids.NewAllocator(),
		components:  make(map[ids.ID]Component),
		reverseRefs: make(map[ids.ID]map[ids.ID]struct{}),
		delegates:   make(map[ids.ID]Delegate),
		nameBuckets: make(map[uint64][]nameEntry),
	}
}

// alive reports whether id currently names a live, registered component.
// It is passed as the lookup callback into each component's validate.
func (r *Registry) alive(id ids.ID) bool {
	_, ok := r.components[id]
	return ok
}

// Get returns the live component for id.
func (r *Registry) Get(id ids.ID) (Component, bool) {
	c, ok := r.components[id]
	return c, ok
}

// IDsByKind returns every live ID of the given kind, in creation order.
func (r *Registry) IDsByKind(kind ids.Kind) []ids.ID {
	var out []ids.ID
	for _, id := range r.order {
		if id.Kind != kind {
			continue
		}
		if _, ok := r.components[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// ComponentIDByName resolves a name within kind to the most recently
// created live component with that name, per spec §3.2.
func (r *Registry) ComponentIDByName(kind ids.Kind, name string) (ids.ID, bool) {
	bucket := r.nameBuckets[xxhash.Sum64String(name)]
	var found ids.ID
	ok := false
	for _, e := range bucket {
		if e.name != name || e.id.Kind != kind {
			continue
		}
		if _, live := r.components[e.id]; !live {
			continue
		}
		// Bucket entries are appended in creation order; keep the last
		// match seen so the most recently created component wins.
		found = e.id
		ok = true
	}
	return found, ok
}

// Delegate returns the delegate attached to id, if any.
func (r *Registry) Delegate(id ids.ID) (Delegate, bool) {
	d, ok := r.delegates[id]
	return d, ok
}

// IsReferenced reports whether any live component currently references
// id — used to tell a document-level (global) Method or Signal apart
// from one attached to a specific entity/table/plot's methods_list/
// signals_list.
func (r *Registry) IsReferenced(id ids.ID) bool {
	return len(r.reverseRefs[id]) > 0
}

func (r *Registry) addReverseRefs(id ids.ID, refs []ids.ID) {
	for _, target := range refs {
		if target.IsNil() {
			continue
		}
		set := r.reverseRefs[target]
		if set == nil {
			set = make(map[ids.ID]struct{})
			r.reverseRefs[target] = set
		}
		set[id] = struct{}{}
	}
}

func (r *Registry) removeReverseRefs(id ids.ID, refs []ids.ID) {
	for _, target := range refs {
		if set, ok := r.reverseRefs[target]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.reverseRefs, target)
			}
		}
	}
}

// Create validates c against the current registry (referential
// integrity, per-kind shape rules), admits it, indexes its name and
// references, and attaches delegate if non-nil. ctx is forwarded to
// delegate.OnCreate.
func (r *Registry) Create(ctx context.Context, c Component, delegate Delegate) error {
	id := c.ComponentID()
	if !id.Kind.Valid() {
		return fmt.Errorf("%w: %v", ErrWrongKind, id.Kind)
	}
	if _, exists := r.components[id]; exists {
		return fmt.Errorf("scene: id %v already registered", id)
	}
	if err := c.validate(r.alive); err != nil {
		return err
	}

	r.components[id] = c
	r.order = append(r.order, id)
	r.addReverseRefs(id, c.References())

	if name := c.Name(); name != "" {
		h := xxhash.Sum64String(name)
		r.nameBuckets[h] = append(r.nameBuckets[h], nameEntry{name: name, id: id})
	}

	if delegate != nil {
		r.delegates[id] = delegate
		if err := delegate.OnCreate(ctx, id); err != nil {
			return fmt.Errorf("scene: delegate OnCreate %v: %w", id, err)
		}
	}
	return nil
}

// Update applies delta to the live component named by id, re-validating
// the result before committing it, and returns the same delta back to
// the caller (server.Runtime) to broadcast as the matching Update<Kind>
// payload alongside id.
func (r *Registry) Update(id ids.ID, delta Delta) (Delta, error) {
	c, ok := r.components[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
	}

	// Stage the delta on a clone: applyDelta/validate must never leave
	// the live component mutated on a validation failure (spec §7,
	// registry operations are atomic at the operation boundary).
	staged := c.clone()
	if err := staged.applyDelta(delta); err != nil {
		return nil, fmt.Errorf("scene: apply delta to %v: %w", id, err)
	}
	if err := staged.validate(r.alive); err != nil {
		return nil, err
	}

	r.components[id] = staged
	r.removeReverseRefs(id, c.References())
	r.addReverseRefs(id, staged.References())
	return delta, nil
}

// Delete removes id from the registry. It fails with ErrInUse if any
// other live component still references id.
func (r *Registry) Delete(ctx context.Context, id ids.ID) error {
	c, ok := r.components[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	if set, ok := r.reverseRefs[id]; ok && len(set) > 0 {
		return fmt.Errorf("%w: %v referenced by %d component(s)", ErrInUse, id, len(set))
	}

	if delegate, ok := r.delegates[id]; ok {
		if err := delegate.OnDelete(ctx, id); err != nil {
			return fmt.Errorf("scene: delegate OnDelete %v: %w", id, err)
		}
		delete(r.delegates, id)
	}

	r.removeReverseRefs(id, c.References())
	delete(r.components, id)
	if err := r.alloc.Free(id); err != nil {
		return fmt.Errorf("scene: free %v: %w", id, err)
	}
	return nil
}

// Alloc reserves a fresh ID of kind. Callers build the component struct
// around it before passing it to Create.
func (r *Registry) Alloc(kind ids.Kind) ids.ID {
	return r.alloc.Alloc(kind)
}

// Snapshot returns every live component in dependency order: a
// component referenced by another always appears before its referencer.
// Ported from rigatoni.core.order_components/top_sort_recurse, which
// recurses through the reverse-reference map (dependents) in a
// post-order DFS and reverses the result, so dependencies settle before
// the components that point at them.
func (r *Registry) Snapshot() []Component {
	visited := make(map[ids.ID]bool, len(r.components))
	stack := make([]Component, 0, len(r.components))

	var visit func(id ids.ID)
	visit = func(id ids.ID) {
		visited[id] = true
		dependents := make([]ids.ID, 0, len(r.reverseRefs[id]))
		for dependent := range r.reverseRefs[id] {
			dependents = append(dependents, dependent)
		}
		sort.Slice(dependents, func(i, j int) bool { return dependents[i].Less(dependents[j]) })
		for _, dependent := range dependents {
			if !visited[dependent] {
				visit(dependent)
			}
		}
		stack = append(stack, r.components[id])
	}

	for _, id := range r.order {
		if _, live := r.components[id]; !live {
			continue
		}
		if !visited[id] {
			visit(id)
		}
	}

	out := make([]Component, len(stack))
	for i, c := range stack {
		out[len(stack)-1-i] = c
	}
	return out
}
