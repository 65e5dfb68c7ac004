// Package registry keeps the non-owning set of dependents notified around a migration.
package registry

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/rankalloc/types"
)

// Registry stores dependents under monotonically increasing handles.
//
// Notification order is registration order, so every rank that registers its
// dependents in the same sequence observes the same call order.
type Registry struct {
	deps   *xsync.Map[uint64, types.Dependent]
	nextID atomic.Uint64
}

// Registration is the handle returned by Register.
//
// Calling Unregister is the dependent's teardown hook; it is idempotent.
type Registration struct {
	id       uint64
	registry *Registry
	done     atomic.Bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{deps: xsync.NewMap[uint64, types.Dependent]()}
}

// Register adds dep and returns its registration handle.
func (r *Registry) Register(dep types.Dependent) *Registration {
	id := r.nextID.Add(1)
	r.deps.Store(id, dep)

	return &Registration{id: id, registry: r}
}

// Unregister removes the dependent. Safe to call more than once.
func (reg *Registration) Unregister() {
	if reg == nil || !reg.done.CompareAndSwap(false, true) {
		return
	}
	reg.registry.deps.Delete(reg.id)
}

// Len returns the number of registered dependents.
func (r *Registry) Len() int {
	return r.deps.Size()
}

// Snapshot returns the registered dependents in registration order.
//
// Dependents unregistered after the snapshot is taken are still notified for
// the migration in progress.
func (r *Registry) Snapshot() []types.Dependent {
	type entry struct {
		id  uint64
		dep types.Dependent
	}

	entries := make([]entry, 0, r.deps.Size())
	r.deps.Range(func(id uint64, dep types.Dependent) bool {
		entries = append(entries, entry{id: id, dep: dep})
		return true
	})
	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		default:
			return 0
		}
	})

	out := make([]types.Dependent, len(entries))
	for i, e := range entries {
		out[i] = e.dep
	}

	return out
}

// Notifier fans migration callbacks out to a fixed snapshot of dependents.
type Notifier struct {
	deps []types.Dependent
}

// Notifier captures the current dependents for one migration.
func (r *Registry) Notifier() *Notifier {
	return &Notifier{deps: r.Snapshot()}
}

// Before calls BeforeBlockTransfer on every dependent, stopping at the first error.
func (n *Notifier) Before(ctx context.Context, m types.Migration) error {
	for _, d := range n.deps {
		if err := d.BeforeBlockTransfer(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

// RowReceived calls OnRowReceived on every dependent.
func (n *Notifier) RowReceived(newIndex int) {
	for _, d := range n.deps {
		d.OnRowReceived(newIndex)
	}
}

// After calls AfterBlockTransfer on every dependent, stopping at the first error.
func (n *Notifier) After(ctx context.Context, m types.Migration) error {
	for _, d := range n.deps {
		if err := d.AfterBlockTransfer(ctx, m); err != nil {
			return err
		}
	}

	return nil
}
