package dependent

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/rankalloc/rows"
	"github.com/arloliu/rankalloc/types"
)

// KeyIndex maps record keys to their local row index in a rows.Table.
//
// Registered with the allocator, it drops the keys of departing rows before
// the transfer and indexes every landed row as it arrives.
type KeyIndex struct {
	table *rows.Table
	index *xsync.Map[string, int]
}

var _ types.Dependent = (*KeyIndex)(nil)

// NewKeyIndex creates an index over table, indexing the rows already present.
//
// Parameters:
//   - table: Rows owned by this rank
//
// Returns:
//   - *KeyIndex: Index in step with table
func NewKeyIndex(table *rows.Table) *KeyIndex {
	k := &KeyIndex{
		table: table,
		index: xsync.NewMap[string, int](),
	}
	k.Rebuild()

	return k
}

// Rebuild discards the index and re-reads every live row of the table.
func (k *KeyIndex) Rebuild() {
	k.index.Clear()
	k.table.Range(func(idx int, rec rows.Record) bool {
		k.index.Store(string(rec.Key), idx)
		return true
	})
}

// Put inserts rec, or replaces the payload of the row already holding rec.Key.
//
// Put must not run concurrently with itself for the same key, nor during a migration.
//
// Returns:
//   - int: Local row index of the record
func (k *KeyIndex) Put(rec rows.Record) int {
	if idx, ok := k.index.Load(string(rec.Key)); ok {
		if err := k.table.Update(idx, rec.Data); err == nil {
			return idx
		}
	}

	idx := k.table.Insert(rec)
	k.index.Store(string(rec.Key), idx)

	return idx
}

// Lookup returns the local row index of key.
func (k *KeyIndex) Lookup(key []byte) (int, bool) {
	return k.index.Load(string(key))
}

// Get returns the record stored under key.
func (k *KeyIndex) Get(key []byte) (rows.Record, error) {
	idx, ok := k.index.Load(string(key))
	if !ok {
		return rows.Record{}, fmt.Errorf("key %q: %w", key, types.ErrRowNotFound)
	}

	return k.table.Get(idx)
}

// Len returns the number of indexed keys.
func (k *KeyIndex) Len() int {
	return k.index.Size()
}

// BeforeBlockTransfer drops the departing rows from the index (sender only).
func (k *KeyIndex) BeforeBlockTransfer(_ context.Context, m types.Migration) error {
	for _, idx := range m.Rows {
		rec, err := k.table.Get(idx)
		if err != nil {
			return fmt.Errorf("indexing departure of block %d: %w", m.Block, err)
		}
		key := string(rec.Key)
		if cur, ok := k.index.Load(key); ok && cur == idx {
			k.index.Delete(key)
		}
	}

	return nil
}

// OnRowReceived indexes a landed row.
func (k *KeyIndex) OnRowReceived(newIndex int) {
	rec, err := k.table.Get(newIndex)
	if err != nil {
		return
	}
	k.index.Store(string(rec.Key), newIndex)
}

// AfterBlockTransfer has nothing to do; the index is complete once rows have landed.
func (k *KeyIndex) AfterBlockTransfer(context.Context, types.Migration) error {
	return nil
}
