package rows

import (
	"fmt"
	"slices"
	"sync"

	"github.com/arloliu/rankalloc/types"
)

// Record is one row: a routing key and an opaque payload.
type Record struct {
	Key  []byte `json:"key"`
	Data []byte `json:"data"`
}

type slot struct {
	rec  Record
	live bool
}

// Table is a slot table of records owned by one rank.
//
// Indices are stable while a row stays on the rank. Cleared slots go to a
// free list and are reused by Insert, lowest index first.
type Table struct {
	mapper types.BlockMapper

	mu    sync.RWMutex
	slots []slot
	free  []int
	live  int
}

// NewTable creates an empty table whose rows are assigned to blocks by mapper.
//
// Parameters:
//   - mapper: Key to block mapping shared with the allocator
//
// Returns:
//   - *Table: Empty table
func NewTable(mapper types.BlockMapper) *Table {
	return &Table{mapper: mapper}
}

// Insert stores rec and returns its index.
func (t *Table) Insert(rec Record) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.insertLocked(rec)
}

func (t *Table) insertLocked(rec Record) int {
	t.live++
	if n := len(t.free); n > 0 {
		idx := t.free[0]
		t.free = t.free[1:]
		t.slots[idx] = slot{rec: rec, live: true}

		return idx
	}
	t.slots = append(t.slots, slot{rec: rec, live: true})

	return len(t.slots) - 1
}

// Get returns the record at idx.
//
// Returns:
//   - Record: Stored record
//   - error: ErrRowNotFound if idx is out of range or cleared
func (t *Table) Get(idx int) (Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.liveLocked(idx) {
		return Record{}, fmt.Errorf("row %d: %w", idx, types.ErrRowNotFound)
	}

	return t.slots[idx].rec, nil
}

// Update replaces the payload of the row at idx.
func (t *Table) Update(idx int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.liveLocked(idx) {
		return fmt.Errorf("row %d: %w", idx, types.ErrRowNotFound)
	}
	t.slots[idx].rec.Data = data

	return nil
}

// Clear removes the row at idx and frees its slot.
func (t *Table) Clear(idx int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.liveLocked(idx) {
		return fmt.Errorf("row %d: %w", idx, types.ErrRowNotFound)
	}
	t.clearLocked(idx)

	return nil
}

func (t *Table) clearLocked(idx int) {
	t.slots[idx] = slot{}
	t.live--
	pos, _ := slices.BinarySearch(t.free, idx)
	t.free = slices.Insert(t.free, pos, idx)
}

func (t *Table) liveLocked(idx int) bool {
	return idx >= 0 && idx < len(t.slots) && t.slots[idx].live
}

// Len returns the number of live rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.live
}

// HighWater returns one past the highest slot index ever used.
func (t *Table) HighWater() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.slots)
}

// BlockOf returns the block of the row at idx.
func (t *Table) BlockOf(idx int) (int, error) {
	rec, err := t.Get(idx)
	if err != nil {
		return 0, err
	}

	return t.mapper.BlockOf(rec.Key), nil
}

// BlockRows returns the indices of live rows mapped to block, in ascending order.
func (t *Table) BlockRows(block int) []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []int
	for idx, s := range t.slots {
		if s.live && t.mapper.BlockOf(s.rec.Key) == block {
			out = append(out, idx)
		}
	}

	return out
}

// Range calls fn for every live row in index order until fn returns false.
//
// fn must not modify the table.
func (t *Table) Range(fn func(idx int, rec Record) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for idx, s := range t.slots {
		if s.live && !fn(idx, s.rec) {
			return
		}
	}
}

// take removes rows and returns their records in the given order.
//
// Nothing is removed unless every index refers to a live row.
func (t *Table) take(rows []int) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, idx := range rows {
		if !t.liveLocked(idx) {
			return nil, fmt.Errorf("row %d: %w", idx, types.ErrRowNotFound)
		}
	}

	out := make([]Record, len(rows))
	for i, idx := range rows {
		out[i] = t.slots[idx].rec
		t.clearLocked(idx)
	}

	return out, nil
}

// land inserts records in order and reports each new index to onRow.
func (t *Table) land(records []Record, onRow func(newIndex int)) {
	for _, rec := range records {
		idx := t.Insert(rec)
		if onRow != nil {
			onRow(idx)
		}
	}
}
