package rows

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/rankalloc/internal/hash"
	"github.com/arloliu/rankalloc/types"
)

func key(i int) []byte {
	return []byte(fmt.Sprintf("walker-%04d", i))
}

func TestTable_InsertGetClear(t *testing.T) {
	tbl := NewTable(hash.NewBlockHasher(4, 0))

	a := tbl.Insert(Record{Key: key(1), Data: []byte("a")})
	b := tbl.Insert(Record{Key: key(2), Data: []byte("b")})
	require.Equal(t, 0, a)
	require.Equal(t, 1, b)
	require.Equal(t, 2, tbl.Len())

	rec, err := tbl.Get(b)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), rec.Data)

	require.NoError(t, tbl.Update(b, []byte("b2")))
	rec, err = tbl.Get(b)
	require.NoError(t, err)
	require.Equal(t, []byte("b2"), rec.Data)

	require.NoError(t, tbl.Clear(a))
	require.Equal(t, 1, tbl.Len())
	require.Equal(t, 2, tbl.HighWater())

	_, err = tbl.Get(a)
	require.ErrorIs(t, err, types.ErrRowNotFound)
	require.ErrorIs(t, tbl.Clear(a), types.ErrRowNotFound)
	require.ErrorIs(t, tbl.Update(a, nil), types.ErrRowNotFound)
	_, err = tbl.Get(99)
	require.ErrorIs(t, err, types.ErrRowNotFound)
}

func TestTable_ReusesLowestFreeSlot(t *testing.T) {
	tbl := NewTable(hash.NewBlockHasher(4, 0))
	for i := range 5 {
		tbl.Insert(Record{Key: key(i)})
	}

	require.NoError(t, tbl.Clear(3))
	require.NoError(t, tbl.Clear(1))

	require.Equal(t, 1, tbl.Insert(Record{Key: key(10)}))
	require.Equal(t, 3, tbl.Insert(Record{Key: key(11)}))
	require.Equal(t, 5, tbl.Insert(Record{Key: key(12)}))
	require.Equal(t, 6, tbl.HighWater())
}

func TestTable_BlockRows(t *testing.T) {
	mapper := hash.NewBlockHasher(4, 7)
	tbl := NewTable(mapper)

	want := map[int][]int{}
	for i := range 40 {
		k := key(i)
		idx := tbl.Insert(Record{Key: k})
		b := mapper.BlockOf(k)
		want[b] = append(want[b], idx)
	}

	// Cleared slots are skipped.
	require.NoError(t, tbl.Clear(0))
	b0 := mapper.BlockOf(key(0))
	want[b0] = want[b0][1:]

	total := 0
	for b := range 4 {
		got := tbl.BlockRows(b)
		require.Equal(t, len(want[b]), len(got), "block %d", b)
		if len(want[b]) > 0 {
			require.Equal(t, want[b], got)
		}
		total += len(got)

		for _, idx := range got {
			blk, err := tbl.BlockOf(idx)
			require.NoError(t, err)
			require.Equal(t, b, blk)
		}
	}
	require.Equal(t, 39, total)
}

func TestTable_Range(t *testing.T) {
	tbl := NewTable(hash.NewBlockHasher(2, 0))
	for i := range 4 {
		tbl.Insert(Record{Key: key(i)})
	}
	require.NoError(t, tbl.Clear(2))

	var seen []int
	tbl.Range(func(idx int, _ Record) bool {
		seen = append(seen, idx)
		return true
	})
	require.Equal(t, []int{0, 1, 3}, seen)

	seen = nil
	tbl.Range(func(idx int, _ Record) bool {
		seen = append(seen, idx)
		return false
	})
	require.Equal(t, []int{0}, seen)
}

func TestTable_TakeIsAllOrNothing(t *testing.T) {
	tbl := NewTable(hash.NewBlockHasher(2, 0))
	tbl.Insert(Record{Key: key(0)})
	tbl.Insert(Record{Key: key(1)})

	_, err := tbl.take([]int{0, 5})
	require.ErrorIs(t, err, types.ErrRowNotFound)
	require.Equal(t, 2, tbl.Len())

	recs, err := tbl.take([]int{1, 0})
	require.NoError(t, err)
	require.Equal(t, key(1), recs[0].Key)
	require.Equal(t, key(0), recs[1].Key)
	require.Equal(t, 0, tbl.Len())
}
