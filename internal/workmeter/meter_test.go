package workmeter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMeter_RecordAndSum(t *testing.T) {
	m := New(4)
	require.Equal(t, 4, m.Len())

	require.True(t, m.Record(0, 100*time.Millisecond))
	require.True(t, m.Record(0, 50*time.Millisecond))
	require.True(t, m.Record(2, time.Second))

	require.InDelta(t, 0.15, m.Seconds(0), 1e-9)
	require.InDelta(t, 0.0, m.Seconds(1), 1e-9)
	require.InDelta(t, 1.15, m.Sum([]int{0, 2}), 1e-9)
	require.InDelta(t, 0.15, m.Sum([]int{0, 1}), 1e-9)
	require.Equal(t, []float64{0.15, 0, 1, 0}, m.Snapshot())
}

func TestMeter_RejectsOutOfRange(t *testing.T) {
	m := New(2)

	require.False(t, m.Record(-1, time.Second))
	require.False(t, m.Record(2, time.Second))
	require.InDelta(t, 0.0, m.Sum([]int{0, 1}), 1e-9)
}

func TestMeter_Reset(t *testing.T) {
	m := New(3)
	m.Record(1, time.Second)
	m.Reset()

	require.Equal(t, []float64{0, 0, 0}, m.Snapshot())
}

func TestMeter_ConcurrentRecord(t *testing.T) {
	m := New(2)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				m.Record(1, time.Microsecond)
			}
		}()
	}
	wg.Wait()

	require.InDelta(t, (8 * 1000 * time.Microsecond).Seconds(), m.Seconds(1), 1e-9)
}
