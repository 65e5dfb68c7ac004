package rankalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectOrdinal(t *testing.T) {
	tests := []struct {
		name   string
		blocks []int
		cost   map[int]float64
		want   int
	}{
		{"empty list", nil, nil, 0},
		{"single block", []int{3}, map[int]float64{3: 5}, 0},
		{"all equal falls back to first", []int{4, 0, 9}, map[int]float64{4: 2, 0: 2, 9: 2}, 0},
		{"first strictly below mean", []int{5, 1, 7, 2}, map[int]float64{5: 10, 1: 1, 7: 1, 2: 8}, 1},
		{"below mean late in list", []int{0, 1, 2}, map[int]float64{0: 10, 1: 10, 2: 1}, 2},
		{"zero work block is below mean", []int{8, 6}, map[int]float64{8: 3, 6: 0}, 1},
		{"all zero falls back to first", []int{1, 2}, map[int]float64{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectOrdinal(tt.blocks, func(b int) float64 { return tt.cost[b] })
			require.Equal(t, tt.want, got)
		})
	}
}

func TestArgMinMax(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		imin, imax int
	}{
		{"distinct", []float64{3, 1, 4, 2}, 1, 2},
		{"ties pick lowest index", []float64{5, 1, 5, 1}, 1, 0},
		{"all equal", []float64{2, 2, 2}, 0, 0},
		{"single", []float64{7}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imin, imax := argMinMax(tt.values)
			require.Equal(t, tt.imin, imin)
			require.Equal(t, tt.imax, imax)
		})
	}
}
