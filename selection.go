package rankalloc

// selectOrdinal picks the block the busiest rank gives away.
//
// It returns the position, within blocks, of the first block whose work time
// is strictly below the mean over blocks. Handing over a below-average block
// avoids overshooting the receiver. When every block carries the same work,
// position 0 is returned.
func selectOrdinal(blocks []int, seconds func(block int) float64) int {
	if len(blocks) == 0 {
		return 0
	}

	var total float64
	for _, b := range blocks {
		total += seconds(b)
	}
	mean := total / float64(len(blocks))

	for i, b := range blocks {
		if seconds(b) < mean {
			return i
		}
	}

	return 0
}
