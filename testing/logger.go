package testing

import (
	"testing"

	"github.com/arloliu/rankalloc/internal/logging"
	"github.com/arloliu/rankalloc/types"
)

// NewTestLogger creates a new logger instance that writes to the testing.TB logger.
// This is useful for seeing log output during test runs.
func NewTestLogger(t testing.TB) types.Logger {
	return logging.NewTest(t)
}

// NewRankLogger creates a test logger whose lines are tagged with rank.
func NewRankLogger(t testing.TB, rank int) types.Logger {
	return logging.NewTest(t).ForRank(rank)
}
