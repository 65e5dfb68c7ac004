package collective

import (
	"context"
	"fmt"

	"github.com/arloliu/rankalloc/types"
)

// local is the single-rank collective.
type local struct{}

// Local returns a collective of size 1 whose operations return immediately.
func Local() types.Collective {
	return local{}
}

func (local) Rank() int { return 0 }

func (local) Size() int { return 1 }

func (local) AllGather(ctx context.Context, value float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return []float64{value}, nil
}

func (local) Broadcast(ctx context.Context, value int, root int) (int, error) {
	if root != 0 {
		return 0, fmt.Errorf("broadcast root %d of size 1: %w", root, types.ErrRankOutOfRange)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return value, nil
}
