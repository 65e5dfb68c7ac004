// Package hooks provides default hook implementations.
package hooks

import "github.com/arloliu/rankalloc/types"

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(types.State, types.State, string) = (*NopHooks)(nil).OnStateChanged
	_ func(uint64, string, []float64)        = (*NopHooks)(nil).OnRound
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnStateChanged: h.OnStateChanged,
		OnRound:        h.OnRound,
	}
}

// Fill returns hooks with every nil callback replaced by a no-op.
func Fill(h *types.Hooks) types.Hooks {
	out := NewNop()
	if h == nil {
		return out
	}
	if h.OnStateChanged != nil {
		out.OnStateChanged = h.OnStateChanged
	}
	if h.OnRound != nil {
		out.OnRound = h.OnRound
	}

	return out
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(_, _ types.State, _ string) {}

// OnRound is a no-op implementation.
func (h *NopHooks) OnRound(_ uint64, _ string, _ []float64) {}
