package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/arloliu/rankalloc/types"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name string
	log  *[]string
	fail bool
}

func (r *recorder) BeforeBlockTransfer(_ context.Context, m types.Migration) error {
	*r.log = append(*r.log, fmt.Sprintf("%s:before:%d", r.name, m.Block))
	if r.fail {
		return errors.New("before failed")
	}

	return nil
}

func (r *recorder) OnRowReceived(newIndex int) {
	*r.log = append(*r.log, fmt.Sprintf("%s:row:%d", r.name, newIndex))
}

func (r *recorder) AfterBlockTransfer(_ context.Context, m types.Migration) error {
	*r.log = append(*r.log, fmt.Sprintf("%s:after:%d", r.name, m.Block))
	return nil
}

func TestRegistry_RegistrationOrder(t *testing.T) {
	var log []string
	reg := New()
	for i := range 5 {
		reg.Register(&recorder{name: fmt.Sprintf("d%d", i), log: &log})
	}
	require.Equal(t, 5, reg.Len())

	n := reg.Notifier()
	require.NoError(t, n.Before(t.Context(), types.Migration{Block: 1}))

	require.Equal(t, []string{"d0:before:1", "d1:before:1", "d2:before:1", "d3:before:1", "d4:before:1"}, log)
}

func TestRegistry_Unregister(t *testing.T) {
	var log []string
	reg := New()
	a := reg.Register(&recorder{name: "a", log: &log})
	reg.Register(&recorder{name: "b", log: &log})

	a.Unregister()
	a.Unregister() // idempotent
	require.Equal(t, 1, reg.Len())

	n := reg.Notifier()
	n.RowReceived(7)
	require.Equal(t, []string{"b:row:7"}, log)
}

func TestRegistry_NilRegistrationUnregister(t *testing.T) {
	var reg *Registration
	require.NotPanics(t, reg.Unregister)
}

func TestNotifier_SnapshotIsStable(t *testing.T) {
	var log []string
	reg := New()
	a := reg.Register(&recorder{name: "a", log: &log})

	n := reg.Notifier()
	a.Unregister()
	reg.Register(&recorder{name: "late", log: &log})

	require.NoError(t, n.After(t.Context(), types.Migration{Block: 2}))
	require.Equal(t, []string{"a:after:2"}, log)
}

func TestNotifier_StopsAtFirstError(t *testing.T) {
	var log []string
	reg := New()
	reg.Register(&recorder{name: "a", log: &log, fail: true})
	reg.Register(&recorder{name: "b", log: &log})

	err := reg.Notifier().Before(t.Context(), types.Migration{Block: 0})
	require.Error(t, err)
	require.Equal(t, []string{"a:before:0"}, log)
}
