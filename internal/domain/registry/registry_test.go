package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_AddRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(NewEntry("m", rec("a"))))

	err := r.Add(NewEntry("m", rec("b")))
	require.ErrorIs(t, err, ErrNameConflict)

	e, err := r.Get("m")
	require.NoError(t, err)
	require.Equal(t, "a", tagOf(t, e.Current()), "a rejected add must not overwrite")
}

func TestRegistry_GetRemoveNames(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, r.Add(NewEntry(name, rec(name))))
	}
	require.Equal(t, []string{"a", "b", "c"}, r.Names())

	_, err := r.Remove("b")
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	_, err = r.Get("b")
	require.ErrorIs(t, err, ErrNotRegistered)
	_, err = r.Remove("b")
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestOpError(t *testing.T) {
	err := &OpError{Op: "reload", Name: "svc", Err: ErrNoBackingFile}
	require.ErrorIs(t, err, ErrNoBackingFile)
	require.Equal(t, `reload "svc": entry has no backing file`, err.Error())

	var opErr *OpError
	require.True(t, errors.As(error(err), &opErr))
	require.Equal(t, "list: boom", (&OpError{Op: "list", Err: errors.New("boom")}).Error())
}
