package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/hotswap/internal/domain/live"
)

func TestStaticLoader_BuildsFreshImplementations(t *testing.T) {
	l := NewStaticLoader()
	l.Set("mods/counter", []byte("v1"), func() (live.Implementation, error) {
		return live.NewObject(map[string]any{"n": 0}, nil), nil
	})

	a, err := l.Load(context.Background(), "mods/counter")
	require.NoError(t, err)
	b, err := l.Load(context.Background(), "mods/counter")
	require.NoError(t, err)

	require.NotSame(t, a.Impl, b.Impl)
	require.Equal(t, "v1", string(a.Source))
}

func TestStaticLoader_Errors(t *testing.T) {
	l := NewStaticLoader()

	_, err := l.Load(context.Background(), "missing")
	require.ErrorIs(t, err, ErrLoadFailure)

	l.Set("bad", nil, func() (live.Implementation, error) { return nil, errors.New("boom") })
	_, err = l.Load(context.Background(), "bad")
	require.ErrorIs(t, err, ErrLoadFailure)

	l.Set("nil", nil, func() (live.Implementation, error) { return nil, nil })
	_, err = l.Load(context.Background(), "nil")
	require.ErrorIs(t, err, ErrLoadFailure)

	l.Set("gone", nil, func() (live.Implementation, error) { return live.NewObject(nil, nil), nil })
	l.Remove("gone")
	_, err = l.Load(context.Background(), "gone")
	require.ErrorIs(t, err, ErrLoadFailure)
}
