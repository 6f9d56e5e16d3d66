package artifact

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVersionKey_RoundTrip(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	key := VersionKey("greeter", ts)
	require.Equal(t, "greeter@1700000000123", key)

	name, parsed, ok := ParseVersionKey(key)
	require.True(t, ok)
	require.Equal(t, "greeter", name)
	require.True(t, ts.Equal(parsed))
}

func TestParseVersionKey_NameWithSeparator(t *testing.T) {
	name, _, ok := ParseVersionKey("svc@eu@42")
	require.True(t, ok)
	require.Equal(t, "svc@eu", name)
}

func TestParseVersionKey_RejectsLogKey(t *testing.T) {
	_, _, ok := ParseVersionKey(LogKey("greeter"))
	require.False(t, ok)

	_, _, ok = ParseVersionKey("no-separator")
	require.False(t, ok)
}

func TestIOError_WrapsBoth(t *testing.T) {
	cause := errors.New("disk full")
	err := IOError("put", "k", cause)

	require.ErrorIs(t, err, ErrStorageIO)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), `put "k"`)
}
