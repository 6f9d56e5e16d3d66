package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVersionLog_AppendTruncate(t *testing.T) {
	l := NewVersionLog()
	for i := range 4 {
		l.Append(Version{Key: "m@" + string(rune('0'+i)), CreatedAt: time.UnixMilli(int64(i))})
	}
	require.Equal(t, 4, l.Len())

	l.Truncate(2)
	require.Equal(t, 2, l.Len())
	last, ok := l.Last()
	require.True(t, ok)
	require.Equal(t, "m@1", last.Key)

	l.Truncate(10)
	require.Equal(t, 2, l.Len(), "truncating past the end keeps everything")
}

func TestVersionLog_NilIsEmpty(t *testing.T) {
	var l *VersionLog
	require.Zero(t, l.Len())
	_, ok := l.Last()
	require.False(t, ok)
	require.Nil(t, l.Versions())
}

func TestVersionLog_VersionsIsACopy(t *testing.T) {
	l := NewVersionLog(Version{Key: "a@1"})
	vs := l.Versions()
	vs[0].Key = "changed"

	v, _ := l.At(0)
	require.Equal(t, "a@1", v.Key)
}

func TestVersionLog_JSON(t *testing.T) {
	l := NewVersionLog(
		Version{Key: "svc@1000", CreatedAt: time.UnixMilli(1000)},
		Version{Key: "svc@2000", CreatedAt: time.UnixMilli(2000)},
	)
	data, err := json.Marshal(l)
	require.NoError(t, err)
	require.JSONEq(t, `[{"key":"svc@1000","created_at":1000},{"key":"svc@2000","created_at":2000}]`, string(data))

	var back VersionLog
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, 2, back.Len())
	v, _ := back.At(1)
	require.True(t, v.CreatedAt.Equal(time.UnixMilli(2000)))

	require.Error(t, json.Unmarshal([]byte(`{"nope":1}`), &back))
}
