package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/hotswap/internal/domain/live"
)

func rec(tag string) *live.Object {
	return live.NewObject(map[string]any{"tag": tag}, nil)
}

func tagOf(t *testing.T, impl live.Implementation) string {
	t.Helper()
	v, ok := impl.(*live.Object).Field("tag")
	require.True(t, ok)
	return v.(string)
}

func tags(t *testing.T, impls []live.Implementation) []string {
	t.Helper()
	out := make([]string, 0, len(impls))
	for _, impl := range impls {
		out = append(out, tagOf(t, impl))
	}
	return out
}

func TestEntry_HandleIsStable(t *testing.T) {
	e := NewEntry("m", rec("a"))
	h := e.Handle()

	e.Install(rec("b"), 1)
	require.NoError(t, e.Rollback(1))
	require.NoError(t, e.RollForward(1))

	require.Same(t, h, e.Handle())
	v, err := h.Get("tag")
	require.NoError(t, err)
	require.Equal(t, "b", v)
}

func TestEntry_UndoBoundEvictsOldest(t *testing.T) {
	e := NewEntry("m", rec("v0"))
	for _, tag := range []string{"v1", "v2", "v3"} {
		e.Install(rec(tag), 2)
	}

	require.Equal(t, 2, e.UndoDepth())
	require.Equal(t, []string{"v1", "v2"}, tags(t, e.Undo()))
	require.Equal(t, "v3", tagOf(t, e.Current()))
}

func TestEntry_DepthShrinkAppliesOnNextPush(t *testing.T) {
	e := NewEntry("m", rec("v0"))
	e.Install(rec("v1"), 3)
	e.Install(rec("v2"), 3)
	require.Equal(t, 2, e.UndoDepth())

	e.Install(rec("v3"), 1)
	require.Equal(t, []string{"v2"}, tags(t, e.Undo()))

	e.Install(rec("v4"), 0)
	require.Zero(t, e.UndoDepth())
}

func TestEntry_InstallClearsRedo(t *testing.T) {
	e := NewEntry("m", rec("v0"))
	e.Install(rec("v1"), 1)
	require.NoError(t, e.Rollback(1))
	require.Equal(t, 1, e.RedoDepth())

	e.Install(rec("v2"), 1)
	require.Zero(t, e.RedoDepth())
	require.Equal(t, []string{"v0"}, tags(t, e.Undo()))
}

func TestEntry_RollbackAndForward(t *testing.T) {
	e := NewEntry("m", rec("v0"))
	e.Install(rec("v1"), 5)
	e.Install(rec("v2"), 5)

	require.NoError(t, e.Rollback(2))
	require.Equal(t, "v0", tagOf(t, e.Current()))
	require.Equal(t, []string{"v2", "v1"}, tags(t, e.Redo()))

	require.NoError(t, e.RollForward(5))
	require.Equal(t, "v1", tagOf(t, e.Current()))
	require.NoError(t, e.RollForward(5))
	require.Equal(t, "v2", tagOf(t, e.Current()))
	require.ErrorIs(t, e.RollForward(5), ErrNoForwardAvailable)
}

func TestEntry_MultiStepRollbackSwapsOnce(t *testing.T) {
	for range 50 {
		e := NewEntry("m", rec("v0"))
		for _, tag := range []string{"v1", "v2", "v3"} {
			e.Install(rec(tag), 5)
		}

		stop := make(chan struct{})
		seen := make(chan string, 1)
		go func() {
			defer close(seen)
			for {
				select {
				case <-stop:
					return
				default:
				}
				v, _ := e.Current().(*live.Object).Field("tag")
				if tag := v.(string); tag != "v3" && tag != "v0" {
					seen <- tag
					return
				}
			}
		}()
		require.NoError(t, e.Rollback(3))
		close(stop)
		for tag := range seen {
			t.Fatalf("reader observed intermediate value %s", tag)
		}

		require.Equal(t, "v0", tagOf(t, e.Current()))
		require.Zero(t, e.UndoDepth())
		require.Equal(t, []string{"v3", "v2", "v1"}, tags(t, e.Redo()))
	}
}

func TestEntry_RollbackOutOfRangeLeavesState(t *testing.T) {
	e := NewEntry("m", rec("v0"))
	e.Install(rec("v1"), 1)

	require.ErrorIs(t, e.Rollback(99), ErrNoHistoryAvailable)
	require.ErrorIs(t, e.Rollback(0), ErrInvalidSteps)
	require.Equal(t, "v1", tagOf(t, e.Current()))
	require.Equal(t, 1, e.UndoDepth())
	require.Zero(t, e.RedoDepth())
}

func TestEntry_RollForwardRespectsBound(t *testing.T) {
	e := NewEntry("m", rec("v0"))
	e.Install(rec("v1"), 2)
	e.Install(rec("v2"), 2)
	require.NoError(t, e.Rollback(2))

	require.NoError(t, e.RollForward(0))
	require.Zero(t, e.UndoDepth(), "a zero bound keeps undo empty")
}

func TestEntry_NextVersionIsStrictlyIncreasing(t *testing.T) {
	e := NewEntry("svc", rec("v0"))
	now := time.UnixMilli(1_700_000_000_000)

	v1 := e.NextVersion(now)
	e.RecordVersion(v1)
	v2 := e.NextVersion(now)
	e.RecordVersion(v2)
	v3 := e.NextVersion(now.Add(-time.Hour))

	require.Equal(t, "svc@1700000000000", v1.Key)
	require.Equal(t, "svc@1700000000001", v2.Key)
	require.Equal(t, "svc@1700000000002", v3.Key)
	require.Equal(t, v2.Key, e.CurrentKey())
}

func TestEntry_RollbackTargetAndRestore(t *testing.T) {
	e := NewEntry("svc", rec("v3"))
	base := time.UnixMilli(1000)
	for i := range 4 {
		e.RecordVersion(e.NextVersion(base.Add(time.Duration(i) * time.Second)))
	}
	e.Install(rec("later"), 1)
	require.NoError(t, e.Rollback(1))
	require.Equal(t, 1, e.RedoDepth())

	target, idx, err := e.RollbackTarget(2)
	require.NoError(t, err)
	require.Equal(t, 1, idx)

	e.RestoreVersion(rec("v1"), idx)
	require.Equal(t, "v1", tagOf(t, e.Current()))
	require.Equal(t, 2, e.Log().Len())
	require.Equal(t, target.Key, e.CurrentKey())
	require.Zero(t, e.RedoDepth())

	_, _, err = e.RollbackTarget(2)
	require.ErrorIs(t, err, ErrNoHistoryAvailable)
}

func TestEntry_RollbackTargetAfterUnarchivedInstall(t *testing.T) {
	e := NewEntry("svc", rec("v0"))
	base := time.UnixMilli(1000)
	for i := range 2 {
		e.RecordVersion(e.NextVersion(base.Add(time.Duration(i) * time.Second)))
	}
	e.Install(rec("scratch"), 5)
	e.SetCurrentKey("")

	target, idx, err := e.RollbackTarget(1)
	require.NoError(t, err)
	require.Equal(t, 1, idx, "one step back is the newest logged version")
	last, _ := e.Log().Last()
	require.Equal(t, last, target)

	_, idx, err = e.RollbackTarget(2)
	require.NoError(t, err)
	require.Zero(t, idx)

	_, _, err = e.RollbackTarget(3)
	require.ErrorIs(t, err, ErrNoHistoryAvailable)
}

func TestEntry_RollbackTargetWithoutLog(t *testing.T) {
	e := NewEntry("m", rec("v0"))
	_, _, err := e.RollbackTarget(1)
	require.ErrorIs(t, err, ErrNoVersionLog)
}

// TestEntry_HistoryInvariants drives random operation sequences and checks
// the undo bound and the redo clearing rule after every step.
func TestEntry_HistoryInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := NewEntry("m", rec("v0"))
		n := 0
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for range steps {
			depth := rapid.IntRange(0, 4).Draw(rt, "depth")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				n++
				e.Install(live.NewObject(map[string]any{"tag": n}, nil), depth)
				if e.RedoDepth() != 0 {
					rt.Fatalf("redo not cleared by install")
				}
				if e.UndoDepth() > depth {
					rt.Fatalf("undo depth %d exceeds bound %d", e.UndoDepth(), depth)
				}
			case 1:
				before := e.UndoDepth()
				if err := e.Rollback(1); err == nil && e.UndoDepth() != before-1 {
					rt.Fatalf("rollback did not pop undo")
				}
			case 2:
				if err := e.RollForward(depth); err == nil && e.UndoDepth() > depth {
					rt.Fatalf("undo depth %d exceeds bound %d", e.UndoDepth(), depth)
				}
			}
			if e.Current() == nil {
				rt.Fatalf("current must never be nil")
			}
		}
	})
}
