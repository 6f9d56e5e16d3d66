package testutil

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
)

// StoreFactory opens a fresh, empty store for one test.
type StoreFactory func(t *testing.T) artifact.Store

// RunStoreConformance exercises the artifact.Store contract against a backend.
// Every backend package calls it from its own tests so the backends stay
// interchangeable.
func RunStoreConformance(t *testing.T, open StoreFactory) {
	t.Helper()
	ctx := context.Background()

	t.Run("MissingKeyIsNotFound", func(t *testing.T) {
		s := open(t)
		payload, found, err := s.Get(ctx, "absent@1")
		require.NoError(t, err, "a missing key is not an error")
		require.False(t, found)
		require.Nil(t, payload)
	})

	t.Run("RoundTripExactBytes", func(t *testing.T) {
		s := open(t)
		cases := map[string]string{
			"empty@1":      "",
			"newlines@1":   "line one\nline two\r\n\n",
			"tabs@1":       "\tindented\t\ttext\t",
			"multikb@1":    strings.Repeat("kind: record\nfields:\n  greeting: hello\n", 200),
			"trailing@1":   "no trailing newline",
			"whitespace@1": "   ",
		}
		for key, in := range cases {
			require.NoError(t, s.Put(ctx, key, []byte(in)), key)
		}
		for key, in := range cases {
			out, found, err := s.Get(ctx, key)
			require.NoError(t, err, key)
			require.True(t, found, key)
			require.Equal(t, in, string(out), key)
		}
	})

	t.Run("OverwriteReplacesPayload", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(ctx, "k@1", []byte("first payload that is longer")))
		require.NoError(t, s.Put(ctx, "k@1", []byte("second")))

		out, found, err := s.Get(ctx, "k@1")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "second", string(out))

		infos, err := s.List(ctx, "k@")
		require.NoError(t, err)
		require.Len(t, infos, 1, "overwrite must not create a second record")
	})

	t.Run("DeleteRemovesKey", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(ctx, "gone@1", []byte("x")))
		require.NoError(t, s.Delete(ctx, "gone@1"))

		_, found, err := s.Get(ctx, "gone@1")
		require.NoError(t, err)
		require.False(t, found)

		require.NoError(t, s.Delete(ctx, "never-existed@1"), "deleting a missing key is not an error")
	})

	t.Run("ListFiltersByPrefixInKeyOrder", func(t *testing.T) {
		s := open(t)
		for _, key := range []string{"b@2", "a@3", "a@1", "ab@1"} {
			require.NoError(t, s.Put(ctx, key, []byte(key)))
		}

		infos, err := s.List(ctx, "a@")
		require.NoError(t, err)
		keys := make([]string, 0, len(infos))
		for _, info := range infos {
			keys = append(keys, info.Key)
			require.False(t, info.CreatedAt.IsZero(), info.Key)
		}
		require.Equal(t, []string{"a@1", "a@3"}, keys)

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 4)
	})

	t.Run("KeysAreOpaque", func(t *testing.T) {
		s := open(t)
		keys := []string{"with/slash@1", "with space@1", "../escape@1", "ünïcode@1"}
		for _, key := range keys {
			require.NoError(t, s.Put(ctx, key, []byte(key)), key)
		}
		for _, key := range keys {
			out, found, err := s.Get(ctx, key)
			require.NoError(t, err, key)
			require.True(t, found, key)
			require.Equal(t, key, string(out))
		}
	})

	t.Run("PropertyRoundTrip", func(t *testing.T) {
		s := open(t)
		rapid.Check(t, func(rt *rapid.T) {
			key := rapid.StringMatching(`[a-z]{1,12}@[0-9]{1,6}`).Draw(rt, "key")
			payload := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(rt, "payload")
			if err := s.Put(ctx, key, payload); err != nil {
				rt.Fatalf("put: %v", err)
			}
			out, found, err := s.Get(ctx, key)
			if err != nil || !found {
				rt.Fatalf("get: found=%v err=%v", found, err)
			}
			if !bytes.Equal(payload, out) {
				rt.Fatalf("round trip mismatch for %q", key)
			}
		})
	})
}
