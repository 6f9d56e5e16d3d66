package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		registry *Registry
		flag     string
		expected bool
	}{
		{"flag set to true", New(map[string]bool{FlagReloadDiff: true}), FlagReloadDiff, true},
		{"flag set to false", New(map[string]bool{FlagEventLog: false}), FlagEventLog, false},
		{"flag not configured", New(map[string]bool{FlagReloadDiff: true}), FlagEventLog, false},
		{"nil registry", nil, FlagReloadDiff, false},
		{"nil map", New(nil), FlagReloadDiff, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.registry.Enabled(tt.flag))
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	in := map[string]bool{FlagReloadDiff: true}
	r := New(in)
	in[FlagReloadDiff] = false

	require.True(t, r.Enabled(FlagReloadDiff))
}

func TestRegistry_AllReturnsCopy(t *testing.T) {
	r := New(map[string]bool{FlagEventLog: true})

	all := r.All()
	all[FlagEventLog] = false
	all["extra"] = true

	require.Equal(t, map[string]bool{FlagEventLog: true}, r.All())
	require.Empty(t, (*Registry)(nil).All())
}

func TestRegistry_Unknown(t *testing.T) {
	r := New(map[string]bool{FlagReloadDiff: true, "reload-dif": true, "zzz": false})
	require.Equal(t, []string{"reload-dif", "zzz"}, r.Unknown())
	require.Empty(t, New(nil).Unknown())
	require.Nil(t, (*Registry)(nil).Unknown())
}
