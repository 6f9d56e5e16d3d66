package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveStoreDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty uses project dir", "", filepath.Join(".hotswap", "artifacts")},
		{"relative is cleaned", "./data/../store", "store"},
		{"absolute kept", "/var/lib/hotswap", "/var/lib/hotswap"},
		{"home expanded", "~/artifacts", filepath.Join(home, "artifacts")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolveStoreDir(tt.in))
		})
	}
}

func TestExpandHome_LeavesOtherTildesAlone(t *testing.T) {
	require.Equal(t, "~user/x", ExpandHome("~user/x"))
	require.Equal(t, "a/~/b", ExpandHome("a/~/b"))
}

func TestProjectConfigPath(t *testing.T) {
	require.Equal(t, filepath.Join(".hotswap", "config.yaml"), ProjectConfigPath())
}
