package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/hotswap/internal/domain/live"
)

func load(t *testing.T, l *ManifestLoader, path string) *Unit {
	t.Helper()
	u, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	return u
}

func TestManifestLoader_YAMLRecordWithDefaultExport(t *testing.T) {
	u := load(t, NewManifestLoader(), "testdata/greeter.yaml")
	require.True(t, filepath.IsAbs(u.Path))
	require.NotEmpty(t, u.Source)
	require.Len(t, u.Digest(), 64)

	obj, ok := u.Impl.(*live.Object)
	require.True(t, ok)

	got, err := obj.Invoke("greet", "ada")
	require.NoError(t, err)
	require.Equal(t, "hello, ada", got)

	got, err = obj.Invoke("shout", "ada")
	require.NoError(t, err)
	require.Equal(t, "HELLO, ADA", got, "a method can invoke a sibling on its receiver")
}

func TestManifestLoader_MethodMutatesReceiver(t *testing.T) {
	u := load(t, NewManifestLoader(), "testdata/greeter.yaml")
	obj := u.Impl.(*live.Object)

	got, err := obj.Invoke("bump")
	require.NoError(t, err)
	require.Equal(t, 1, got)
	got, err = obj.Invoke("bump")
	require.NoError(t, err)
	require.Equal(t, 2, got)

	count, _ := obj.Field("count")
	require.Equal(t, 2, count)
}

func TestManifestLoader_TOMLFunction(t *testing.T) {
	u := load(t, NewManifestLoader(), "testdata/double.toml")
	fn, ok := u.Impl.(live.Func)
	require.True(t, ok)

	got, err := fn(21)
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestManifestLoader_JSONClass(t *testing.T) {
	u := load(t, NewManifestLoader(), "testdata/point.json")
	c, ok := u.Impl.(*live.Class)
	require.True(t, ok)
	require.Equal(t, "Point", c.Name)

	dims, ok := c.Static().Field("dimensions")
	require.True(t, ok)
	require.Equal(t, 2, dims)

	p, err := c.New(3, 4)
	require.NoError(t, err)
	sum, err := p.Invoke("sum")
	require.NoError(t, err)
	require.Equal(t, 7, sum)

	label, err := p.Invoke("label")
	require.NoError(t, err)
	require.Equal(t, "(3, 4)", label)

	scale, _ := p.Field("scale")
	require.Equal(t, 1.5, scale)
}

func TestManifestLoader_CUERecord(t *testing.T) {
	u := load(t, NewManifestLoader(), "testdata/flags.cue")
	obj := u.Impl.(*live.Object)

	retries, _ := obj.Field("retries")
	require.Equal(t, 3, retries)

	enabled, err := obj.Invoke("enabled")
	require.NoError(t, err)
	require.Equal(t, false, enabled)
}

func TestManifestLoader_Failures(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", "testdata/does-not-exist.yaml"},
		{"parse error", "testdata/broken.yaml"},
		{"template error", "testdata/badtemplate.yaml"},
		{"unknown kind", "testdata/unknownkind.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManifestLoader().Load(context.Background(), tt.path)
			require.ErrorIs(t, err, ErrLoadFailure)
		})
	}
}

func TestManifestLoader_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "module.ini")
	require.NoError(t, os.WriteFile(path, []byte("a=1"), 0o600))

	_, err := NewManifestLoader().Load(context.Background(), path)
	require.ErrorIs(t, err, ErrLoadFailure)
	require.Contains(t, err.Error(), "unsupported module format")
}

func TestManifestLoader_EmptyDocumentFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("# nothing\n"), 0o600))

	_, err := NewManifestLoader().Load(context.Background(), path)
	require.ErrorIs(t, err, ErrLoadFailure)
}

func TestManifestLoader_UnknownReturnTypeFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("body: x\nreturns: complex\n"), 0o600))

	_, err := NewManifestLoader().Load(context.Background(), path)
	require.ErrorIs(t, err, ErrLoadFailure)
}

func TestManifestLoader_ReadsFreshOnEveryLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fn.yaml")
	l := NewManifestLoader()

	require.NoError(t, os.WriteFile(path, []byte("body: v1\n"), 0o600))
	first := load(t, l, path)
	require.NoError(t, os.WriteFile(path, []byte("body: v2\n"), 0o600))
	second := load(t, l, path)

	got, err := second.Impl.(live.Func)()
	require.NoError(t, err)
	require.Equal(t, "v2", got)
	require.NotEqual(t, first.Digest(), second.Digest())

	got, err = first.Impl.(live.Func)()
	require.NoError(t, err)
	require.Equal(t, "v1", got, "an earlier unit keeps its own program")
}

func TestManifestLoader_IdenticalBodiesShareCompiledProgram(t *testing.T) {
	dir := t.TempDir()
	l := NewManifestLoader()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(a, []byte("body: '{{index .Args 0}}'\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("kind: function\nbody: '{{index .Args 0}}'\n"), 0o600))

	ua := load(t, l, a)
	ub := load(t, l, b)
	require.Equal(t, 1, l.CachedPrograms())

	for _, u := range []*Unit{ua, ub} {
		got, err := u.Impl.(live.Func)("same")
		require.NoError(t, err)
		require.Equal(t, "same", got)
	}
}

func TestManifestLoader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewManifestLoader().Load(ctx, "testdata/greeter.yaml")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeDefinition_WholeDocumentWithoutDefault(t *testing.T) {
	def, err := DecodeDefinition("m.yaml", []byte("kind: record\nfields:\n  port: 8080\n"))
	require.NoError(t, err)
	require.Equal(t, "record", def.Kind)
	require.Equal(t, 8080, def.Fields["port"])
}

func TestFormat(t *testing.T) {
	require.Equal(t, FormatYAML, Format("/m/a.yaml"))
	require.Equal(t, FormatYAML, Format("a.YML"))
	require.Equal(t, FormatTOML, Format("a.toml"))
	require.Equal(t, FormatJSON, Format("a.json"))
	require.Equal(t, FormatCUE, Format("a.cue"))
	require.Empty(t, Format("a.txt"))
}
