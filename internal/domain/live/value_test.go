package live

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		impl Implementation
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"nil object", (*Object)(nil), KindUnknown},
		{"nil class", (*Class)(nil), KindUnknown},
		{"nil function", Func(nil), KindUnknown},
		{"function", Func(func(args ...any) (any, error) { return nil, nil }), KindFunction},
		{"record", NewObject(nil, nil), KindRecord},
		{"class", NewClass("C", nil, nil, nil), KindClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.impl))
		})
	}
}

func TestCompatible(t *testing.T) {
	fn := Func(func(args ...any) (any, error) { return nil, nil })
	obj := NewObject(nil, nil)
	class := NewClass("C", nil, nil, nil)

	require.True(t, Compatible(fn, fn))
	require.True(t, Compatible(obj, NewObject(map[string]any{"x": 1}, nil)))
	require.False(t, Compatible(fn, obj))
	require.False(t, Compatible(obj, class))
	require.False(t, Compatible(nil, nil))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("function")
	require.NoError(t, err)
	require.Equal(t, KindFunction, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	require.Equal(t, KindRecord, k, "kind defaults to record")

	_, err = ParseKind("module")
	require.Error(t, err)
}

func TestNewObject_CopiesInputMaps(t *testing.T) {
	fields := map[string]any{"a": 1}
	o := NewObject(fields, nil)
	fields["a"] = 2

	v, _ := o.Field("a")
	require.Equal(t, 1, v)
}

func TestObject_InvokeFuncField(t *testing.T) {
	o := NewObject(map[string]any{
		"double": Func(func(args ...any) (any, error) { return args[0].(int) * 2, nil }),
	}, nil)

	got, err := o.Invoke("double", 21)
	require.NoError(t, err)
	require.Equal(t, 42, got)

	_, err = o.Invoke("triple", 1)
	require.ErrorIs(t, err, ErrNoSuchMethod)
}

func TestObject_MethodNamesIncludeClassMethods(t *testing.T) {
	noop := func(self *Object, args ...any) (any, error) { return nil, nil }
	c := NewClass("C", nil, nil, map[string]Method{"b": noop, "a": noop})
	o, err := c.New()
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b"}, o.MethodNames())
}

func TestClass_NewRejectsExtraArguments(t *testing.T) {
	c := NewClass("Pair", []string{"left"}, nil, nil)

	_, err := c.New(1, 2)
	require.ErrorIs(t, err, ErrTooManyArguments)
}

func TestClass_InstancesDoNotShareFields(t *testing.T) {
	c := NewClass("Counter", nil, map[string]any{"n": 0}, nil)
	a, _ := c.New()
	b, _ := c.New()

	a.Set("n", 5)
	v, _ := b.Field("n")
	require.Equal(t, 0, v)
}

func TestWrap(t *testing.T) {
	impl, err := Wrap(func(args ...any) any { return len(args) })
	require.NoError(t, err)
	require.Equal(t, KindFunction, impl.Kind())
	got, err := impl.(Func)(1, 2, 3)
	require.NoError(t, err)
	require.Equal(t, 3, got)

	impl, err = Wrap(map[string]any{"k": "v"})
	require.NoError(t, err)
	require.Equal(t, KindRecord, impl.Kind())

	_, err = Wrap(42)
	require.ErrorIs(t, err, ErrUnsupportedValue)
}
