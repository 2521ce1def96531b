package sig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"basic",
		"basic::io",
		"basic.String",
		"basic::collections.Array`T`",
		"basic.String.concat(basic.String)",
		"basic::io.Reader.read`T`(basic.Int,[T])",
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			got, err := Parse(s)
			require.NoError(t, err)
			require.Equal(t, s, got.String())
		})
	}
}

func TestParseTypeParam(t *testing.T) {
	got, err := Parse("[T]")
	require.NoError(t, err)
	require.Equal(t, "T", got.TypeParam)
	require.Equal(t, "[T]", got.String())
}

func TestParseInvalid(t *testing.T) {
	cases := []string{
		"[",
		"[T",
		"basic.",
		"basic.method(",
		"basic.method(basic.Int",
		"basic extra",
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			require.Error(t, err)
		})
	}
}

func TestEqual(t *testing.T) {
	a, err := Parse("basic::io.Reader.read(basic.Int)")
	require.NoError(t, err)
	b, err := Parse("basic::io.Reader.read(basic.Int)")
	require.NoError(t, err)
	c, err := Parse("basic::io.Reader.read(basic.Float)")
	require.NoError(t, err)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestCompose(t *testing.T) {
	base, err := Parse("basic::collections")
	require.NoError(t, err)
	composed := base.Compose("Array", []string{"T"})
	require.Equal(t, "basic::collections.Array`T`", composed.String())
}
