package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := LT; tok < maxToken; tok++ {
		require.NotEmpty(t, tok.String(), "token %d", tok)
	}
}

func TestIsComparison(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		want := tok >= LT && tok <= NEQ
		require.Equal(t, want, tok.IsComparison(), "token %d", tok)
	}
}

func TestGoString(t *testing.T) {
	require.Equal(t, "'=='", EQL.GoString())
	require.Equal(t, "'+'", ADD.GoString())
}
