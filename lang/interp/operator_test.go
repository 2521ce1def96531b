package interp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpSymbolUsesTokenForOperators(t *testing.T) {
	require.Equal(t, "'+'", opSymbol(ADD))
	require.Equal(t, "'<='", opSymbol(LE))
	require.Equal(t, "'~'", opSymbol(INV))
}

func TestOpSymbolFallsBackToMnemonic(t *testing.T) {
	require.Equal(t, CONCAT.String(), opSymbol(CONCAT))
}
