package maincmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRunConfigDefaults(t *testing.T) {
	for _, name := range []string{"SPADE_MAX_STEPS", "SPADE_MAX_CALL_STACK_DEPTH", "SPADE_DISABLE_RECURSION"} {
		prev, wasSet := os.LookupEnv(name)
		require.NoError(t, os.Unsetenv(name))
		t.Cleanup(func() {
			if wasSet {
				os.Setenv(name, prev)
			}
		})
	}

	cfg, err := loadRunConfig()
	require.NoError(t, err)
	require.Equal(t, 0, cfg.MaxSteps)
	require.Equal(t, 0, cfg.MaxCallStackDepth)
	require.False(t, cfg.DisableRecursion)
}

func TestLoadRunConfigFromEnv(t *testing.T) {
	t.Setenv("SPADE_MAX_STEPS", "1000")
	t.Setenv("SPADE_MAX_CALL_STACK_DEPTH", "64")
	t.Setenv("SPADE_DISABLE_RECURSION", "true")

	cfg, err := loadRunConfig()
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.MaxSteps)
	require.Equal(t, 64, cfg.MaxCallStackDepth)
	require.True(t, cfg.DisableRecursion)
}
