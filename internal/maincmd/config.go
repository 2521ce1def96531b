package maincmd

import "github.com/caarlos0/env/v6"

// RunConfig holds the thread limits §7's ambient configuration design
// loads from the environment before flags are parsed (`github.com/
// caarlos0/env/v6`, already an indirect dependency of `mna/mainer`,
// promoted here to a direct one): an operator running this binary in CI
// can set SPADE_MAX_STEPS etc. without touching argv, and a flag given on
// the command line still wins since Cmd's fields are only seeded from
// RunConfig, never re-read from it after flag parsing.
type RunConfig struct {
	MaxSteps          int  `env:"SPADE_MAX_STEPS" envDefault:"0"`
	MaxCallStackDepth int  `env:"SPADE_MAX_CALL_STACK_DEPTH" envDefault:"0"`
	DisableRecursion  bool `env:"SPADE_DISABLE_RECURSION" envDefault:"false"`
}

// loadRunConfig reads RunConfig from the environment, falling back to its
// envDefault tags for anything unset.
func loadRunConfig() (RunConfig, error) {
	var cfg RunConfig
	if err := env.Parse(&cfg); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}
