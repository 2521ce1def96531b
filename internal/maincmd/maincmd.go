package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
)

const binName = "spade"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <program> [-- <arg>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <program> [-- <arg>...]
       %[1]s -h|--help
       %[1]s -v|--version

Runs a compiled %[1]s program file. <program> is the path to a binary
program produced by the assembler; anything after "--" is passed to the
program's own entry point as its argument array.

Valid flag options are:
       -h --help                      Show this help and exit.
       -v --version                   Print version and exit.
       --max-steps=<n>                Cancel the thread after n dispatched
                                       instructions (0: unbounded). Overrides
                                       SPADE_MAX_STEPS.
       --max-call-stack-depth=<n>     Cancel the thread once its call stack
                                       exceeds n frames (0: unbounded).
                                       Overrides SPADE_MAX_CALL_STACK_DEPTH.
       --disable-recursion             Reject a recursive call with a
                                       StackOverflow instead of allowing it.
                                       Overrides SPADE_DISABLE_RECURSION.
       --debug                        Attach a step-counting debugger and
                                       report its tally on stderr after the
                                       program exits.

More information on the %[1]s repository:
       https://github.com/go-spade/spade
`, binName)
)

// Cmd is the single top-level command: run a program file. There is no
// compiler pipeline in this tool's scope (§1), so unlike a multi-command
// build tool there is only ever one thing Main does once flags are
// resolved: load and run the program named by the first positional
// argument.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	MaxSteps          int  `flag:"max-steps"`
	MaxCallStackDepth int  `flag:"max-call-stack-depth"`
	DisableRecursion  bool `flag:"disable-recursion"`
	Debug             bool `flag:"debug"`

	args []string
}

func (c *Cmd) SetArgs(args []string) { c.args = args }

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return fmt.Errorf("no program path specified")
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	cfg, err := loadRunConfig()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid environment configuration: %s\n", err)
		return mainer.InvalidArgs
	}
	c.MaxSteps = cfg.MaxSteps
	c.MaxCallStackDepth = cfg.MaxCallStackDepth
	c.DisableRecursion = cfg.DisableRecursion

	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)

	path := c.args[0]
	progArgs := c.args[1:]
	runCfg := RunConfig{
		MaxSteps:          c.MaxSteps,
		MaxCallStackDepth: c.MaxCallStackDepth,
		DisableRecursion:  c.DisableRecursion,
	}

	code := runProgram(ctx, path, progArgs, stdio.Stdout, stdio.Stderr, runCfg, c.Debug)
	return mainer.ExitCode(code)
}
