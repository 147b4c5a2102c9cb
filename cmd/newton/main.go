package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gonewton/newton/internal/cli"
	"github.com/gonewton/newton/internal/config"
	"github.com/gonewton/newton/internal/exitcode"
	"github.com/gonewton/newton/internal/logging"
)

// version vars injected via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// exitError carries an exit code that is not derived from an error
// category, such as a terminal execution status. err may be nil when the
// outcome was already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return exitcode.Name(e.code)
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(newRootCmd(), os.Args[1:]))
}

// execute runs root with args and returns the process exit code.
func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitcode.Success
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			logging.Error(ee.err.Error())
		}
		return ee.code
	}

	logging.Error(err.Error())
	return exitcode.FromError(err)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "newton",
		Short:         "Evaluator/advisor/executor optimization loop",
		Long:          "Newton drives external evaluator, advisor and executor tools in a loop until a goal is reached or a limit stops it.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Bad flags are configuration errors.
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &config.ConfigError{Reason: err.Error()}
	})

	root.AddCommand(
		newRunCmd(),
		newBatchCmd(),
		newStatusCmd(),
		newReportCmd(),
		newErrorCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	cli.SetCustomHelp(root)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version, commit, build date",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "newton %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

// exactArgs is cobra.ExactArgs reporting a configuration error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &config.ConfigError{Reason: fmt.Sprintf("%s accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))}
		}
		return nil
	}
}
