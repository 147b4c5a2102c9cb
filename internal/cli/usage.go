package cli

import (
	"github.com/spf13/cobra"
)

const helpTemplate = `newton - evaluator/advisor/executor optimization loop

USAGE
  newton <command> [flags]

COMMANDS
  run <workspace>          Run the optimization loop in a workspace
  batch <project-id>       Process queued plans for a project
  status <execution-id>    Show the state of a recorded execution
  report <execution-id>    Print an execution report (--format text|json)
  error <execution-id>     Show the errors of a failed execution
  history                  List recent batch outcomes
  version                  Show version, commit, build date

RUN FLAGS
  Tools:
    --evaluator-cmd <cmd>          Evaluator command
    --advisor-cmd <cmd>            Advisor command
    --executor-cmd <cmd>           Executor command
    --strict                       Abort an iteration when the evaluator fails

  Limits:
    --max-iterations <int>         Maximum loop iterations (default: 10)
    --max-time <seconds>           Wall-clock limit (default: 300)
    --tool-timeout <seconds>       Default per-tool timeout (default: 30)
    --evaluator-timeout <seconds>  Evaluator timeout (default: --tool-timeout)
    --advisor-timeout <seconds>    Advisor timeout (default: --tool-timeout)
    --executor-timeout <seconds>   Executor timeout (default: --tool-timeout)

  Inputs:
    --goal <text>                  Goal text, written to the workspace goal file
    --goal-file <path>             Goal file (mutually exclusive with --goal)
    --control-file <path>          Control file (default: newton_control.json)
    --config <path>                Additional newton.toml
    --branch <name>                Git branch to run on
    --feedback <text>              Feedback exported as NEWTON_USER_FEEDBACK
    -v, --verbose                  Show tool output and debug logs

BATCH FLAGS
    --workspace <path>             Workspace root (default: search upward)
    --once                         Process at most one plan and exit
    --sleep <interval>             Poll interval on an empty queue (default: 60)

CONFIGURATION
  Values are layered, later wins: defaults, <workspace>/newton.toml,
  --config file, NEWTON_* environment variables, command-line flags.

EXIT CODES
  0   Success              Goal reached
  1   Error                Tool or internal failure
  2   Configuration        Invalid configuration or arguments
  3   WorkspaceInvalid     Workspace missing required files
  4   IterationLimit       Iteration limit reached without completion
  5   TimeLimit            Wall-clock limit reached without completion
  130 Interrupted          SIGINT or SIGTERM received

EXAMPLES
  # Run with the tools configured in newton.toml
  newton run ./ws

  # Give the goal inline and cap the loop
  newton run ./ws --goal "halve p99 latency" --max-iterations 5

  # Drain the queue of project "api" once
  newton batch api --once

  # Inspect a finished execution
  newton report 3f0c9a7e --format json
`

// SetCustomHelp configures the root command to use the newton help text.
func SetCustomHelp(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
}
