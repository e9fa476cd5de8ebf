// Package main provides the numerosity CLI entrypoint.
//
// Usage:
//
//	numerosity <command> [subcommand] [options]
//
// Exit codes for `run`:
//   - 0: session finished and stored
//   - 1: participant quit or the session failed
//   - 2: invalid configuration
//   - 3: the result could not be stored
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/numlab/numerosity/cli/cmd"
	"github.com/numlab/numerosity/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "numerosity",
		Usage:          "Numerosity estimation session runtime",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: func(_ *cli.Context, err error) { exitErrHandler(err, os.Stderr, os.Exit) },
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.InspectCommand(),
			cmd.ListCommand(),
			cmd.StatsCommand(),
			cmd.DebugCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit so run outcomes reach
// the shell.
func exitErrHandler(err error, stderr io.Writer, exit func(int)) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() is empty; skip it.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(stderr, msg)
		}
		exit(code)
		return
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	exit(1)
}
