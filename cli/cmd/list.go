package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/numlab/numerosity/cli/reader"
	"github.com/numlab/numerosity/cli/render"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// ListCommand returns the list command with subcommands.
// List returns thin slices (not inspect-level detail).
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored entities",
		Subcommands: []*cli.Command{
			listSessionsCommand(),
		},
	}
}

func listSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List stored sessions, most recent first",
		Flags: readFlags(
			&cli.StringFlag{
				Name:  "experiment",
				Usage: "Filter by experiment",
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Filter by outcome: finished, aborted, failed",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of sessions to return (0 = no limit)",
			},
		),
		Action: listSessionsAction,
	}
}

func listSessionsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	rd, err := openReader(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	opts := reader.ListSessionsOptions{
		Experiment: c.String("experiment"),
		Outcome:    c.String("outcome"),
		Limit:      c.Int("limit"),
	}
	results, err := rd.ListSessions(c.Context, opts)
	if err != nil {
		return err
	}

	// Warn on large output without --limit (TTY only to avoid noise in pipelines)
	if len(results) > listWarningThreshold && opts.Limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(results))
	}

	return r.Render(results)
}
