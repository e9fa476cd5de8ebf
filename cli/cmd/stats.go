package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/numlab/numerosity/cli/reader"
	"github.com/numlab/numerosity/cli/render"
	"github.com/numlab/numerosity/cli/tui"
)

// StatsCommand returns the stats command.
// Stats returns estimates aggregated per category and numerosity across
// stored sessions.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize estimates across stored sessions",
		Flags: readFlags(
			&cli.StringFlag{
				Name:  "experiment",
				Usage: "Filter by experiment",
			},
			&cli.BoolFlag{
				Name:  "include-aborted",
				Usage: "Also count trials of aborted sessions",
			},
		),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	rd, err := openReader(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	stats, err := rd.Stats(c.Context, reader.StatsOptions{
		Experiment:     c.String("experiment"),
		IncludeAborted: c.Bool("include-aborted"),
	})
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStats, stats)
	}
	if r.Format() == render.FormatTable {
		return r.Render(stats.Cells)
	}
	return r.Render(stats)
}
