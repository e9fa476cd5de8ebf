package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/numlab/numerosity/cli/reader"
	"github.com/numlab/numerosity/cli/render"
	"github.com/numlab/numerosity/cli/tui"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single entity.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a single stored entity",
		Subcommands: []*cli.Command{
			inspectSessionCommand(),
		},
	}
}

func inspectSessionCommand() *cli.Command {
	return &cli.Command{
		Name:      "session",
		Usage:     "Inspect a session by ID",
		ArgsUsage: "<session-id>",
		Flags: readFlags(&cli.BoolFlag{
			Name:  "records",
			Usage: "Include every stored record",
		}),
		Action: inspectSessionAction,
	}
}

func inspectSessionAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("session-id required", 1)
	}
	// Flag parsing stops at the first positional argument.
	if c.NArg() > 1 {
		return cli.Exit(fmt.Sprintf("unexpected arguments after session-id: %s (flags go before <session-id>)",
			strings.Join(c.Args().Tail(), " ")), 1)
	}
	sessionID := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	rd, err := openReader(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	resp, err := rd.InspectSession(c.Context, sessionID, c.Bool("records"))
	if errors.Is(err, reader.ErrNotFound) {
		return cli.Exit(fmt.Sprintf("session not found: %s", sessionID), 1)
	}
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectSession, resp)
	}
	return r.Render(resp)
}
